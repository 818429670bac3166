// Package pathutil resolves user-supplied filesystem paths and checks that
// they stay inside a set of allowed roots.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"wownote/internal/apperr"
)

// Resolve expands a leading "~" to the current user's home directory and
// returns a cleaned absolute path. It never fails: if the home directory or
// working directory cannot be determined the cleaned input is returned.
func Resolve(raw string) string {
	path := strings.TrimSpace(raw)
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// WithinRoots reports whether target, once made absolute and cleaned, is one
// of roots or lies underneath one of them. Containment is checked per path
// element so "/up" is not inside "/u".
func WithinRoots(target string, roots []string) bool {
	abs := Resolve(target)
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		r := Resolve(root)
		if abs == r {
			return true
		}
		prefix := r
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(abs, prefix) {
			return true
		}
	}
	return false
}

// JoinWithin joins a client-supplied relative name onto dir and rejects names
// that are empty, absolute, or that would land outside dir.
func JoinWithin(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperr.Validation("filename is required")
	}
	if filepath.IsAbs(name) {
		return "", apperr.Validation("invalid filename: %s", name)
	}
	joined := filepath.Join(dir, name)
	if joined == filepath.Clean(dir) || !WithinRoots(joined, []string{dir}) {
		return "", apperr.Validation("invalid filename: %s", name)
	}
	return joined, nil
}
