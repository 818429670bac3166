package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wownote/internal/apperr"
	"wownote/internal/pathutil"
)

// DirectoryListing is what the folder picker shows for one directory.
type DirectoryListing struct {
	CurrentPath string   `json:"current_path"`
	ParentPath  string   `json:"parent_path"`
	Directories []string `json:"directories"`
}

// Browse lists the visible subdirectories of raw, which defaults to the
// home directory when empty.
func Browse(raw string) (DirectoryListing, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "~"
	}
	current := pathutil.Resolve(raw)

	info, err := os.Stat(current)
	if err != nil || !info.IsDir() {
		return DirectoryListing{}, apperr.Validation("Invalid path")
	}

	entries, err := os.ReadDir(current)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return DirectoryListing{}, apperr.AccessDenied("Access denied: %s", current)
		}
		return DirectoryListing{}, err
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if isDir(current, e) {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)

	return DirectoryListing{
		CurrentPath: current,
		ParentPath:  filepath.Dir(current),
		Directories: dirs,
	}, nil
}

// CreateDirectory makes name inside parent and returns the new path.
func CreateDirectory(parent, name string) (string, error) {
	if strings.TrimSpace(parent) == "" || strings.TrimSpace(name) == "" {
		return "", apperr.Validation("Path and name are required")
	}
	target, err := pathutil.JoinWithin(pathutil.Resolve(parent), name)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(target); err == nil {
		return "", apperr.Validation("Directory already exists")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", err
	}
	return target, nil
}

// isDir follows symlinks so linked folders show up in the picker.
func isDir(parent string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}
