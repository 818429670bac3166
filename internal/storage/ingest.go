package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"wownote/internal/apperr"
	"wownote/internal/content"
)

// Mirror receives a copy of every ingested file.
type Mirror interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, sha256 string) error
}

// Ingester stores uploaded files under a collision-free name.
type Ingester struct {
	mirror Mirror
	log    zerolog.Logger
}

// NewIngester returns an Ingester. mirror may be nil.
func NewIngester(mirror Mirror, log zerolog.Logger) *Ingester {
	return &Ingester{mirror: mirror, log: log}
}

// Ingest writes r into targetDir. The client filename is reduced to its base
// name and suffixed with _1, _2, ... until it does not clash with an existing
// entry. contentType is recorded as file_type; when empty it is guessed from
// the extension.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader, filename, contentType, targetDir string) (content.FileContent, error) {
	base := cleanBaseName(filename)
	if base == "" {
		return content.FileContent{}, apperr.Validation("No file selected")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return content.FileContent{}, fmt.Errorf("create upload dir: %w", err)
	}

	f, path, err := createUnique(targetDir, base)
	if err != nil {
		return content.FileContent{}, err
	}

	hash := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(f, hash), r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return content.FileContent{}, fmt.Errorf("write upload: %w", err)
	}

	if contentType == "" {
		contentType = ContentTypeFor(path)
	}

	out := content.FileContent{
		Filename: filepath.Base(path),
		FilePath: path,
		FileSize: size,
		FileType: contentType,
	}

	i.mirrorFile(ctx, out, hex.EncodeToString(hash.Sum(nil)))
	return out, nil
}

func (i *Ingester) mirrorFile(ctx context.Context, fc content.FileContent, digest string) {
	if i == nil || i.mirror == nil {
		return
	}
	f, err := os.Open(fc.FilePath)
	if err != nil {
		i.log.Warn().Err(err).Str("path", fc.FilePath).Msg("mirror open failed")
		return
	}
	defer f.Close()

	if err := i.mirror.Put(ctx, fc.Filename, f, fc.FileSize, digest); err != nil {
		i.log.Warn().Err(err).Str("path", fc.FilePath).Msg("mirror upload failed")
	}
}

// createUnique opens a new file for writing, picking name, name_1, name_2...
// O_EXCL makes each attempt atomic, so two uploads of the same name never
// share a file.
func createUnique(dir, base string) (*os.File, string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
	}
}

func cleanBaseName(filename string) string {
	// Browsers on Windows may send the full client path.
	name := strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// ContentTypeFor guesses a MIME type from the file extension. PDFs are always
// application/pdf so browsers render them inline.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
