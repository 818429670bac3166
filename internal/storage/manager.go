package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"wownote/internal/apperr"
	"wownote/internal/content"
	"wownote/internal/models"
	"wownote/internal/pathutil"
)

// SectionGetter loads sections. The content store satisfies it.
type SectionGetter interface {
	GetSection(ctx context.Context, id uuid.UUID) (models.Section, error)
	CountFileReferences(ctx context.Context, path string) (int64, error)
}

// Entry is one item in a storage section directory.
type Entry struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDirectory bool      `json:"is_directory"`
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// SectionRoots, when non-empty, confines storage section directories.
	SectionRoots []string
	// ServedRoots are the directories attachments may be served from.
	ServedRoots []string
}

// Manager performs file operations inside the directories mounted by storage
// sections, and serves the files referenced by file and image sections.
type Manager struct {
	sections     SectionGetter
	sectionRoots []string
	servedRoots  []string
}

// NewManager returns a Manager that loads sections through sections.
func NewManager(sections SectionGetter, opts ManagerOptions) *Manager {
	return &Manager{
		sections:     sections,
		sectionRoots: opts.SectionRoots,
		servedRoots:  opts.ServedRoots,
	}
}

// sectionDir resolves the directory mounted by a storage section. role
// prefixes error messages when two sections take part in one operation.
func (m *Manager) sectionDir(ctx context.Context, id uuid.UUID, role string) (string, error) {
	sec, err := m.sections.GetSection(ctx, id)
	if err != nil {
		return "", err
	}
	sc, err := content.Storage(sec.ContentType, sec.ContentData)
	if err != nil {
		if role != "" && errors.Is(err, apperr.ErrValidation) && sec.ContentType != content.TypeStorage {
			return "", apperr.Validation("%s is not a storage section", role)
		}
		return "", err
	}

	dir := pathutil.Resolve(sc.Path)
	if len(m.sectionRoots) > 0 && !pathutil.WithinRoots(dir, m.sectionRoots) {
		return "", apperr.AccessDenied("Access denied")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if role != "" {
			return "", apperr.NotFound("%s path not found: %s", role, sc.Path)
		}
		return "", apperr.NotFound("Path not found: %s", sc.Path)
	}
	return dir, nil
}

// List returns the entries of the section directory, directories first and
// then by case-insensitive name.
func (m *Manager) List(ctx context.Context, sectionID uuid.UUID) ([]Entry, error) {
	dir, err := m.sectionDir(ctx, sectionID, "")
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := os.Stat(filepath.Join(dir, de.Name()))
		if err != nil {
			// Dangling symlink or entry removed while listing.
			continue
		}
		entries = append(entries, Entry{
			Name:        de.Name(),
			Size:        info.Size(),
			UpdatedAt:   info.ModTime().UTC(),
			IsDirectory: info.IsDir(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// Upload stores r as filename in the section directory, replacing any file
// that already has that name.
func (m *Manager) Upload(ctx context.Context, sectionID uuid.UUID, r io.Reader, filename string) (Entry, error) {
	dir, err := m.sectionDir(ctx, sectionID, "")
	if err != nil {
		return Entry{}, err
	}
	base := cleanBaseName(filename)
	if base == "" {
		return Entry{}, apperr.Validation("No selected file")
	}
	target, err := pathutil.JoinWithin(dir, base)
	if err != nil {
		return Entry{}, err
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return Entry{}, apperr.Conflict("A directory named %s already exists", base)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return Entry{}, fmt.Errorf("create temp file: %w", err)
	}
	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return Entry{}, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return Entry{}, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return Entry{}, fmt.Errorf("store upload: %w", err)
	}
	return Entry{Name: base, Size: size, UpdatedAt: time.Now().UTC()}, nil
}

// Open returns the named file from the section directory along with its
// content type. The caller closes the file.
func (m *Manager) Open(ctx context.Context, sectionID uuid.UUID, filename string) (*os.File, string, error) {
	dir, err := m.sectionDir(ctx, sectionID, "")
	if err != nil {
		return nil, "", err
	}
	path, err := pathutil.JoinWithin(dir, filename)
	if err != nil {
		return nil, "", err
	}
	return openRegular(path)
}

// Delete removes the named entry from the section directory. Directories are
// removed with their contents.
func (m *Manager) Delete(ctx context.Context, sectionID uuid.UUID, filename string) error {
	dir, err := m.sectionDir(ctx, sectionID, "")
	if err != nil {
		return err
	}
	path, err := pathutil.JoinWithin(dir, filename)
	if err != nil {
		return err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return apperr.NotFound("File not found")
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// Move relocates filename from one storage section to another.
func (m *Manager) Move(ctx context.Context, sourceID uuid.UUID, filename string, targetID uuid.UUID, overwrite bool) error {
	src, dst, err := m.transferPaths(ctx, sourceID, filename, targetID, overwrite)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move file: %w", err)
	}

	// Different filesystems: fall back to copy and remove.
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return apperr.Validation("Cannot move a directory across devices")
	}
	if err := copyFile(src, dst, info); err != nil {
		return err
	}
	return os.Remove(src)
}

// Copy duplicates filename into another storage section, keeping the file
// mode and modification time.
func (m *Manager) Copy(ctx context.Context, sourceID uuid.UUID, filename string, targetID uuid.UUID, overwrite bool) error {
	src, dst, err := m.transferPaths(ctx, sourceID, filename, targetID, overwrite)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return apperr.Validation("Cannot copy a directory")
	}
	return copyFile(src, dst, info)
}

func (m *Manager) transferPaths(ctx context.Context, sourceID uuid.UUID, filename string, targetID uuid.UUID, overwrite bool) (string, string, error) {
	srcDir, err := m.sectionDir(ctx, sourceID, "Source")
	if err != nil {
		return "", "", err
	}
	dstDir, err := m.sectionDir(ctx, targetID, "Target")
	if err != nil {
		return "", "", err
	}
	src, err := pathutil.JoinWithin(srcDir, filename)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Lstat(src); err != nil {
		return "", "", apperr.NotFound("Source file not found")
	}
	dst, err := pathutil.JoinWithin(dstDir, filepath.Base(src))
	if err != nil {
		return "", "", err
	}
	if src == dst {
		return "", "", apperr.Validation("Source and target are the same file")
	}
	if info, err := os.Lstat(dst); err == nil {
		if !overwrite {
			return "", "", apperr.Conflict("File already exists: %s", filepath.Base(dst))
		}
		if info.IsDir() {
			return "", "", apperr.Conflict("A directory named %s already exists", filepath.Base(dst))
		}
	}
	return src, dst, nil
}

// ExtractZip unpacks a .zip archive from the section directory into that
// same directory and returns the number of files written. Every member is
// checked before anything is written; one that would land outside the
// directory fails the whole extraction.
func (m *Manager) ExtractZip(ctx context.Context, sectionID uuid.UUID, filename string) (int, error) {
	dir, err := m.sectionDir(ctx, sectionID, "")
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".zip") {
		return 0, apperr.Validation("Not a ZIP file")
	}
	archivePath, err := pathutil.JoinWithin(dir, filename)
	if err != nil {
		return 0, err
	}
	if info, err := os.Stat(archivePath); err != nil || info.IsDir() {
		return 0, apperr.NotFound("ZIP file not found")
	}

	rc, err := zip.OpenReader(archivePath)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return 0, apperr.Validation("invalid ZIP file: %v", err)
	}
	defer rc.Close()

	targets := make([]string, len(rc.File))
	for i, f := range rc.File {
		name := strings.ReplaceAll(f.Name, `\`, "/")
		if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
			return 0, apperr.Validation("illegal path in archive: %s", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if target != dir && !pathutil.WithinRoots(target, []string{dir}) {
			return 0, apperr.Validation("illegal path in archive: %s", f.Name)
		}
		targets[i] = target
	}

	written := 0
	for i, f := range rc.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		target := targets[i]
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, err
			}
		case mode&fs.ModeSymlink != 0:
			// Links could point anywhere on the host.
			continue
		default:
			if err := extractFile(f, target); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	in, err := f.Open()
	if err != nil {
		return apperr.Validation("invalid ZIP member %s: %v", f.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if !f.Modified.IsZero() {
		_ = os.Chtimes(target, f.Modified, f.Modified)
	}
	return nil
}

// OpenAttachment opens the file referenced by a file or image section. The
// file must live under one of the served roots.
func (m *Manager) OpenAttachment(ctx context.Context, sectionID uuid.UUID) (*os.File, content.FileContent, string, error) {
	sec, err := m.sections.GetSection(ctx, sectionID)
	if err != nil {
		return nil, content.FileContent{}, "", err
	}
	fc, err := content.File(sec.ContentType, sec.ContentData)
	if err != nil {
		return nil, content.FileContent{}, "", err
	}
	if strings.TrimSpace(fc.FilePath) == "" {
		return nil, fc, "", apperr.NotFound("File not found")
	}
	path := pathutil.Resolve(fc.FilePath)
	if !pathutil.WithinRoots(path, m.servedRoots) {
		return nil, fc, "", apperr.AccessDenied("Access denied")
	}
	f, ctype, err := openRegular(path)
	if err != nil {
		return nil, fc, "", err
	}
	return f, fc, ctype, nil
}

// RemoveAttachment deletes the file referenced by a deleted or replaced file
// or image section once no other section points at it. Only files under the
// served roots are touched. It reports whether the file was removed.
func (m *Manager) RemoveAttachment(ctx context.Context, sec models.Section) (bool, error) {
	fc, err := content.File(sec.ContentType, sec.ContentData)
	if err != nil || strings.TrimSpace(fc.FilePath) == "" {
		return false, nil
	}
	path := pathutil.Resolve(fc.FilePath)
	if !pathutil.WithinRoots(path, m.servedRoots) {
		return false, apperr.AccessDenied("refusing to remove %s outside served roots", path)
	}
	refs, err := m.sections.CountFileReferences(ctx, path)
	if err != nil {
		return false, err
	}
	if refs > 0 {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, nil
}

func openRegular(path string) (*os.File, string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, "", apperr.NotFound("File not found")
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, "", apperr.AccessDenied("Access denied")
		}
		return nil, "", err
	}
	return f, ContentTypeFor(path), nil
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
