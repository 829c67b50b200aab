package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideVault is returned for paths that would leave the vault root.
var ErrOutsideVault = errors.New("storage: path escapes vault root")

// FS implements Provider on a local vault directory.
type FS struct {
	root string
}

// NewFS opens the vault at root, which must be an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// resolve maps a vault-relative path to an absolute one. "" is the root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, rel)
	}
	return filepath.Join(f.root, rel), nil
}

// List returns every note file under dir, hidden directories skipped.
// Paths are relative to the vault root.
func (f *FS) List(dir string) ([]FileInfo, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	out := []FileInfo{}
	err = fs.WalkDir(os.DirFS(base), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !IsNoteFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, FileInfo{
			Path:    filepath.Join(dir, filepath.FromSlash(p)),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", dir, err)
	}
	return out, nil
}

// Read returns the bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces path with content atomically. Readers see either the old
// or the new file, never a partial one.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	tmpName, err := writeTemp(dir, content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// writeTemp writes and fsyncs content to a hidden temp file in dir. The
// watcher ignores it because of the leading dot.
func writeTemp(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	name := tmp.Name()
	fail := func(op string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("storage: %s: %w", op, err)
	}
	if _, err := tmp.Write(content); err != nil {
		return fail("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	return name, nil
}

// Delete removes a vault file.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a vault file, creating the target directory if needed.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	to, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	return nil
}

// Exists reports whether path names a regular file.
func (f *FS) Exists(path string) bool {
	abs, err := f.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}
