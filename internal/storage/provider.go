// Package storage defines the markdown vault file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	noteExt    = ".md"
	tmpPattern = ".mindweave-tmp-*"
)

// FileInfo describes one markdown file in the vault.
type FileInfo struct {
	Path    string // relative to vault root
	Size    int64
	ModTime time.Time
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns every .md file under dir (relative to vault root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
	// Exists reports whether path names an existing file.
	Exists(path string) bool
}

var unsafeNameChars = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-", "\n", " ", "\r", " ", "\t", " ",
)

// Filename maps a note title to its vault file name. Characters that are
// unsafe in file names become "-"; an empty result becomes "Untitled".
func Filename(title string) string {
	return stem(title) + noteExt
}

// FilenameWithSuffix is Filename with " suffix" appended to the stem. It
// separates notes whose titles map to the same file.
func FilenameWithSuffix(title, suffix string) string {
	if suffix == "" {
		return Filename(title)
	}
	return stem(title) + " " + suffix + noteExt
}

func stem(title string) string {
	s := strings.TrimSpace(unsafeNameChars.Replace(title))
	s = strings.TrimSpace(strings.TrimLeft(s, "."))
	if s == "" {
		s = "Untitled"
	}
	return s
}

// TitleFromPath returns the file stem. It is the title of files that carry
// no front matter.
func TitleFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), noteExt)
}

// IsNoteFile reports whether name is a markdown note file.
func IsNoteFile(name string) bool {
	return strings.HasSuffix(name, noteExt) && !strings.HasPrefix(filepath.Base(name), ".")
}
