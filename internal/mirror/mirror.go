// Package mirror keeps a markdown vault directory in step with the note
// store. The store is the source of truth: files removed from disk never
// delete notes. Every file starts with a front matter block naming the note
// id, so file names are free to differ from titles.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/mindweave/internal/storage"
)

// ImportResult says what an import did to the store.
type ImportResult int

const (
	Unchanged ImportResult = iota
	Created
	Updated
)

func (r ImportResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Importer applies a vault document to the note store and returns the note
// as stored. A document without an ID is a new note. Implementations report
// Unchanged when title and content already match.
type Importer interface {
	ImportNote(ctx context.Context, doc Document) (Document, ImportResult, error)
}

// EventCallback is called after a vault file changed the store.
type EventCallback func(result ImportResult, title string)

// Mirror writes notes to the vault and imports vault edits. Each note owns
// one file, found through the id in its front matter.
type Mirror struct {
	store  storage.Provider
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	paths  map[string]string // note id -> vault path
	loaded bool
}

// New returns a Mirror over store. root is the absolute vault directory
// watched by Watch.
func New(store storage.Provider, root string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, root: root, logger: logger, paths: make(map[string]string)}
}

// WriteNote writes the file of note id. When the title no longer matches
// the file name the file is moved first.
func (m *Mirror) WriteNote(id, title, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(); err != nil {
		return err
	}

	cur := m.paths[id]
	want := m.pathFor(id, title, cur)
	if cur != "" && cur != want && m.store.Exists(cur) {
		if err := m.store.Move(cur, want); err != nil {
			return err
		}
	}
	data, err := encodeFile(Document{ID: id, Title: title, Content: content})
	if err != nil {
		return err
	}
	if err := m.store.Write(want, data); err != nil {
		return err
	}
	m.paths[id] = want
	return nil
}

// RemoveNote deletes the file of note id if present.
func (m *Mirror) RemoveNote(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(); err != nil {
		return err
	}
	p, ok := m.paths[id]
	if !ok {
		return nil
	}
	delete(m.paths, id)
	if !m.store.Exists(p) {
		return nil
	}
	return m.store.Delete(p)
}

// pathFor picks the file of note id. cur is kept while its name still
// matches title. Otherwise the plain title file is used unless something
// else occupies it, in which case the name gets a short id suffix.
func (m *Mirror) pathFor(id, title, cur string) string {
	if cur != "" && nameMatches(cur, title, id) {
		return cur
	}
	plain := storage.Filename(title)
	suffixed := storage.FilenameWithSuffix(title, shortID(id))
	if owner, taken := m.owner(plain); taken {
		if owner != id {
			return suffixed
		}
	} else if m.store.Exists(plain) {
		return suffixed
	}
	return plain
}

func (m *Mirror) owner(path string) (string, bool) {
	for id, p := range m.paths {
		if p == path {
			return id, true
		}
	}
	return "", false
}

// load indexes the ids of existing vault files once. When two files carry
// the same id, the one named after its title keeps it.
func (m *Mirror) load() error {
	if m.loaded {
		return nil
	}
	files, err := m.store.List("")
	if err != nil {
		return err
	}
	named := make(map[string]bool)
	for _, f := range files {
		data, err := m.store.Read(f.Path)
		if err != nil {
			m.logger.Warn("mirror: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		doc := decodeFile(data, storage.TitleFromPath(f.Path))
		if doc.ID == "" {
			continue
		}
		match := nameMatches(f.Path, doc.Title, doc.ID)
		if _, dup := m.paths[doc.ID]; dup && (named[doc.ID] || !match) {
			continue
		}
		m.paths[doc.ID] = f.Path
		named[doc.ID] = match
	}
	m.loaded = true
	return nil
}

// Sync imports every vault file into the store. Per-file failures are
// logged and skipped.
func (m *Mirror) Sync(ctx context.Context, imp Importer) error {
	m.mu.Lock()
	m.paths = make(map[string]string)
	m.loaded = false
	err := m.load()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.syncDir(ctx, "", imp, nil)
}

func (m *Mirror) syncDir(ctx context.Context, dir string, imp Importer, cb EventCallback) error {
	files, err := m.store.List(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.importFile(ctx, f.Path, imp, cb)
	}
	return nil
}

func (m *Mirror) importFile(ctx context.Context, rel string, imp Importer, cb EventCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(); err != nil {
		m.logger.Warn("mirror: index failed", slog.String("error", err.Error()))
		return
	}

	data, err := m.store.Read(rel)
	if err != nil {
		m.logger.Warn("mirror: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	doc := decodeFile(data, storage.TitleFromPath(rel))
	stamp := doc.ID == ""
	if doc.ID != "" && !nameMatches(rel, doc.Title, doc.ID) {
		// Renamed or copied on disk: the file name is the title.
		doc.Title = storage.TitleFromPath(rel)
		stamp = true
	}
	if owner, ok := m.paths[doc.ID]; doc.ID != "" && ok && owner != rel && m.store.Exists(owner) {
		// A copy of another note's file becomes a note of its own.
		doc.ID = ""
		stamp = true
	}

	stored, res, err := imp.ImportNote(ctx, doc)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("mirror: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
		return
	}
	m.paths[stored.ID] = rel
	if stamp {
		m.stamp(rel, data, stored)
	}
	if res == Unchanged {
		return
	}
	m.logger.Debug("mirror: imported", slog.String("path", rel), slog.String("op", res.String()))
	if cb != nil {
		cb(res, stored.Title)
	}
}

// stamp rewrites rel with the front matter of doc so the next import
// resolves the same note. It backs off when the file changed after it was
// read; the change arrives as another import.
func (m *Mirror) stamp(rel string, read []byte, doc Document) {
	if cur, err := m.store.Read(rel); err != nil || !bytes.Equal(cur, read) {
		return
	}
	out, err := encodeFile(doc)
	if err != nil || bytes.Equal(out, read) {
		return
	}
	if err := m.store.Write(rel, out); err != nil {
		m.logger.Warn("mirror: stamp failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// nameMatches reports whether path is a file name the mirror would give
// note id titled title.
func nameMatches(path, title, id string) bool {
	base := filepath.Base(path)
	return storage.TitleFromPath(path) == title ||
		base == storage.Filename(title) ||
		base == storage.FilenameWithSuffix(title, shortID(id))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
