package mirror

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mindweave/internal/storage"
)

// memImporter is an in-memory Importer keyed by note id.
type memImporter struct {
	mu    sync.Mutex
	notes map[string]Document
}

func newMemImporter() *memImporter {
	return &memImporter{notes: make(map[string]Document)}
}

func (m *memImporter) ImportNote(_ context.Context, doc Document) (Document, ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	old, ok := m.notes[doc.ID]
	switch {
	case !ok:
		m.notes[doc.ID] = doc
		return doc, Created, nil
	case old != doc:
		m.notes[doc.ID] = doc
		return doc, Updated, nil
	}
	return old, Unchanged, nil
}

func (m *memImporter) byTitle(title string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.notes {
		if d.Title == title {
			return d, true
		}
	}
	return Document{}, false
}

func (m *memImporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

func testMirror(t *testing.T) (string, *Mirror) {
	t.Helper()
	vaultDir := t.TempDir()
	fs, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return fs.Root(), New(fs, fs.Root(), logger)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func readDoc(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return decodeFile(data, storage.TitleFromPath(path))
}

func TestFrontMatter(t *testing.T) {
	id := uuid.NewString()
	for _, content := range []string{"", "plain", "---\nnot: ours\n---\nbody", "line\n---\nline"} {
		data, err := encodeFile(Document{ID: id, Title: "Meeting: Monday", Content: content})
		if err != nil {
			t.Fatal(err)
		}
		got := decodeFile(data, "ignored")
		if got.ID != id || got.Title != "Meeting: Monday" || got.Content != content {
			t.Errorf("round trip of %q = %+v", content, got)
		}
	}

	foreign := "---\ntags: [a]\n---\nbody"
	if got := decodeFile([]byte(foreign), "Stem"); got.ID != "" || got.Title != "Stem" || got.Content != foreign {
		t.Errorf("front matter without a note id = %+v", got)
	}
	if got := decodeFile([]byte("---\nid: 42\n---\nx"), "Stem"); got.ID != "" {
		t.Errorf("non-UUID id accepted: %+v", got)
	}
	if got := decodeFile([]byte("---\nunterminated"), "Stem"); got.Content != "---\nunterminated" {
		t.Errorf("unterminated block = %+v", got)
	}
}

func TestWriteMoveRemove(t *testing.T) {
	vaultDir, m := testMirror(t)
	id := uuid.NewString()

	if err := m.WriteNote(id, "Plan", "v1"); err != nil {
		t.Fatalf("WriteNote: %v", err)
	}
	if err := m.WriteNote(id, "Roadmap", "v2"); err != nil {
		t.Fatalf("WriteNote after rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Plan.md")); !os.IsNotExist(err) {
		t.Error("old file should be gone after rename")
	}
	if d := readDoc(t, filepath.Join(vaultDir, "Roadmap.md")); d.ID != id || d.Content != "v2" {
		t.Fatalf("Roadmap.md = %+v", d)
	}

	if err := m.RemoveNote(id); err != nil {
		t.Fatalf("RemoveNote: %v", err)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Roadmap.md")); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}
	if err := m.RemoveNote(id); err != nil {
		t.Errorf("removing a missing file should be a no-op: %v", err)
	}
}

func TestWrite_SharedTitleGetsOwnFile(t *testing.T) {
	vaultDir, m := testMirror(t)
	a, b := uuid.NewString(), uuid.NewString()

	_ = m.WriteNote(a, "Untitled", "first")
	_ = m.WriteNote(b, "Untitled", "second")

	if d := readDoc(t, filepath.Join(vaultDir, "Untitled.md")); d.ID != a || d.Content != "first" {
		t.Errorf("Untitled.md = %+v", d)
	}
	other := filepath.Join(vaultDir, storage.FilenameWithSuffix("Untitled", shortID(b)))
	if d := readDoc(t, other); d.ID != b || d.Content != "second" {
		t.Errorf("%s = %+v", other, d)
	}

	// Renaming a leaves b's file alone.
	_ = m.WriteNote(a, "Renamed", "first")
	if d := readDoc(t, other); d.ID != b || d.Content != "second" {
		t.Errorf("b's file changed: %+v", d)
	}
	if d := readDoc(t, filepath.Join(vaultDir, "Renamed.md")); d.ID != a {
		t.Errorf("Renamed.md = %+v", d)
	}
}

func TestWrite_FindsFilesFromEarlierRuns(t *testing.T) {
	vaultDir, first := testMirror(t)
	id := uuid.NewString()
	_ = first.WriteNote(id, "Old name", "body")

	fs, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	second := New(fs, vaultDir, nil)
	if err := second.WriteNote(id, "New name", "body"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Old name.md")); !os.IsNotExist(err) {
		t.Error("file from the earlier run should have moved")
	}
	if d := readDoc(t, filepath.Join(vaultDir, "New name.md")); d.ID != id {
		t.Errorf("New name.md = %+v", d)
	}
}

func TestSync_StampsPlainFiles(t *testing.T) {
	vaultDir, m := testMirror(t)
	_ = os.MkdirAll(filepath.Join(vaultDir, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(vaultDir, "Alpha.md"), []byte("a [[Beta]]"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "sub", "Beta.md"), []byte("b"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "notes.txt"), []byte("skip"), 0o644)

	imp := newMemImporter()
	ctx := context.Background()
	if err := m.Sync(ctx, imp); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	alpha, ok := imp.byTitle("Alpha")
	if !ok || alpha.Content != "a [[Beta]]" {
		t.Errorf("Alpha = %+v, %v", alpha, ok)
	}
	if _, ok := imp.byTitle("Beta"); !ok {
		t.Error("nested file not imported")
	}
	if d := readDoc(t, filepath.Join(vaultDir, "Alpha.md")); d.ID != alpha.ID || d.Content != alpha.Content {
		t.Errorf("Alpha.md not stamped with its id: %+v", d)
	}

	if err := m.Sync(ctx, imp); err != nil {
		t.Fatal(err)
	}
	if n := imp.count(); n != 2 {
		t.Errorf("after second Sync: %d notes, want 2", n)
	}
}

func TestSync_UnsafeFileNameKeepsTitle(t *testing.T) {
	vaultDir, m := testMirror(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "a: b.md"), []byte("body"), 0o644)

	imp := newMemImporter()
	ctx := context.Background()
	_ = m.Sync(ctx, imp)
	before, _ := os.ReadFile(filepath.Join(vaultDir, "a: b.md"))
	_ = m.Sync(ctx, imp)
	after, _ := os.ReadFile(filepath.Join(vaultDir, "a: b.md"))

	if _, ok := imp.byTitle("a: b"); !ok || imp.count() != 1 {
		t.Errorf("notes = %d, want one titled %q", imp.count(), "a: b")
	}
	if string(before) != string(after) {
		t.Errorf("second Sync rewrote the file: %q -> %q", before, after)
	}
}

func TestSync_CopiedFileBecomesNewNote(t *testing.T) {
	vaultDir, m := testMirror(t)
	id := uuid.NewString()
	_ = m.WriteNote(id, "Original", "same body")
	data, _ := os.ReadFile(filepath.Join(vaultDir, "Original.md"))
	_ = os.WriteFile(filepath.Join(vaultDir, "Original copy.md"), data, 0o644)

	imp := newMemImporter()
	if err := m.Sync(context.Background(), imp); err != nil {
		t.Fatal(err)
	}
	if n := imp.count(); n != 2 {
		t.Fatalf("notes = %d, want 2", n)
	}
	a := readDoc(t, filepath.Join(vaultDir, "Original.md"))
	b := readDoc(t, filepath.Join(vaultDir, "Original copy.md"))
	if a.ID == b.ID {
		t.Error("copy still shares the original id")
	}
	if b.Title != "Original copy" || b.Content != "same body" {
		t.Errorf("copy = %+v", b)
	}
}

func TestWatcher_NewFileImported(t *testing.T) {
	vaultDir, m := testMirror(t)
	imp := newMemImporter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go m.Watch(ctx, imp, func(res ImportResult, title string) {
		mu.Lock()
		events = append(events, res.String()+":"+title)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "New.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := imp.byTitle("New")
		return ok
	}, "new file not imported by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:New" {
				return true
			}
		}
		return false
	}, "expected created:New callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, m := testMirror(t)
	imp := newMemImporter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Watch(ctx, imp, nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "Deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := imp.byTitle("Deep")
		return ok
	}, "file in new subdir not imported by watcher")
}

func TestWatcher_DeleteKeepsNote(t *testing.T) {
	vaultDir, m := testMirror(t)
	imp := newMemImporter()
	_ = os.WriteFile(filepath.Join(vaultDir, "Keep.md"), []byte("body"), 0o644)
	_ = m.Sync(context.Background(), imp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, imp, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "Keep.md"))
	time.Sleep(400 * time.Millisecond)

	if _, ok := imp.byTitle("Keep"); !ok {
		t.Error("removing the file must not remove the note")
	}
}

func TestWatcher_RenameImportsNewTitle(t *testing.T) {
	vaultDir, m := testMirror(t)
	imp := newMemImporter()
	_ = os.WriteFile(filepath.Join(vaultDir, "Old.md"), []byte("# Rename"), 0o644)
	_ = m.Sync(context.Background(), imp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, imp, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "Old.md"), filepath.Join(vaultDir, "Renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := imp.byTitle("Renamed")
		return ok
	}, "renamed file not imported")
}
