// Package noteservice owns note state: it keeps links and tags in step with
// content, computes backlinks on read, and fans changes out to the vault
// mirror and event subscribers.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/checksum"
	"github.com/starford/mindweave/internal/graph"
	"github.com/starford/mindweave/internal/mirror"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/parser"
	"github.com/starford/mindweave/internal/preview"
	"github.com/starford/mindweave/internal/store"
)

// DefaultTitle is used when a note is created without one.
const DefaultTitle = "Untitled"

const (
	maxTitleLen = 500
	maxIDLen    = 64
)

// Notifier receives note change events.
type Notifier interface {
	PublishNoteEvent(kind models.ChangeKind, id, title string)
}

// Mirror receives note writes for the markdown vault.
type Mirror interface {
	WriteNote(id, title, content string) error
	RemoveNote(id string) error
}

// NewNote is the input of CreateNote.
type NewNote struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FolderID string `json:"folder_id"`
}

// Validate checks NewNote fields.
func (n NewNote) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&n.FolderID, validation.RuneLength(0, maxIDLen)),
	)
}

// NoteUpdate is a partial update. Nil fields are left untouched; an empty
// FolderID clears the folder.
type NoteUpdate struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	FolderID   *string `json:"folder_id"`
	IsFavorite *bool   `json:"is_favorite"`
}

// Validate checks NoteUpdate fields.
func (u NoteUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.RuneLength(0, maxTitleLen)),
	)
}

// NoteRef identifies a note by id and title.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMirror sets the vault mirror.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithLogger sets the logger used for non-fatal mirror failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates note persistence and derived data.
type Service struct {
	db       *store.DB
	notifier Notifier
	mirror   Mirror
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a note service over db.
func NewService(db *store.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateNote stores a new note. Links and tags are derived from content.
func (s *Service) CreateNote(ctx context.Context, in NewNote) (*models.Note, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	n, err := s.insert(ctx, "", in)
	if err != nil {
		return nil, err
	}
	s.mirrorWrite(n)
	s.notify(models.ChangeCreated, n)
	return s.GetNote(ctx, n.ID)
}

// insert stores a new note under id, or a fresh id when id is empty.
func (s *Service) insert(ctx context.Context, id string, in NewNote) (*models.Note, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	n := models.Note{
		ID:        id,
		Title:     cleanTitle(in.Title),
		FolderID:  in.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	setContent(&n, in.Content)
	if err := s.db.InsertNote(ctx, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote applies u to the note with id. When ifMatch is non-empty it
// must equal the stored checksum, otherwise apperr.ErrConflict is returned.
func (s *Service) UpdateNote(ctx context.Context, id string, u NoteUpdate, ifMatch string) (*models.Note, error) {
	if err := u.Validate(); err != nil {
		return nil, invalid(err)
	}
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != n.Checksum {
		return nil, apperr.ErrConflict
	}

	oldTitle := n.Title
	if u.Title != nil {
		n.Title = cleanTitle(*u.Title)
	}
	if u.FolderID != nil {
		n.FolderID = *u.FolderID
	}
	if u.IsFavorite != nil {
		n.IsFavorite = *u.IsFavorite
	}
	oldChecksum := n.Checksum
	if u.Content != nil {
		setContent(n, *u.Content)
	}
	n.UpdatedAt = s.advance(n.UpdatedAt)

	if err := s.db.UpdateNote(ctx, *n); err != nil {
		return nil, err
	}

	if n.Title != oldTitle || n.Checksum != oldChecksum {
		s.mirrorWrite(n)
	}
	s.notify(models.ChangeUpdated, n)
	return s.GetNote(ctx, n.ID)
}

// DeleteNote removes the note with id. Tasks attached to it are detached.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteNote(ctx, id); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.RemoveNote(n.ID); err != nil {
			s.logger.Warn("mirror: remove failed", slog.String("id", n.ID), slog.String("error", err.Error()))
		}
	}
	s.notify(models.ChangeDeleted, n)
	return nil
}

// ImportNote applies a vault document to the store. A document whose ID
// names a stored note updates that note's title and content. Any other
// document becomes a new note, keeping its ID when it has one. The mirror
// is not written back.
func (s *Service) ImportNote(ctx context.Context, doc mirror.Document) (mirror.Document, mirror.ImportResult, error) {
	if doc.ID != "" {
		n, err := s.db.GetNote(ctx, doc.ID)
		if err == nil {
			return s.applyImport(ctx, n, doc)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return mirror.Document{}, mirror.Unchanged, err
		}
	}
	created, err := s.insert(ctx, doc.ID, NewNote{Title: doc.Title, Content: doc.Content})
	if err != nil {
		return mirror.Document{}, mirror.Unchanged, err
	}
	s.notify(models.ChangeCreated, created)
	return asDocument(created), mirror.Created, nil
}

func (s *Service) applyImport(ctx context.Context, n *models.Note, doc mirror.Document) (mirror.Document, mirror.ImportResult, error) {
	title := cleanTitle(doc.Title)
	content := cleanContent(doc.Content)
	if n.Title == title && n.Checksum == checksum.String(content) {
		return asDocument(n), mirror.Unchanged, nil
	}
	n.Title = title
	setContent(n, content)
	n.UpdatedAt = s.advance(n.UpdatedAt)
	if err := s.db.UpdateNote(ctx, *n); err != nil {
		return mirror.Document{}, mirror.Unchanged, err
	}
	s.notify(models.ChangeUpdated, n)
	return asDocument(n), mirror.Updated, nil
}

func asDocument(n *models.Note) mirror.Document {
	return mirror.Document{ID: n.ID, Title: n.Title, Content: n.Content}
}

// GetNote returns the note with id, backlinks included.
func (s *Service) GetNote(ctx context.Context, id string) (*models.Note, error) {
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	backlinks, err := s.backlinkIndex(ctx)
	if err != nil {
		return nil, err
	}
	n.Backlinks = nonNil(backlinks[n.ID])
	return n, nil
}

// NoteByTitle returns the oldest note titled title, backlinks included.
func (s *Service) NoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	n, err := s.db.FindNoteByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	return s.GetNote(ctx, n.ID)
}

// Backlinks returns the notes linking to the note with id.
func (s *Service) Backlinks(ctx context.Context, id string) ([]NoteRef, error) {
	if _, err := s.db.GetNote(ctx, id); err != nil {
		return nil, err
	}
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(views))
	var ids []string
	for _, v := range views {
		titles[v.ID] = v.Title
		if v.ID == id {
			ids = v.Backlinks
		}
	}
	out := make([]NoteRef, 0, len(ids))
	for _, src := range ids {
		out = append(out, NoteRef{ID: src, Title: titles[src]})
	}
	return out, nil
}

// ListNotes returns notes matching f, most recently updated first, with
// backlinks computed over the whole collection.
func (s *Service) ListNotes(ctx context.Context, f store.NoteFilter) ([]models.Note, error) {
	notes, err := s.db.ListNotes(ctx, f)
	if err != nil {
		return nil, err
	}
	backlinks, err := s.backlinkIndex(ctx)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Backlinks = nonNil(backlinks[notes[i].ID])
	}
	return notes, nil
}

// NotesByTag returns notes carrying tag.
func (s *Service) NotesByTag(ctx context.Context, tag string) ([]models.Note, error) {
	return s.ListNotes(ctx, store.NoteFilter{Tag: tag})
}

// SearchNotes matches query against titles and content. An empty query
// matches nothing.
func (s *Service) SearchNotes(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if query == "" {
		return []store.SearchResult{}, nil
	}
	return s.db.SearchNotes(ctx, query, limit)
}

// Tags returns every tag with the number of notes carrying it.
func (s *Service) Tags(ctx context.Context) ([]graph.TagCount, error) {
	st, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return st.TagCounts, nil
}

// CreateFolder stores a new folder under parentID ("" for top level).
func (s *Service) CreateFolder(ctx context.Context, name, parentID string) (*models.Folder, error) {
	if err := validation.Validate(name, validation.Required, validation.RuneLength(1, maxTitleLen)); err != nil {
		return nil, invalid(fmt.Errorf("name: %w", err))
	}
	f := models.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: s.now(),
	}
	if err := s.db.InsertFolder(ctx, f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns every folder.
func (s *Service) ListFolders(ctx context.Context) ([]models.Folder, error) {
	return s.db.ListFolders(ctx)
}

// Views returns the whole collection as graph views with backlinks.
func (s *Service) Views(ctx context.Context) ([]graph.NoteView, error) {
	notes, err := s.db.ListNotes(ctx, store.NoteFilter{})
	if err != nil {
		return nil, err
	}
	views := make([]graph.NoteView, len(notes))
	for i, n := range notes {
		views[i] = graph.NoteView{ID: n.ID, Title: n.Title, Links: n.Links, Tags: n.Tags}
	}
	return graph.ComputeBacklinks(views), nil
}

// Stats aggregates tag counts and connectivity over the collection.
func (s *Service) Stats(ctx context.Context) (graph.Stats, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	return graph.Aggregate(views), nil
}

// Graph builds the node/edge view of the collection.
func (s *Service) Graph(ctx context.Context, opts graph.Options) (graph.Graph, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return graph.Graph{}, err
	}
	return graph.Build(views, opts), nil
}

// Preview renders content as preview HTML.
func (s *Service) Preview(content string) string {
	return preview.Render(content)
}

// Document renders the note with id as a full HTML document body.
func (s *Service) Document(ctx context.Context, id string) (string, error) {
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return "", err
	}
	return preview.Document(n.Content)
}

// Checklist returns the markdown checklist items of the note with id.
func (s *Service) Checklist(ctx context.Context, id string) ([]parser.ChecklistItem, error) {
	n, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.ExtractTasks(n.Content), nil
}

func (s *Service) backlinkIndex(ctx context.Context) (map[string][]string, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(views))
	for _, v := range views {
		out[v.ID] = v.Backlinks
	}
	return out, nil
}

// advance returns the current time, or just after prev when the clock has
// not moved past it.
func (s *Service) advance(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (s *Service) notify(kind models.ChangeKind, n *models.Note) {
	if s.notifier != nil {
		s.notifier.PublishNoteEvent(kind, n.ID, n.Title)
	}
}

func (s *Service) mirrorWrite(n *models.Note) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.WriteNote(n.ID, n.Title, n.Content); err != nil {
		s.logger.Warn("mirror: write failed", slog.String("id", n.ID), slog.String("error", err.Error()))
	}
}

// setContent replaces content and everything derived from it. Invalid
// UTF-8 is replaced first so the stored links and tags, which are kept as
// JSON, stay exactly what the stored content yields.
func setContent(n *models.Note, content string) {
	content = cleanContent(content)
	res := parser.Extract(content)
	n.Content = content
	n.Links = res.Links
	n.Tags = res.Tags
	n.Checksum = checksum.String(content)
}

func cleanContent(s string) string {
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// cleanTitle repairs invalid UTF-8 and substitutes DefaultTitle for "".
func cleanTitle(s string) string {
	if s = cleanContent(s); s == "" {
		return DefaultTitle
	}
	return s
}

func invalid(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
