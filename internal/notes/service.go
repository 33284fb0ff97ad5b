package notes

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Upload is one image file submitted for attachment.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service implements the note operations on top of a [Store].
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithNow overrides the time source used for timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how note and image IDs are generated.
func WithIDGenerator(f func() string) ServiceOption {
	return func(s *Service) { s.newID = f }
}

// NewService returns a Service persisting to store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// Create adds an empty note titled [DefaultTitle].
func (s *Service) Create(ctx context.Context) (*Note, error) {
	now := s.now().UTC()
	n := &Note{
		ID:        s.newID(),
		Title:     DefaultTitle,
		Images:    []Image{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("notes: create: %w", err)
	}
	slog.Info("note created", "note_id", n.ID)
	return n, nil
}

// List returns every note, newest first.
func (s *Service) List(ctx context.Context) ([]Note, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	slices.SortStableFunc(list, func(a, b Note) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return list, nil
}

// Get returns the note with id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Note, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("notes: get %q: %w", id, err)
	}
	if n == nil {
		return nil, ErrNotFound
	}
	n.Images = EmptyImages(n.Images)
	return n, nil
}

// Update replaces the editable fields of a note and bumps UpdatedAt.
func (s *Service) Update(ctx context.Context, id, title, content string, images []Image) (*Note, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Title = title
	n.Content = content
	n.Images = EmptyImages(images)
	n.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("notes: update %q: %w", id, err)
	}
	return n, nil
}

// Save persists a dictation snapshot. It is the Saver used by dictation
// pipelines.
func (s *Service) Save(ctx context.Context, noteID, title, content string, images []Image) error {
	_, err := s.Update(ctx, noteID, title, content, images)
	return err
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("notes: delete %q: %w", id, err)
	}
	slog.Info("note deleted", "note_id", id)
	return nil
}

// AttachImages validates every upload, encodes them as data URLs and appends
// them to the note. Nothing is attached if any upload is rejected.
func (s *Service) AttachImages(ctx context.Context, id string, files []Upload) (*Note, error) {
	added := make([]Image, len(files))
	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			img, err := s.encodeImage(f)
			added[i] = img
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, id, n.Title, n.Content, append(n.Images, added...))
}

// RemoveImage drops one attachment. Removing an unknown image leaves the
// note unchanged.
func (s *Service) RemoveImage(ctx context.Context, id, imageID string) (*Note, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	images := slices.DeleteFunc(slices.Clone(n.Images), func(img Image) bool { return img.ID == imageID })
	return s.Update(ctx, id, n.Title, n.Content, images)
}

func (s *Service) encodeImage(f Upload) (Image, error) {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrNotImage, f.FileName)
	}
	if len(f.Data) > MaxImageSize {
		return Image{}, fmt.Errorf("%w: %s", ErrImageTooLarge, f.FileName)
	}
	return Image{
		ID:         s.newID(),
		DataURL:    "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
		FileName:   f.FileName,
		FileSize:   int64(len(f.Data)),
		UploadedAt: s.now().UTC(),
	}, nil
}
