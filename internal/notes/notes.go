// Package notes owns the note model, its persistence and the in-memory editor
// buffer that dictation writes into.
//
// A [Store] persists notes and a handful of user settings. Two
// implementations ship with the module: the sqlite package (the default, a
// local file) and the postgres package. [Service] layers the note operations
// the API exposes on top of a Store, and [Editor] holds the content of the
// note a client is currently editing.
package notes

import (
	"context"
	"errors"
	"time"
)

// DefaultTitle is the title of a freshly created note.
const DefaultTitle = "Untitled Note"

// MaxImageSize is the largest accepted image upload in bytes.
const MaxImageSize = 5 * 1024 * 1024

var (
	// ErrNotFound is returned when a note does not exist.
	ErrNotFound = errors.New("notes: note not found")

	// ErrNotImage is returned for uploads without an image content type.
	ErrNotImage = errors.New("File must be an image")

	// ErrImageTooLarge is returned for uploads above MaxImageSize.
	ErrImageTooLarge = errors.New("Image size must be less than 5MB")
)

// Note is one user note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Images    []Image   `json:"images"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Image is an attachment stored inline as a data URL.
type Image struct {
	ID         string    `json:"id"`
	DataURL    string    `json:"dataUrl"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Store persists notes and settings. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create inserts n. CreatedAt and UpdatedAt must already be set.
	Create(ctx context.Context, n *Note) error

	// Get returns the note with id, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id string) (*Note, error)

	// List returns every note, newest first.
	List(ctx context.Context) ([]Note, error)

	// Update replaces title, content, images and UpdatedAt of an existing
	// note. It returns ErrNotFound if the note does not exist.
	Update(ctx context.Context, n *Note) error

	// Delete removes a note. It returns ErrNotFound if the note does not
	// exist.
	Delete(ctx context.Context, id string) error

	// GetSetting returns the value stored under key. ok is false when the
	// key was never written.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)

	// PutSetting stores value under key, replacing any previous value.
	PutSetting(ctx context.Context, key, value string) error
}

// EmptyImages returns images, or an empty non-nil slice when images is nil,
// so JSON encoding yields "[]".
func EmptyImages(images []Image) []Image {
	if images == nil {
		return []Image{}
	}
	return images
}
