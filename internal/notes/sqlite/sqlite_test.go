package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/dictanote/internal/notes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func testNote(id string, created time.Time) *notes.Note {
	return &notes.Note{
		ID:        id,
		Title:     "Title " + id,
		Content:   "content of " + id,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStore_CreateGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	n := testNote("a", created)
	n.Images = []notes.Image{{ID: "img1", DataURL: "data:image/png;base64,AA==", FileName: "x.png", FileSize: 1, UploadedAt: created}}
	if err := s.Create(ctx, n); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Title != n.Title || got.Content != n.Content || !got.CreatedAt.Equal(created) {
		t.Errorf("Get = %+v", got)
	}
	if len(got.Images) != 1 || got.Images[0].FileName != "x.png" || !got.Images[0].UploadedAt.Equal(created) {
		t.Errorf("images = %+v", got.Images)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.Get(context.Background(), "missing")
	if err != nil || got != nil {
		t.Errorf("Get(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Create(ctx, testNote(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
		t.Errorf("List order = %v", list)
	}
	if list[0].Images == nil {
		t.Error("Images decoded as nil, want empty slice")
	}
}

func TestStore_Update(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	n := testNote("a", created)
	if err := s.Create(ctx, n); err != nil {
		t.Fatal(err)
	}
	n.Title, n.Content, n.UpdatedAt = "new title", "new content", created.Add(time.Minute)
	if err := s.Update(ctx, n); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get(ctx, "a")
	if got.Title != "new title" || got.Content != "new content" || !got.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("after update = %+v", got)
	}

	missing := testNote("zzz", created)
	if err := s.Update(ctx, missing); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testNote("a", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestStore_Settings(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, "theme"); err != nil || ok {
		t.Fatalf("GetSetting(unset) ok=%v err=%v", ok, err)
	}
	if err := s.PutSetting(ctx, "theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSetting(ctx, "theme", "surprise"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.GetSetting(ctx, "theme")
	if err != nil || !ok || v != "surprise" {
		t.Errorf("GetSetting = %q, %v, %v", v, ok, err)
	}
}

func TestStore_FilePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, testNote("keep", time.Now())); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "keep")
	if err != nil || got == nil {
		t.Errorf("Get after reopen = %v, %v", got, err)
	}
}
