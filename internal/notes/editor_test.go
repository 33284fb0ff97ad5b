package notes_test

import (
	"testing"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/notes"
)

var (
	_ dictation.Host  = (*notes.Editor)(nil)
	_ dictation.Saver = (*notes.Service)(nil)
)

func TestEditor_SpliceAndCursor(t *testing.T) {
	t.Parallel()
	e := notes.NewEditor(&notes.Note{ID: "n1", Title: "Trip", Content: "Day one"})

	if got := e.CursorPosition(); got != 7 {
		t.Errorf("initial cursor = %d, want end of content", got)
	}
	e.SetCursorPosition(3)
	if got := e.TextBefore(e.CursorPosition()); got != "Day" {
		t.Errorf("TextBefore = %q", got)
	}
	e.SpliceAt(3, " trip")
	if got := e.Content(); got != "Day trip one" {
		t.Errorf("content = %q", got)
	}

	e.SetCursorPosition(100)
	if got := e.CursorPosition(); got != 12 {
		t.Errorf("cursor clamped = %d, want 12", got)
	}
}

func TestEditor_RuneOffsets(t *testing.T) {
	t.Parallel()
	e := notes.NewEditor(&notes.Note{Content: "café"})

	if got := e.CursorPosition(); got != 4 {
		t.Fatalf("cursor = %d, want 4", got)
	}
	e.SpliceAt(4, " crème")
	if got := e.TextBefore(5); got != "café " {
		t.Errorf("TextBefore(5) = %q", got)
	}
}

func TestEditor_SetContentClampsCursor(t *testing.T) {
	t.Parallel()
	e := notes.NewEditor(&notes.Note{Content: "a long line"})
	e.SetContent("short")
	if got := e.CursorPosition(); got != 5 {
		t.Errorf("cursor = %d, want 5", got)
	}
}

func TestEditor_FocusPublishes(t *testing.T) {
	t.Parallel()
	e := notes.NewEditor(&notes.Note{Content: "hi"})

	var gotContent string
	var gotCursor int
	e.OnFocus(func(content string, cursor int) {
		gotContent, gotCursor = content, cursor
	})
	e.SpliceAt(2, " there")
	e.SetCursorPosition(8)
	e.Focus()

	if gotContent != "hi there" || gotCursor != 8 {
		t.Errorf("focus published %q at %d", gotContent, gotCursor)
	}

	e.OnFocus(nil)
	e.Focus()
}

func TestEditor_Snapshot(t *testing.T) {
	t.Parallel()
	e := notes.NewEditor(&notes.Note{ID: "n1", Title: "T", Content: "c", Images: []notes.Image{{ID: "img"}}})
	e.SetTitle("New")

	title, content, images := e.Snapshot()
	if title != "New" || content != "c" || len(images) != 1 || images[0].ID != "img" {
		t.Errorf("Snapshot = %q %q %+v", title, content, images)
	}
	if e.NoteID() != "n1" {
		t.Errorf("NoteID = %q", e.NoteID())
	}
}
