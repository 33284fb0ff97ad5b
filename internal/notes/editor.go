package notes

import (
	"slices"
	"sync"
)

// FocusFunc receives the editor state each time dictation hands focus back
// to the editing surface.
type FocusFunc func(content string, cursor int)

// Editor is the live text buffer of the note a client is editing. Positions
// are rune offsets. An Editor is safe for concurrent use: dictation mutates
// it from its pipeline while the client updates title, content and cursor.
type Editor struct {
	mu      sync.Mutex
	noteID  string
	title   string
	content []rune
	cursor  int
	images  []Image
	onFocus FocusFunc
}

// NewEditor opens n for editing with the cursor at the end of its content.
func NewEditor(n *Note) *Editor {
	content := []rune(n.Content)
	return &Editor{
		noteID:  n.ID,
		title:   n.Title,
		content: content,
		cursor:  len(content),
		images:  slices.Clone(n.Images),
	}
}

// NoteID returns the ID of the note being edited.
func (e *Editor) NoteID() string { return e.noteID }

// OnFocus registers f to be called from Focus. A nil f unregisters.
func (e *Editor) OnFocus(f FocusFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFocus = f
}

func (e *Editor) CursorPosition() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Editor) TextBefore(pos int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.content[:e.clamp(pos)])
}

func (e *Editor) SpliceAt(pos int, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = slices.Insert(e.content, e.clamp(pos), []rune(text)...)
}

func (e *Editor) SetCursorPosition(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = e.clamp(pos)
}

// Focus publishes the current content and cursor to the registered
// FocusFunc.
func (e *Editor) Focus() {
	e.mu.Lock()
	f, content, cursor := e.onFocus, string(e.content), e.cursor
	e.mu.Unlock()
	if f != nil {
		f(content, cursor)
	}
}

// Snapshot returns the fields to persist.
func (e *Editor) Snapshot() (string, string, []Image) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title, string(e.content), slices.Clone(e.images)
}

// Content returns the current text.
func (e *Editor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.content)
}

// SetContent replaces the text after a client-side edit. The cursor is
// clamped to the new length.
func (e *Editor) SetContent(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content = []rune(content)
	e.cursor = e.clamp(e.cursor)
}

// SetTitle replaces the title.
func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

// SetImages replaces the attachments, e.g. after an upload.
func (e *Editor) SetImages(images []Image) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.images = slices.Clone(images)
}

// clamp must be called with mu held.
func (e *Editor) clamp(pos int) int {
	return max(0, min(pos, len(e.content)))
}
