package dictation

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/dictanote/internal/notes"
)

// DefaultSaveDebounce is the quiet window before a commit is persisted.
const DefaultSaveDebounce = 300 * time.Millisecond

// Host is the text-editing surface dictation writes into. Positions are
// character (rune) offsets into the content.
type Host interface {
	CursorPosition() int
	// TextBefore returns the content in front of pos.
	TextBefore(pos int) string
	SpliceAt(pos int, text string)
	SetCursorPosition(pos int)
	Focus()
	// Snapshot returns the note fields to persist.
	Snapshot() (title, content string, images []notes.Image)
}

// Saver is the persistence collaborator.
type Saver interface {
	Save(ctx context.Context, noteID, title, content string, images []notes.Image) error
}

// Inserter commits utterances into a Host and schedules a debounced save.
//
// An Inserter is owned by a Loop; its methods must run on that loop.
type Inserter struct {
	noteID   string
	host     Host
	saver    Saver
	debounce time.Duration
	timers   *timerSet
	onCommit func(text string, cursor int)
}

// InserterConfig configures an [Inserter].
type InserterConfig struct {
	NoteID string
	Host   Host
	Saver  Saver
	// Debounce is the save quiet window. Defaults to 300ms.
	Debounce time.Duration
	// OnCommit, if set, is called after every commit with the inserted text
	// and the new cursor.
	OnCommit func(text string, cursor int)
}

// NewInserter returns an Inserter.
func NewInserter(loop *Loop, clock Clock, cfg InserterConfig) *Inserter {
	d := cfg.Debounce
	if d <= 0 {
		d = DefaultSaveDebounce
	}
	return &Inserter{
		noteID:   cfg.NoteID,
		host:     cfg.Host,
		saver:    cfg.Saver,
		debounce: d,
		timers:   newTimerSet(clock, loop),
		onCommit: cfg.OnCommit,
	}
}

// Commit splices text into the host at cursor, moves focus and selection to
// the end of the inserted text and returns that position. A save is
// scheduled; commits inside the quiet window are coalesced into one save.
func (in *Inserter) Commit(text string, cursor int) int {
	in.host.SpliceAt(cursor, text)
	next := cursor + utf8.RuneCountInString(text)
	in.host.SetCursorPosition(next)
	in.host.Focus()
	in.timers.arm(timerSave, in.debounce, in.save)
	if in.onCommit != nil {
		in.onCommit(text, next)
	}
	return next
}

// Insert reads the current cursor, formats text against the content before
// it and commits the result.
func (in *Inserter) Insert(text string, format Formatter) int {
	cursor := in.host.CursorPosition()
	return in.Commit(format(text, in.host.TextBefore(cursor)), cursor)
}

// SavePending reports whether a save is scheduled.
func (in *Inserter) SavePending() bool { return in.timers.pending(timerSave) }

// Cancel drops a scheduled save.
func (in *Inserter) Cancel() { in.timers.cancelAll() }

// Flush runs a scheduled save now instead of waiting for the quiet window.
func (in *Inserter) Flush() {
	if !in.timers.pending(timerSave) {
		return
	}
	in.timers.cancelAll()
	in.save()
}

// save hands the snapshot to the Saver off the loop; failures are the
// Saver's concern and are only logged.
func (in *Inserter) save() {
	if in.saver == nil {
		return
	}
	title, content, images := in.host.Snapshot()
	noteID := in.noteID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := in.saver.Save(ctx, noteID, title, content, images); err != nil {
			slog.Warn("dictation: save failed", "note_id", noteID, "err", err)
		}
	}()
}
