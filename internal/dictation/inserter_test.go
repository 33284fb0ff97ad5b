package dictation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/dictation/mock"
)

type insHarness struct {
	loop  *dictation.Loop
	clock *mock.Clock
	host  *mock.Host
	saver *mock.Saver
	ins   *dictation.Inserter
}

func newInsHarness(t *testing.T, content string, cursor int) *insHarness {
	t.Helper()
	h := &insHarness{
		loop:  dictation.NewLoop(),
		clock: mock.NewClock(),
		host:  mock.NewHost("Groceries", content, cursor),
		saver: &mock.Saver{},
	}
	h.ins = dictation.NewInserter(h.loop, h.clock, dictation.InserterConfig{
		NoteID: "note-1",
		Host:   h.host,
		Saver:  h.saver,
	})
	t.Cleanup(h.loop.Close)
	return h
}

func (h *insHarness) commit(text string, cursor int) int {
	var next int
	h.loop.Do(func() { next = h.ins.Commit(text, cursor) })
	return next
}

func (h *insHarness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.loop.Sync()
}

func TestInserter_CommitSplicesAtCursor(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "milk eggs", 4)

	next := h.commit(" bread", 4)
	if next != 10 {
		t.Errorf("Commit returned %d, want 10", next)
	}
	if got := h.host.Content(); got != "milk bread eggs" {
		t.Errorf("content = %q", got)
	}
	if got := h.host.CursorPosition(); got != 10 {
		t.Errorf("cursor = %d, want 10", got)
	}
	if h.host.FocusCount() != 1 {
		t.Errorf("focus count = %d, want 1", h.host.FocusCount())
	}
}

func TestInserter_CursorCountsRunes(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "", 0)

	if next := h.commit("Grüße ", 0); next != 6 {
		t.Errorf("Commit returned %d, want 6", next)
	}
}

func TestInserter_InsertNormalizes(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "abc", 3)

	h.loop.Do(func() { h.ins.Insert("hello world", dictation.Normalize) })
	if got := h.host.Content(); got != "abc hello world. " {
		t.Errorf("content = %q, want %q", got, "abc hello world. ")
	}
	if got := h.host.CursorPosition(); got != 17 {
		t.Errorf("cursor = %d, want 17", got)
	}
}

func TestInserter_DebouncesSaves(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "", 0)

	next := h.commit("a", 0)
	h.advance(200 * time.Millisecond)
	h.commit("b", next)
	h.advance(200 * time.Millisecond)
	if n := len(h.saver.Calls()); n != 0 {
		t.Fatalf("saves inside quiet window = %d, want 0", n)
	}

	h.advance(100 * time.Millisecond)
	eventually(t, "one save", func() bool { return len(h.saver.Calls()) == 1 })

	call := h.saver.Calls()[0]
	if call.NoteID != "note-1" || call.Title != "Groceries" || call.Content != "ab" {
		t.Errorf("save = %+v", call)
	}

	h.advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := len(h.saver.Calls()); n != 1 {
		t.Errorf("saves = %d, want 1", n)
	}
}

func TestInserter_FlushAndCancel(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "", 0)

	h.loop.Do(h.ins.Flush)
	time.Sleep(10 * time.Millisecond)
	if n := len(h.saver.Calls()); n != 0 {
		t.Fatalf("Flush without pending save saved %d times", n)
	}

	h.commit("kept", 0)
	h.loop.Do(h.ins.Flush)
	eventually(t, "flushed save", func() bool { return len(h.saver.Calls()) == 1 })

	h.commit(" dropped", 4)
	var pending bool
	h.loop.Do(func() {
		pending = h.ins.SavePending()
		h.ins.Cancel()
	})
	if !pending {
		t.Error("SavePending = false after commit")
	}
	h.advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := len(h.saver.Calls()); n != 1 {
		t.Errorf("saves after Cancel = %d, want 1", n)
	}
}

func TestInserter_SaveErrorDoesNotBlockCommits(t *testing.T) {
	t.Parallel()
	h := newInsHarness(t, "", 0)
	h.saver.Err = errors.New("disk full")

	next := h.commit("one ", 0)
	h.advance(300 * time.Millisecond)
	eventually(t, "failed save", func() bool { return len(h.saver.Calls()) == 1 })

	h.commit("two ", next)
	if got := h.host.Content(); got != "one two " {
		t.Errorf("content = %q", got)
	}
}
