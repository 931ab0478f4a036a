package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/blog-comment-widget/internal/mocks"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/internal/widget"
)

func newTestModel(t *testing.T, s *mocks.MockStore) Model {
	t.Helper()
	f := widget.Formatter{
		Placeholder: "Anonymous",
		Layout:      "2006-01-02 15:04",
		Location:    time.UTC,
		Pending:     widget.PendingTimestamp,
	}
	opts := Options{Composer: widget.ComposerOptions{PlaceholderAuthor: "Anonymous"}}
	m := New(context.Background(), s, "post-1", f, opts, zerolog.Nop())
	m.width = 80
	m.height = 40
	t.Cleanup(m.Close)
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
		return nil
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m, _ = update(m, keyRunes(string(r)))
	}
	return m
}

func at(hour, minute int) *time.Time {
	t := time.Date(2024, 3, 1, hour, minute, 0, 0, time.UTC)
	return &t
}

// mountWithSnapshot mounts m and applies the first snapshot delivered for it.
func mountWithSnapshot(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(m, runCmd(t, m.mountCmd()))
	m, _ = update(m, runCmd(t, m.waitForState()))
	return m
}

func TestViewShowsLoadingBeforeFirstSnapshot(t *testing.T) {
	m := newTestModel(t, mocks.NewMockStore())

	view := m.View()
	if !strings.Contains(view, "Loading comments...") {
		t.Errorf("expected loading state, got:\n%s", view)
	}
	if !strings.Contains(view, "post-1") {
		t.Errorf("expected content key in title, got:\n%s", view)
	}
}

func TestSnapshotRendersComments(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{
		ContentKey: "post-1",
		Comments: []models.Comment{
			{ID: "a", ContentKey: "post-1", AuthorLabel: "alice", Body: "hi", CreatedAt: at(12, 30)},
			{ID: "b", ContentKey: "post-1", AuthorLabel: "", Body: "still saving"},
		},
	}
	m := mountWithSnapshot(t, newTestModel(t, s))

	view := m.View()
	for _, want := range []string{"alice", "hi", "2024-03-01 12:30", "Anonymous", "still saving", widget.PendingTimestamp} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Loading comments...") {
		t.Errorf("loading state should be gone, got:\n%s", view)
	}
}

func TestEmptySnapshotShowsPlaceholder(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{}}
	m := mountWithSnapshot(t, newTestModel(t, s))

	if view := m.View(); !strings.Contains(view, "No comments yet.") {
		t.Errorf("expected empty placeholder, got:\n%s", view)
	}
}

func TestLiveUpdateReplacesList(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{}}
	m := mountWithSnapshot(t, newTestModel(t, s))

	sub := s.LastSubscription()
	snap := models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{
		{ID: "a", ContentKey: "post-1", AuthorLabel: "bob", Body: "new one", CreatedAt: at(9, 0)},
	}}
	go sub.Push(snap, time.Second)

	m, cmd := update(m, runCmd(t, m.waitForState()))
	if cmd == nil {
		t.Error("expected the model to keep waiting for updates")
	}
	if view := m.View(); !strings.Contains(view, "new one") {
		t.Errorf("expected pushed comment in view, got:\n%s", view)
	}
}

func TestSubscriptionFailureShown(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{}}
	m := mountWithSnapshot(t, newTestModel(t, s))

	s.LastSubscription().Fail(errors.New("connection reset"))

	m, cmd := update(m, runCmd(t, m.waitForState()))
	if cmd != nil {
		t.Error("expected no further waiting after the subscription failed")
	}
	if view := m.View(); !strings.Contains(view, "Live updates stopped.") {
		t.Errorf("expected subscription error in view, got:\n%s", view)
	}
}

func TestMountFailureShown(t *testing.T) {
	s := mocks.NewMockStore()
	s.SubscribeError = &store.StoreError{Op: "subscribe", ContentKey: "post-1", Err: errors.New("db down")}
	m := newTestModel(t, s)

	m, _ = update(m, runCmd(t, m.mountCmd()))

	if view := m.View(); !strings.Contains(view, "Comments could not be loaded.") {
		t.Errorf("expected load error in view, got:\n%s", view)
	}
}

func TestSubmitPostsAndClearsBody(t *testing.T) {
	s := mocks.NewMockStore()
	m := newTestModel(t, s)

	m, _ = update(m, keyRunes("c"))
	m = typeText(m, "nice post")
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})

	if !strings.Contains(m.View(), "Posting...") {
		t.Errorf("expected posting status, got:\n%s", m.View())
	}
	m, _ = update(m, runCmd(t, cmd))

	calls := s.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 append, got %d", len(calls))
	}
	if calls[0].Body != "nice post" || calls[0].AuthorLabel != "Anonymous" || calls[0].ContentKey != "post-1" {
		t.Errorf("Unexpected append %+v", calls[0])
	}
	if m.composer.Body() != "" {
		t.Errorf("Expected body cleared, got %q", m.composer.Body())
	}
	if view := m.View(); !strings.Contains(view, widget.SuccessMessage) {
		t.Errorf("expected success message, got:\n%s", view)
	}
}

func TestTypingWhilePostingIsKept(t *testing.T) {
	s := mocks.NewMockStore()
	m := newTestModel(t, s)

	m, _ = update(m, keyRunes("c"))
	m = typeText(m, "first")
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(m, " more")

	m, _ = update(m, runCmd(t, cmd))

	if calls := s.Calls(); len(calls) != 1 || calls[0].Body != "first" {
		t.Fatalf("Expected one append of 'first', got %+v", calls)
	}
	if m.composer.Body() != "first more" {
		t.Errorf("Expected text typed during the post to be kept, got %q", m.composer.Body())
	}
}

func TestSubmitUsesTypedAuthor(t *testing.T) {
	s := mocks.NewMockStore()
	m := newTestModel(t, s)

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(m, "zoe")
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(m, "hello")
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	update(m, runCmd(t, cmd))

	calls := s.Calls()
	if len(calls) != 1 || calls[0].AuthorLabel != "zoe" {
		t.Errorf("Expected author zoe, got %+v", calls)
	}
}

func TestSubmitEmptyBodyRejected(t *testing.T) {
	s := mocks.NewMockStore()
	m := newTestModel(t, s)

	m, _ = update(m, keyRunes("c"))
	m = typeText(m, "   ")
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil {
		t.Error("Expected no append command for a blank body")
	}
	if len(s.Calls()) != 0 {
		t.Errorf("Expected no appends, got %d", len(s.Calls()))
	}
	if view := m.View(); !strings.Contains(view, "Comment cannot be empty.") {
		t.Errorf("expected empty body message, got:\n%s", view)
	}
}

func TestSubmitFailureKeepsInput(t *testing.T) {
	s := mocks.NewMockStore()
	s.AppendError = &store.StoreError{Op: "append", ContentKey: "post-1", Err: errors.New("permission denied")}
	m := newTestModel(t, s)

	m, _ = update(m, keyRunes("c"))
	m = typeText(m, "keep me")
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(m, runCmd(t, cmd))

	if m.composer.Body() != "keep me" {
		t.Errorf("Expected body kept, got %q", m.composer.Body())
	}
	if view := m.View(); !strings.Contains(view, "Failed to post comment. Please try again.") {
		t.Errorf("expected failure message, got:\n%s", view)
	}
}

func TestCursorAndCopy(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{
		{ID: "a", ContentKey: "post-1", AuthorLabel: "alice", Body: "first", CreatedAt: at(9, 0)},
		{ID: "b", ContentKey: "post-1", AuthorLabel: "bob", Body: "second", CreatedAt: at(9, 5)},
	}}
	m := mountWithSnapshot(t, newTestModel(t, s))

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Errorf("Expected cursor 1, got %d", m.cursor)
	}
	if view := m.View(); !strings.Contains(view, "> bob") {
		t.Errorf("expected cursor on bob, got:\n%s", view)
	}
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Errorf("Expected cursor to stop at 1, got %d", m.cursor)
	}

	if _, cmd := update(m, keyRunes("y")); cmd == nil {
		t.Error("Expected a copy command")
	}

	m, _ = update(m, copyResultMsg{err: errors.New("no clipboard")})
	if view := m.View(); !strings.Contains(view, "copy failed") {
		t.Errorf("expected copy failure status, got:\n%s", view)
	}
}

func TestQuitReleasesSubscription(t *testing.T) {
	s := mocks.NewMockStore()
	s.SnapshotData["post-1"] = models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{}}
	m := mountWithSnapshot(t, newTestModel(t, s))

	_, cmd := update(m, keyRunes("q"))
	if _, ok := runCmd(t, cmd).(tea.QuitMsg); !ok {
		t.Error("Expected quit message")
	}
	if !s.LastSubscription().Closed() {
		t.Error("Expected subscription closed on quit")
	}
}

func TestTypingInBodyDoesNotTriggerListKeys(t *testing.T) {
	m := newTestModel(t, mocks.NewMockStore())

	m, _ = update(m, keyRunes("c"))
	m, cmd := update(m, keyRunes("q"))
	if cmd != nil {
		t.Error("Expected q to be typed, not quit")
	}
	if m.composer.Body() != "q" {
		t.Errorf("Expected body %q, got %q", "q", m.composer.Body())
	}
}

func TestEditRune(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		key   string
		limit int
		want  string
	}{
		{"append", "ab", "c", 10, "abc"},
		{"backspace", "héllo", "backspace", 10, "héll"},
		{"backspace empty", "", "backspace", 10, ""},
		{"at limit", "abc", "d", 3, "abc"},
		{"named key ignored", "abc", "left", 10, "abc"},
		{"multibyte rune", "", "é", 10, "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := editRune(tt.text, tt.key, tt.limit); got != tt.want {
				t.Errorf("editRune(%q, %q) = %q, want %q", tt.text, tt.key, got, tt.want)
			}
		})
	}
}
