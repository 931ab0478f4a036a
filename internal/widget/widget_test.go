package widget

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blog-comment-widget/internal/config"
	"github.com/blog-comment-widget/internal/mocks"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/rs/zerolog"
)

func testFormatter() Formatter {
	return Formatter{
		Placeholder: "Anonymous",
		Layout:      "2006-01-02 15:04",
		Location:    time.UTC,
		Pending:     PendingTimestamp,
	}
}

func waitState(t *testing.T, ch <-chan ListState) ListState {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for list state")
	}
	return ListState{}
}

func TestComposer_SubmitDefaultsAuthorAndClearsBody(t *testing.T) {
	s := mocks.NewMockStore()
	c := NewComposer(s, "post-1", ComposerOptions{}, zerolog.Nop())
	c.SetAuthor("")
	c.SetBody("nice post")

	ack := c.Submit(context.Background())

	if !ack.OK() {
		t.Fatalf("Expected success ack, got %+v", ack)
	}
	if ack.Message != SuccessMessage {
		t.Errorf("Expected %q, got %q", SuccessMessage, ack.Message)
	}

	calls := s.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 append call, got %d", len(calls))
	}
	want := mocks.AppendCall{ContentKey: "post-1", AuthorLabel: "Anonymous", Body: "nice post"}
	if calls[0] != want {
		t.Errorf("Expected append %+v, got %+v", want, calls[0])
	}
	if c.Body() != "" {
		t.Errorf("Body should reset after success, got %q", c.Body())
	}
}

func TestComposer_BlankBodyMakesNoCall(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\t "} {
		s := mocks.NewMockStore()
		c := NewComposer(s, "post-1", ComposerOptions{}, zerolog.Nop())
		c.SetAuthor("alice")
		c.SetBody(body)

		ack := c.Submit(context.Background())

		if ack.OK() {
			t.Errorf("Blank body %q should be rejected", body)
		}
		var verr *store.ValidationError
		if !errors.As(ack.Err, &verr) {
			t.Errorf("Expected ValidationError, got %v", ack.Err)
		}
		if len(s.Calls()) != 0 {
			t.Errorf("No append call expected for %q, got %d", body, len(s.Calls()))
		}
		if c.Author() != "alice" {
			t.Error("Author should be kept after a rejected submit")
		}
	}
}

func TestComposer_FailureKeepsInput(t *testing.T) {
	s := mocks.NewMockStore()
	s.AppendError = &store.StoreError{Op: "append", ContentKey: "post-1", Err: errors.New("permission denied")}
	c := NewComposer(s, "post-1", ComposerOptions{}, zerolog.Nop())
	c.SetAuthor("bob")
	c.SetBody("nice post")

	ack := c.Submit(context.Background())

	if ack.Kind != AckError {
		t.Fatalf("Expected error ack, got %+v", ack)
	}
	if ack.Message != "Failed to post comment. Please try again." {
		t.Errorf("Unexpected message %q", ack.Message)
	}
	if c.Body() != "nice post" {
		t.Errorf("Body should be kept for retry, got %q", c.Body())
	}
	if c.Author() != "bob" {
		t.Errorf("Author should be kept for retry, got %q", c.Author())
	}
}

func TestComposer_ClearAuthorOnSuccess(t *testing.T) {
	s := mocks.NewMockStore()
	c := NewComposer(s, "post-1", ComposerOptions{ClearAuthorOnSuccess: true}, zerolog.Nop())
	c.SetAuthor("  carol  ")
	c.SetBody("hello")

	if ack := c.Submit(context.Background()); !ack.OK() {
		t.Fatalf("Expected success, got %+v", ack)
	}
	if got := s.Calls()[0].AuthorLabel; got != "carol" {
		t.Errorf("Expected trimmed author 'carol', got %q", got)
	}
	if c.Author() != "" {
		t.Errorf("Author should be cleared, got %q", c.Author())
	}
}

func TestComposer_CompleteKeepsTextTypedWhilePosting(t *testing.T) {
	s := mocks.NewMockStore()
	c := NewComposer(s, "post-1", ComposerOptions{ClearAuthorOnSuccess: true}, zerolog.Nop())
	c.SetAuthor("dave")
	c.SetBody("first thought")

	d, rejected := c.Prepare()
	if rejected != nil {
		t.Fatalf("Unexpected rejection %+v", rejected)
	}

	// edits made while the append is in flight
	c.SetBody("second thought")
	c.SetAuthor("david")

	if ack := c.Complete(d, "id-1", nil); !ack.OK() {
		t.Fatalf("Expected success, got %+v", ack)
	}
	if c.Body() != "second thought" {
		t.Errorf("Body typed after submit should be kept, got %q", c.Body())
	}
	if c.Author() != "david" {
		t.Errorf("Author edited after submit should be kept, got %q", c.Author())
	}

	d, _ = c.Prepare()
	c.Complete(d, "id-2", nil)
	if c.Body() != "" || c.Author() != "" {
		t.Errorf("Unchanged input should be cleared, got author %q body %q", c.Author(), c.Body())
	}
}

func TestListView_RendersSnapshotsInSequence(t *testing.T) {
	s := mocks.NewMockStore()
	view := NewListView(s, "post-1", models.OrderAsc, testFormatter(), zerolog.Nop())

	states := make(chan ListState, 4)
	view.OnChange(func(st ListState) { states <- st })

	if !view.State().Loading {
		t.Error("View should start in the loading state")
	}
	if err := view.Mount(context.Background()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	defer view.Unmount()

	sub := s.LastSubscription()
	sub.Push(models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{}}, time.Second)

	first := waitState(t, states)
	if first.Loading || len(first.Rows) != 0 {
		t.Fatalf("Expected empty list, got %+v", first)
	}

	t1 := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	sub.Push(models.Snapshot{ContentKey: "post-1", Comments: []models.Comment{
		{ID: "a", ContentKey: "post-1", Body: "hi", CreatedAt: &t1},
	}}, time.Second)

	second := waitState(t, states)
	if len(second.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(second.Rows))
	}
	row := second.Rows[0]
	if row.Body != "hi" || row.ID != "a" {
		t.Errorf("Unexpected row %+v", row)
	}
	if row.Author != "Anonymous" {
		t.Errorf("Expected placeholder author, got %q", row.Author)
	}
	if row.Timestamp != "2024-03-01 12:30" {
		t.Errorf("Expected formatted timestamp, got %q", row.Timestamp)
	}
}

func TestListView_NoUpdatesAfterUnmount(t *testing.T) {
	s := mocks.NewMockStore()
	view := NewListView(s, "post-1", models.OrderAsc, testFormatter(), zerolog.Nop())

	calls := 0
	view.OnChange(func(ListState) { calls++ })

	if err := view.Mount(context.Background()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	sub := s.LastSubscription()

	view.Unmount()
	view.Unmount()

	if !sub.Closed() {
		t.Error("Unmount should close the subscription")
	}
	if sub.Push(models.Snapshot{ContentKey: "post-1"}, 50*time.Millisecond) {
		t.Error("Snapshot should not be delivered after unmount")
	}
	if calls != 0 {
		t.Errorf("Expected no state changes after unmount, got %d", calls)
	}
	if !view.State().Loading {
		t.Error("State should be untouched after unmount")
	}
}

func TestListView_UnmountBeforeMount(t *testing.T) {
	s := mocks.NewMockStore()
	view := NewListView(s, "post-1", models.OrderAsc, testFormatter(), zerolog.Nop())

	view.Unmount()
	if err := view.Mount(context.Background()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if s.LastSubscription() != nil {
		t.Error("Expected no subscription after unmount")
	}
}

func TestListView_SubscriptionErrorShown(t *testing.T) {
	s := mocks.NewMockStore()
	view := NewListView(s, "post-1", models.OrderDesc, testFormatter(), zerolog.Nop())
	states := make(chan ListState, 4)
	view.OnChange(func(st ListState) { states <- st })

	if err := view.Mount(context.Background()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	defer view.Unmount()

	s.LastSubscription().Fail(errors.New("listener lost"))

	st := waitState(t, states)
	if !st.Failed() {
		t.Fatalf("Expected an error state, got %+v", st)
	}
	if !strings.Contains(st.Err, "Live updates stopped") {
		t.Errorf("Unexpected message %q", st.Err)
	}
}

func TestListView_MountFailure(t *testing.T) {
	s := mocks.NewMockStore()
	s.SubscribeError = &store.StoreError{Op: "subscribe", ContentKey: "post-1", Err: errors.New("permission denied")}
	view := NewListView(s, "post-1", models.OrderAsc, testFormatter(), zerolog.Nop())

	if err := view.Mount(context.Background()); err == nil {
		t.Fatal("Expected mount error")
	}
	st := view.State()
	if st.Loading {
		t.Error("Failed mount should leave the loading state")
	}
	if st.Err != "Comments could not be loaded." {
		t.Errorf("Unexpected message %q", st.Err)
	}
	view.Unmount()
}

func TestFormatter_PendingAndPlaceholder(t *testing.T) {
	f := testFormatter()

	row := f.Row(models.Comment{ID: "x", AuthorLabel: "   ", Body: "b"})
	if row.Author != "Anonymous" {
		t.Errorf("Expected placeholder author, got %q", row.Author)
	}
	if !row.Pending || row.Timestamp != PendingTimestamp {
		t.Errorf("Expected pending timestamp, got %+v", row)
	}

	ts := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	f.Location = time.FixedZone("UTC+2", 2*60*60)
	row = f.Row(models.Comment{ID: "y", AuthorLabel: "dan", Body: "b", CreatedAt: &ts})
	if row.Timestamp != "2024-01-02 01:00" {
		t.Errorf("Expected timestamp in display zone, got %q", row.Timestamp)
	}
}

func TestNewFormatter(t *testing.T) {
	if _, err := NewFormatter(config.WidgetConfig{Timezone: "Not/AZone"}); err == nil {
		t.Error("Expected invalid timezone error")
	}
	f, err := NewFormatter(config.WidgetConfig{PlaceholderAuthor: "Guest", TimeFormat: time.RFC3339, Timezone: "UTC"})
	if err != nil {
		t.Fatalf("NewFormatter failed: %v", err)
	}
	if f.Placeholder != "Guest" || f.Location != time.UTC {
		t.Errorf("Unexpected formatter %+v", f)
	}
}

func giscusConfig() config.GiscusConfig {
	return config.GiscusConfig{
		Repo:             "owner/blog",
		RepoID:           "R_123",
		Category:         "Comments",
		CategoryID:       "DIC_456",
		Theme:            "preferred_color_scheme",
		Lang:             "en",
		ReactionsEnabled: true,
		InputPosition:    "top",
		Loading:          "lazy",
	}
}

func TestLoader_MountAndUnmount(t *testing.T) {
	l := NewLoader(giscusConfig(), zerolog.Nop())
	frag := &Fragment{}

	if err := l.Mount(frag); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := l.Mount(frag); err != nil {
		t.Fatalf("Second mount failed: %v", err)
	}

	children := frag.Children()
	if len(children) != 1 {
		t.Fatalf("Expected one script element, got %d", len(children))
	}
	el := children[0]
	if el.Src != "https://giscus.app/client.js" || !el.Async || el.CrossOrigin != "anonymous" {
		t.Errorf("Unexpected script element %+v", el)
	}

	want := map[string]string{
		"data-repo":              "owner/blog",
		"data-repo-id":           "R_123",
		"data-category":          "Comments",
		"data-category-id":       "DIC_456",
		"data-mapping":           "pathname",
		"data-reactions-enabled": "1",
		"data-emit-metadata":     "0",
		"data-input-position":    "top",
		"data-theme":             "preferred_color_scheme",
		"data-lang":              "en",
		"data-loading":           "lazy",
	}
	for name, value := range want {
		got, ok := el.Attr(name)
		if !ok || got != value {
			t.Errorf("Attribute %s: expected %q, got %q", name, value, got)
		}
	}

	l.Unmount()
	if len(frag.Children()) != 0 {
		t.Error("Unmount should clear the container")
	}
	if frag.HTML() != "" {
		t.Error("Cleared container should render nothing")
	}
}

func TestLoader_ScriptOriginIsFixed(t *testing.T) {
	t.Setenv("GISCUS_SCRIPT_URL", "https://evil.example/client.js")
	t.Setenv("GISCUS_REPO", "owner/blog")
	t.Setenv("GISCUS_REPOSITORY_ID", "R_123")
	t.Setenv("GISCUS_CATEGORY", "Comments")
	t.Setenv("GISCUS_CATEGORY_ID", "DIC_456")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	l := NewLoader(cfg.Giscus, zerolog.Nop())
	if el := l.Element(); el.Src != GiscusScriptURL {
		t.Errorf("Expected script %s, got %s", GiscusScriptURL, el.Src)
	}
	if !strings.Contains(string(l.Render()), GiscusScriptURL) {
		t.Error("Rendered script should load the fixed client")
	}
}

func TestLoader_NotConfigured(t *testing.T) {
	l := NewLoader(config.GiscusConfig{}, zerolog.Nop())
	frag := &Fragment{}

	if err := l.Mount(frag); !errors.Is(err, ErrGiscusNotConfigured) {
		t.Fatalf("Expected ErrGiscusNotConfigured, got %v", err)
	}
	if len(frag.Children()) != 0 {
		t.Error("Nothing should be injected")
	}
	if l.Render() != "" {
		t.Error("Render should be empty when not configured")
	}
}

func TestScriptElement_HTMLEscapes(t *testing.T) {
	cfg := giscusConfig()
	cfg.Category = `"><script>alert(1)</script>`

	out := string(NewLoader(cfg, zerolog.Nop()).Render())
	if strings.Contains(out, "<script>alert") {
		t.Errorf("Attribute values should be escaped, got %s", out)
	}
	if !strings.HasPrefix(out, `<script src="https://giscus.app/client.js"`) || !strings.HasSuffix(out, " async></script>") {
		t.Errorf("Unexpected script markup %s", out)
	}
}

func TestRenderer_List(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	out, err := r.List(ListState{Loading: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !strings.Contains(out, "Loading comments...") {
		t.Errorf("Expected loading text, got %s", out)
	}

	out, _ = r.List(ListState{Rows: []Row{}})
	if !strings.Contains(out, "No comments yet.") {
		t.Errorf("Expected empty text, got %s", out)
	}

	out, _ = r.List(ListState{Rows: []Row{{ID: "a", Author: "eve", Body: "<b>hi</b>", Timestamp: "now"}}})
	if strings.Contains(out, "<b>hi</b>") {
		t.Error("Comment bodies should be escaped")
	}
	if !strings.Contains(out, "&lt;b&gt;hi&lt;/b&gt;") {
		t.Errorf("Expected escaped body, got %s", out)
	}
}

func TestRenderer_Page(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	out, err := r.Page(Section{
		ContentKey: "post-1",
		List:       ListState{Rows: []Row{}},
		Body:       "draft text",
		Flash:      &Ack{Kind: AckError, Message: "Failed to post comment. Please try again."},
		Giscus:     NewLoader(giscusConfig(), zerolog.Nop()).Render(),
		StreamURL:  "/v1/comments/post-1/stream",
		SubmitURL:  "/v1/comments/post-1",
	})
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	for _, want := range []string{"draft text", "ack-error", `action="/v1/comments/post-1"`, "giscus.app/client.js", "EventSource"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
}

func TestRenderer_DeferredPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	out, err := r.Page(Section{
		ContentKey: "post-1",
		List:       ListState{Loading: true},
		Giscus:     NewLoader(giscusConfig(), zerolog.Nop()).Render(),
		StreamURL:  "/v1/comments/post-1/stream",
		SubmitURL:  "/v1/comments/post-1",
		Deferred:   true,
	})
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	for _, want := range []string{
		`id="comment-load">Load Comments</button>`,
		`<div id="comment-body" hidden>`,
		`<template id="comment-giscus"><div class="giscus"><script src="https://giscus.app/client.js"`,
		"Loading comments...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected deferred page to contain %q", want)
		}
	}

	eager, _ := r.Page(Section{ContentKey: "post-1", List: ListState{Rows: []Row{}}})
	if strings.Contains(eager, "Load Comments</button>") || strings.Contains(eager, `<div id="comment-body" hidden>`) {
		t.Error("Eager page should show the section without a load control")
	}
}
