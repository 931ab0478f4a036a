// Package tui is a terminal comment section. It drives the same list view and
// composer as the web widget, so any comment store (local or remote) can back it.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/internal/widget"
)

type focus int

const (
	focusList focus = iota
	focusAuthor
	focusBody
)

// Options configures the terminal comment section.
type Options struct {
	Order         models.Order
	Composer      widget.ComposerOptions
	MaxBodyRunes  int
	SubmitTimeout time.Duration
}

type stateMsg struct{ state widget.ListState }
type mountedMsg struct{ err error }
type copyResultMsg struct{ err error }

type submitResultMsg struct {
	draft widget.Draft
	id    string
	err   error
}

// Model is the bubbletea model for one comment section.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	contentKey string
	opts       Options
	appender   store.Appender
	view       *widget.ListView
	composer   *widget.Composer
	states     chan widget.ListState

	state      widget.ListState
	focus      focus
	cursor     int
	submitting bool
	status     string
	statusErr  bool
	width      int
	height     int
}

// New creates a comment section model for contentKey backed by s.
func New(ctx context.Context, s store.Store, contentKey string, format widget.Formatter, opts Options, log zerolog.Logger) Model {
	if opts.Order == "" {
		opts.Order = models.OrderAsc
	}
	if opts.MaxBodyRunes <= 0 {
		opts.MaxBodyRunes = models.DefaultMaxBodyRunes
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	log = log.With().Str("component", "tui").Str("content_key", contentKey).Logger()

	view := widget.NewListView(s, contentKey, opts.Order, format, log)
	states := make(chan widget.ListState, 1)
	view.OnChange(func(st widget.ListState) {
		// Only the latest state matters
		select {
		case <-states:
		default:
		}
		select {
		case states <- st:
		case <-ctx.Done():
		}
	})

	return Model{
		ctx:        ctx,
		cancel:     cancel,
		contentKey: contentKey,
		opts:       opts,
		appender:   s,
		view:       view,
		composer:   widget.NewComposer(s, contentKey, opts.Composer, log),
		states:     states,
		state:      view.State(),
	}
}

// Close stops live updates. It is safe to call more than once.
func (m Model) Close() {
	m.cancel()
	m.view.Unmount()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.mountCmd(), m.waitForState())
}

func (m Model) mountCmd() tea.Cmd {
	view, ctx := m.view, m.ctx
	return func() tea.Msg {
		return mountedMsg{err: view.Mount(ctx)}
	}
}

func (m Model) waitForState() tea.Cmd {
	states, done := m.states, m.ctx.Done()
	return func() tea.Msg {
		select {
		case st := <-states:
			return stateMsg{state: st}
		case <-done:
			return nil
		}
	}
}

func (m Model) submitCmd(d widget.Draft) tea.Cmd {
	appender, parent, timeout := m.appender, m.ctx, m.opts.SubmitTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		id, err := appender.Append(ctx, d.ContentKey, d.AuthorLabel, d.Body)
		return submitResultMsg{draft: d, id: id, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case mountedMsg:
		if msg.err != nil {
			m.state = m.view.State()
		}
		return m, nil

	case stateMsg:
		m.state = msg.state
		if m.cursor >= len(m.state.Rows) {
			m.cursor = max(len(m.state.Rows)-1, 0)
		}
		if m.state.Failed() {
			return m, nil
		}
		return m, m.waitForState()

	case submitResultMsg:
		m.submitting = false
		ack := m.composer.Complete(msg.draft, msg.id, msg.err)
		m.setStatus(ack.Message, !ack.OK())
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("copy failed: %v", msg.err), true)
		} else {
			m.setStatus("copied!", false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		m.Close()
		return m, tea.Quit
	case "tab":
		m.focus = (m.focus + 1) % 3
		return m, nil
	case "shift+tab":
		m.focus = (m.focus + 2) % 3
		return m, nil
	case "esc":
		m.focus = focusList
		return m, nil
	}

	switch m.focus {
	case focusAuthor:
		if key == "enter" {
			m.focus = focusBody
			return m, nil
		}
		m.composer.SetAuthor(editRune(m.composer.Author(), key, models.MaxAuthorRunes))
		return m, nil

	case focusBody:
		if key == "enter" {
			return m.submit()
		}
		m.composer.SetBody(editRune(m.composer.Body(), key, m.opts.MaxBodyRunes))
		return m, nil
	}

	switch key {
	case "q":
		m.Close()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Rows)-1 {
			m.cursor++
		}
	case "c":
		m.focus = focusBody
	case "y":
		if m.cursor < len(m.state.Rows) {
			text := m.state.Rows[m.cursor].Body
			return m, func() tea.Msg {
				err := clipboard.WriteAll(text)
				return copyResultMsg{err: err}
			}
		}
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	d, rejected := m.composer.Prepare()
	if rejected != nil {
		m.setStatus(rejected.Message, true)
		return m, nil
	}
	m.submitting = true
	m.setStatus("Posting...", false)
	return m, m.submitCmd(d)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Comments"))
	b.WriteString(" " + keyStyle.Render(fmt.Sprintf("%s · %s", m.contentKey, m.opts.Order)))
	b.WriteString("\n\n")

	b.WriteString(m.viewList())
	b.WriteString("\n")
	b.WriteString(m.viewComposer())
	b.WriteString("\n")

	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(successStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.viewHelp())
	return b.String()
}

func (m Model) viewList() string {
	var b strings.Builder

	if m.state.Err != "" {
		b.WriteString(errorStyle.Render(m.state.Err) + "\n")
	}
	switch {
	case m.state.Loading:
		b.WriteString(emptyStyle.Render("Loading comments...") + "\n")
		return b.String()
	case len(m.state.Rows) == 0 && m.state.Err == "":
		b.WriteString(emptyStyle.Render("No comments yet.") + "\n")
		return b.String()
	}

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		row := m.state.Rows[i]
		prefix := "  "
		if i == m.cursor && m.focus == focusList {
			prefix = cursorStyle.Render("> ")
		}
		ts := timeStyle.Render(row.Timestamp)
		if row.Pending {
			ts = pendingStyle.Render(row.Timestamp)
		}
		b.WriteString(prefix + authorStyle.Render(row.Author) + "  " + ts + "\n")

		body := bodyStyle
		if m.width > 4 {
			body = body.Width(m.width - 2)
		}
		b.WriteString(body.Render(row.Body) + "\n")
	}
	if hidden := len(m.state.Rows) - (end - start); hidden > 0 {
		b.WriteString(keyStyle.Render(fmt.Sprintf("  %d more", hidden)) + "\n")
	}
	return b.String()
}

// visibleRange keeps the cursor on screen when the list is taller than the terminal.
func (m Model) visibleRange() (int, int) {
	n := len(m.state.Rows)
	if m.height <= 0 {
		return 0, n
	}
	// title, composer, status and help take about ten lines; each row takes two
	perPage := max((m.height-10)/2, 1)
	if n <= perPage {
		return 0, n
	}
	start := max(m.cursor-perPage+1, 0)
	return start, min(start+perPage, n)
}

func (m Model) viewComposer() string {
	label := func(f focus, text string) string {
		if m.focus == f {
			return focusedLabelStyle.Render(text)
		}
		return labelStyle.Render(text)
	}
	caret := func(f focus) string {
		if m.focus == f {
			return cursorStyle.Render("_")
		}
		return ""
	}

	author := m.composer.Author()
	if author == "" && m.focus != focusAuthor {
		author = emptyStyle.Render(m.opts.Composer.PlaceholderAuthor)
	}

	var b strings.Builder
	b.WriteString(label(focusAuthor, "Name") + author + caret(focusAuthor) + "\n")
	b.WriteString(label(focusBody, "Comment") + m.composer.Body() + caret(focusBody) + "\n")
	return b.String()
}

func (m Model) viewHelp() string {
	item := func(key, label string) string {
		return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
	}
	if m.focus == focusList {
		return strings.Join([]string{
			item("↑/↓", "move"), item("c", "comment"), item("y", "copy"), item("tab", "focus"), item("q", "quit"),
		}, "  ")
	}
	return strings.Join([]string{
		item("enter", "post"), item("tab", "focus"), item("esc", "back"), item("ctrl+c", "quit"),
	}, "  ")
}
