// Package widget holds the comment section components: the live list view,
// the composer, the embedded discussion widget loader and the HTML templates
// they render through.
package widget

import (
	"strings"
	"time"

	"github.com/blog-comment-widget/internal/config"
	"github.com/blog-comment-widget/internal/models"
)

// PendingTimestamp is shown while created_at has not been assigned yet
const PendingTimestamp = "timestamp unavailable"

// Row is one rendered comment
type Row struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	Pending   bool   `json:"pending,omitempty"`
}

// Formatter turns comment records into display rows
type Formatter struct {
	Placeholder string
	Layout      string
	Location    *time.Location
	Pending     string
}

// NewFormatter builds a formatter from the widget configuration
func NewFormatter(cfg config.WidgetConfig) (Formatter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Formatter{}, err
	}
	return Formatter{
		Placeholder: cfg.PlaceholderAuthor,
		Layout:      cfg.TimeFormat,
		Location:    loc,
		Pending:     PendingTimestamp,
	}, nil
}

// Row formats a single comment
func (f Formatter) Row(c models.Comment) Row {
	row := Row{
		ID:     c.ID,
		Author: strings.TrimSpace(c.AuthorLabel),
		Body:   c.Body,
	}
	if row.Author == "" {
		row.Author = f.placeholder()
	}

	if c.CreatedAt == nil || c.CreatedAt.IsZero() {
		row.Timestamp = f.Pending
		if row.Timestamp == "" {
			row.Timestamp = PendingTimestamp
		}
		row.Pending = true
		return row
	}

	t := *c.CreatedAt
	if f.Location != nil {
		t = t.In(f.Location)
	}
	layout := f.Layout
	if layout == "" {
		layout = time.DateTime
	}
	row.Timestamp = t.Format(layout)
	return row
}

// Rows formats comments preserving their order
func (f Formatter) Rows(comments []models.Comment) []Row {
	rows := make([]Row, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, f.Row(c))
	}
	return rows
}

func (f Formatter) placeholder() string {
	if f.Placeholder == "" {
		return models.DefaultAuthorLabel
	}
	return f.Placeholder
}
