package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultAuthorLabel is shown for comments submitted without a display name
const DefaultAuthorLabel = "Anonymous"

// MaxAuthorRunes is the maximum length of an author label
const MaxAuthorRunes = 64

// DefaultMaxBodyRunes is the default maximum length of a comment body
const DefaultMaxBodyRunes = 2000

// Comment is a visitor comment attached to a content key (article slug).
// Records are append-only: nothing in this system updates or deletes them.
type Comment struct {
	ID          string     `json:"id" db:"id"`
	ContentKey  string     `json:"content_key" db:"content_key"`
	AuthorLabel string     `json:"author_label" db:"author_label"`
	Body        string     `json:"body" db:"body"`
	SessionID   string     `json:"-" db:"session_id"`
	CreatedAt   *time.Time `json:"created_at" db:"created_at"` // nil while pending server assignment
}

// Order is the created_at direction a snapshot is sorted in
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder parses an order query value; empty means ascending
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return OrderAsc, nil
	case "desc", "descending":
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("invalid order %q, must be one of: asc, desc", s)
	}
}

// SQL returns the ORDER BY direction keyword
func (o Order) SQL() string {
	if o == OrderDesc {
		return "DESC"
	}
	return "ASC"
}

// Snapshot is the full ordered list of comments matching a content key at one point in time
type Snapshot struct {
	ContentKey string    `json:"content_key"`
	Order      Order     `json:"order"`
	Comments   []Comment `json:"comments"`
}

// LegacyCommentNDJSON is a record from the old document-store export.
// Two field-naming variants exist: username/comment and user/text.
type LegacyCommentNDJSON struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Username  string          `json:"username"`
	Comment   string          `json:"comment"`
	User      string          `json:"user"`
	Text      string          `json:"text"`
	Timestamp LegacyTimestamp `json:"timestamp"`
}

// LegacyTimestamp accepts either an RFC 3339 string or a
// {"seconds": n, "nanoseconds": n} object. A null or missing value stays zero.
type LegacyTimestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *LegacyTimestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		t.Time = parsed
		return nil
	}

	var obj struct {
		Seconds     int64 `json:"seconds"`
		Nanoseconds int64 `json:"nanoseconds"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid timestamp object: %w", err)
	}
	t.Time = time.Unix(obj.Seconds, obj.Nanoseconds).UTC()
	return nil
}

// ValidationError represents a single validation error on an imported line
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}
