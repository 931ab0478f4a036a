package widget

import (
	"context"
	"strings"
	"sync"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/internal/validation"
	"github.com/rs/zerolog"
)

// AckKind classifies a submit acknowledgment
type AckKind string

const (
	AckSuccess AckKind = "success"
	AckError   AckKind = "error"
)

// SuccessMessage is shown after a comment was accepted
const SuccessMessage = "Comment posted!"

// Ack is the user-visible outcome of a submit
type Ack struct {
	Kind      AckKind `json:"kind"`
	Message   string  `json:"message"`
	CommentID string  `json:"id,omitempty"`
	Err       error   `json:"-"`
}

// OK reports whether the submit succeeded
func (a Ack) OK() bool { return a.Kind == AckSuccess }

// Draft is a validated submission ready to append
type Draft struct {
	ContentKey  string
	AuthorLabel string
	Body        string

	// author is the raw input the draft was prepared from
	author string
}

// ComposerOptions tune the composer
type ComposerOptions struct {
	PlaceholderAuthor string
	// ClearAuthorOnSuccess also resets the author field after a successful submit
	ClearAuthorOnSuccess bool
}

// Composer holds the author and body inputs for one content key
type Composer struct {
	appender   store.Appender
	contentKey string
	opts       ComposerOptions
	log        zerolog.Logger

	mu     sync.Mutex
	author string
	body   string
}

// NewComposer creates an empty composer
func NewComposer(appender store.Appender, contentKey string, opts ComposerOptions, log zerolog.Logger) *Composer {
	if opts.PlaceholderAuthor == "" {
		opts.PlaceholderAuthor = models.DefaultAuthorLabel
	}
	return &Composer{
		appender:   appender,
		contentKey: contentKey,
		opts:       opts,
		log:        log.With().Str("component", "composer").Str("content_key", contentKey).Logger(),
	}
}

func (c *Composer) SetAuthor(author string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.author = author
}

func (c *Composer) SetBody(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
}

func (c *Composer) Author() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.author
}

func (c *Composer) Body() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

// Prepare checks the current input. It returns the draft to append, or a
// rejection when the body is blank, in which case nothing must be appended.
func (c *Composer) Prepare() (Draft, *Ack) {
	c.mu.Lock()
	author, body := c.author, c.body
	c.mu.Unlock()

	if strings.TrimSpace(body) == "" {
		err := &store.ValidationError{Field: "body", Err: validation.ErrEmptyBody}
		c.log.Debug().Msg("Rejected empty comment")
		return Draft{}, &Ack{Kind: AckError, Message: MessageFor(err), Err: err}
	}

	return Draft{
		ContentKey:  c.contentKey,
		AuthorLabel: validation.NormalizeAuthor(author, c.opts.PlaceholderAuthor),
		Body:        body,
		author:      author,
	}, nil
}

// Complete records the outcome of appending d. On success the fields are
// cleared unless they were edited after d was prepared; on failure both keep
// their values for a retry.
func (c *Composer) Complete(d Draft, id string, err error) Ack {
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to submit comment")
		return Ack{Kind: AckError, Message: MessageFor(err), Err: err}
	}

	c.mu.Lock()
	if c.body == d.Body {
		c.body = ""
	}
	if c.opts.ClearAuthorOnSuccess && c.author == d.author {
		c.author = ""
	}
	c.mu.Unlock()

	c.log.Info().Str("comment_id", id).Msg("Comment submitted")
	return Ack{Kind: AckSuccess, Message: SuccessMessage, CommentID: id}
}

// Submit appends the current input and returns the acknowledgment to show.
// The new comment appears through the list view's next snapshot.
func (c *Composer) Submit(ctx context.Context) Ack {
	d, rejected := c.Prepare()
	if rejected != nil {
		return *rejected
	}
	id, err := c.appender.Append(ctx, d.ContentKey, d.AuthorLabel, d.Body)
	return c.Complete(d, id, err)
}
