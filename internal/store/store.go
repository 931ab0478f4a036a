// Package store is the comment store adapter: live, filtered and ordered
// snapshots of the comments for a content key, and an append operation that
// establishes an anonymous session on first use.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/blog-comment-widget/internal/identity"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/realtime"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/blog-comment-widget/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscriber opens live snapshot subscriptions
type Subscriber interface {
	Subscribe(ctx context.Context, contentKey string, order models.Order) (Subscription, error)
}

// Appender appends new comment records
type Appender interface {
	Append(ctx context.Context, contentKey, authorLabel, body string) (string, error)
}

// Store is the full adapter contract
type Store interface {
	Subscriber
	Appender
}

// Subscription is a live, non-restartable sequence of snapshots.
// Snapshots is closed when the subscription ends; Err is non-nil afterwards
// if it ended because of a failure rather than Close or context cancellation.
type Subscription interface {
	Snapshots() <-chan models.Snapshot
	Err() error
	Close()
}

// Deps are the shared collaborators every adapter is built from. They are
// constructed once at process start.
type Deps struct {
	Comments repository.CommentRepository
	Notifier realtime.Notifier
	Identity identity.Authenticator
	Log      zerolog.Logger
}

// Options tune adapter behaviour
type Options struct {
	PlaceholderAuthor string
	MaxBodyRunes      int
	SnapshotLimit     int
}

func (o Options) withDefaults() Options {
	if o.PlaceholderAuthor == "" {
		o.PlaceholderAuthor = models.DefaultAuthorLabel
	}
	if o.MaxBodyRunes <= 0 {
		o.MaxBodyRunes = models.DefaultMaxBodyRunes
	}
	if o.SnapshotLimit <= 0 {
		o.SnapshotLimit = 500
	}
	return o
}

// Adapter implements Store on top of the comment repository, the realtime
// notifier and the identity service. An adapter is scoped to one visitor
// session, the way a client SDK instance is.
type Adapter struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	token   string
	session *models.Session
}

var _ Store = (*Adapter)(nil)

// New creates an adapter with no session
func New(deps Deps, opts Options) *Adapter {
	return &Adapter{
		deps: deps,
		opts: opts.withDefaults(),
		log:  deps.Log.With().Str("component", "store").Logger(),
	}
}

// WithSessionToken returns a new adapter sharing a's collaborators that will
// try to resume the session identified by token before signing in anew
func (a *Adapter) WithSessionToken(token string) *Adapter {
	return &Adapter{
		deps:  a.deps,
		opts:  a.opts,
		log:   a.log,
		token: strings.TrimSpace(token),
	}
}

// Session returns the session established by the last Append, if any
func (a *Adapter) Session() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Snapshot reads the current ordered comments for contentKey once
func (a *Adapter) Snapshot(ctx context.Context, contentKey string, order models.Order) (models.Snapshot, error) {
	if verr := validation.ValidateContentKey(contentKey); verr != nil {
		return models.Snapshot{}, newValidationError(*verr)
	}
	snap, err := a.query(ctx, contentKey, order)
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "snapshot", ContentKey: contentKey, Err: err}
	}
	return snap, nil
}

func (a *Adapter) query(ctx context.Context, contentKey string, order models.Order) (models.Snapshot, error) {
	comments, err := a.deps.Comments.ListByContentKey(ctx, contentKey, order, a.opts.SnapshotLimit)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{ContentKey: contentKey, Order: order, Comments: comments}, nil
}

// Subscribe opens a live subscription. The first snapshot is read before
// Subscribe returns; later snapshots follow every change to the content key.
func (a *Adapter) Subscribe(ctx context.Context, contentKey string, order models.Order) (Subscription, error) {
	if verr := validation.ValidateContentKey(contentKey); verr != nil {
		return nil, newValidationError(*verr)
	}
	if order != models.OrderDesc {
		order = models.OrderAsc
	}

	// Register before the initial read so a change in between is not lost
	signals, release := a.deps.Notifier.Subscribe(contentKey)

	first, err := a.query(ctx, contentKey, order)
	if err != nil {
		release()
		a.log.Error().Err(err).Str("content_key", contentKey).Msg("Failed to open subscription")
		return nil, &StoreError{Op: "subscribe", ContentKey: contentKey, Err: err}
	}

	sub := newSubscription(ctx, a, contentKey, order, signals, release)
	go sub.run(first)

	a.log.Debug().Str("content_key", contentKey).Str("order", string(order)).Msg("Subscription opened")
	return sub, nil
}

// Append validates and inserts a new comment, establishing an anonymous
// session first if this adapter has none. The created_at value is assigned
// by the store; the new comment reaches subscribers through their next
// snapshot, not through this return value.
func (a *Adapter) Append(ctx context.Context, contentKey, authorLabel, body string) (string, error) {
	if errs := validation.ValidateSubmission(contentKey, body, a.opts.MaxBodyRunes); len(errs) > 0 {
		return "", newValidationError(errs[0])
	}

	session, err := a.ensureSession(ctx)
	if err != nil {
		a.log.Error().Err(err).Str("content_key", contentKey).Msg("Anonymous sign-in failed")
		return "", &AuthError{Err: err}
	}

	comment := &models.Comment{
		ID:          uuid.NewString(),
		ContentKey:  contentKey,
		AuthorLabel: validation.NormalizeAuthor(authorLabel, a.opts.PlaceholderAuthor),
		Body:        body,
		SessionID:   session.ID,
	}

	if err := a.deps.Comments.Create(ctx, comment); err != nil {
		a.log.Error().Err(err).Str("content_key", contentKey).Msg("Failed to append comment")
		return "", &StoreError{Op: "append", ContentKey: contentKey, Err: err}
	}

	a.log.Info().
		Str("comment_id", comment.ID).
		Str("content_key", contentKey).
		Str("session_ref", session.LogRef()).
		Msg("Comment appended")

	return comment.ID, nil
}

func (a *Adapter) ensureSession(ctx context.Context) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}

	if a.token != "" {
		session, err := a.deps.Identity.Resolve(ctx, a.token)
		if err != nil {
			return nil, err
		}
		if session != nil {
			a.session = session
			return session, nil
		}
	}

	session, err := a.deps.Identity.SignInAnonymously(ctx)
	if err != nil {
		return nil, err
	}
	a.session = session
	a.token = session.ID
	return session, nil
}
