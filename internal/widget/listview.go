package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/internal/validation"
	"github.com/rs/zerolog"
)

// ListState is what the list view currently shows
type ListState struct {
	ContentKey string       `json:"content_key"`
	Order      models.Order `json:"order"`
	Loading    bool         `json:"loading"`
	Rows       []Row        `json:"rows"`
	Err        string       `json:"error,omitempty"`

	// Comments is the snapshot the rows were rendered from
	Comments []models.Comment `json:"comments"`
}

// StateFromSnapshot renders a snapshot into a list state
func StateFromSnapshot(snap models.Snapshot, f Formatter) ListState {
	return ListState{
		ContentKey: snap.ContentKey,
		Order:      snap.Order,
		Rows:       f.Rows(snap.Comments),
		Comments:   snap.Comments,
	}
}

// ListView renders the latest snapshot of one content key.
// Mount opens the live subscription and Unmount releases it; after Unmount
// returns no further snapshot is applied and OnChange is never called again.
type ListView struct {
	subscriber store.Subscriber
	contentKey string
	order      models.Order
	format     Formatter
	log        zerolog.Logger

	mu       sync.Mutex
	state    ListState
	onChange func(ListState)
	mounted  bool
	stopped  bool
	cancel   context.CancelFunc
	sub      store.Subscription
	done     chan struct{}
}

// NewListView creates an unmounted list view in the loading state
func NewListView(subscriber store.Subscriber, contentKey string, order models.Order, f Formatter, log zerolog.Logger) *ListView {
	return &ListView{
		subscriber: subscriber,
		contentKey: contentKey,
		order:      order,
		format:     f,
		log:        log.With().Str("component", "list_view").Str("content_key", contentKey).Logger(),
		state: ListState{
			ContentKey: contentKey,
			Order:      order,
			Loading:    true,
			Rows:       []Row{},
			Comments:   []models.Comment{},
		},
	}
}

// OnChange registers fn to receive every new state. fn runs on the view's
// delivery goroutine and must not call Unmount.
func (v *ListView) OnChange(fn func(ListState)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

// State returns the current state
func (v *ListView) State() ListState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Mount opens the subscription. A failure is shown in the view state and
// returned; the view stays usable for rendering.
func (v *ListView) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted || v.stopped {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	sub, err := v.subscriber.Subscribe(ctx, v.contentKey, v.order)
	if err != nil {
		cancel()
		v.log.Error().Err(err).Msg("Failed to subscribe to comments")
		v.update(func(s *ListState) {
			s.Loading = false
			s.Err = MessageFor(err)
		})
		return err
	}

	done := make(chan struct{})
	v.mu.Lock()
	if v.stopped {
		// Unmounted while subscribing
		v.mu.Unlock()
		cancel()
		sub.Close()
		return nil
	}
	v.cancel = cancel
	v.sub = sub
	v.done = done
	v.mu.Unlock()

	go v.loop(ctx, sub, done)
	return nil
}

// Unmount cancels the subscription and waits for delivery to stop.
// It is safe to call more than once and before Mount.
func (v *ListView) Unmount() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	cancel, sub, done := v.cancel, v.sub, v.done
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	sub.Close()
	<-done
}

func (v *ListView) loop(ctx context.Context, sub store.Subscription, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil {
					v.log.Error().Err(err).Msg("Live comment updates stopped")
					v.update(func(s *ListState) {
						s.Loading = false
						s.Err = MessageFor(err)
					})
				}
				return
			}
			rows := v.format.Rows(snap.Comments)
			v.update(func(s *ListState) {
				s.Loading = false
				s.Rows = rows
				s.Comments = snap.Comments
				s.Err = ""
			})
		}
	}
}

// update applies fn unless the view has been unmounted and notifies the listener
func (v *ListView) update(fn func(*ListState)) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	fn(&v.state)
	state := v.state
	notify := v.onChange
	v.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

// Failed reports whether the state carries an error from the store
func (s ListState) Failed() bool {
	return s.Err != ""
}

// MessageFor converts a store failure into the text shown to visitors
func MessageFor(err error) string {
	var (
		verr   *store.ValidationError
		authEr *store.AuthError
		subErr *store.SubscriptionError
		stErr  *store.StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		switch {
		case errors.Is(err, validation.ErrEmptyBody):
			return "Comment cannot be empty."
		case errors.Is(err, validation.ErrBodyTooLong):
			return "Comment is too long."
		default:
			return "This page cannot take comments."
		}
	case errors.As(err, &authEr):
		return "Could not start an anonymous session. Please try again."
	case errors.As(err, &subErr):
		return "Live updates stopped. Reload the page to see new comments."
	case errors.As(err, &stErr):
		if stErr.Op == "append" {
			return "Failed to post comment. Please try again."
		}
		return "Comments could not be loaded."
	default:
		return "Something went wrong. Please try again."
	}
}
