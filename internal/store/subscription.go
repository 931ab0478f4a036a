package store

import (
	"context"
	"sync"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/realtime"
)

type subscription struct {
	adapter    *Adapter
	ctx        context.Context
	cancel     context.CancelFunc
	contentKey string
	order      models.Order
	signals    <-chan struct{}
	release    func()

	out  chan models.Snapshot
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newSubscription(parent context.Context, a *Adapter, contentKey string, order models.Order,
	signals <-chan struct{}, release func()) *subscription {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{
		adapter:    a,
		ctx:        ctx,
		cancel:     cancel,
		contentKey: contentKey,
		order:      order,
		signals:    signals,
		release:    release,
		out:        make(chan models.Snapshot),
		done:       make(chan struct{}),
	}
}

func (s *subscription) Snapshots() <-chan models.Snapshot { return s.out }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops delivery and releases the notifier registration. It returns
// once the delivery goroutine has exited, so no snapshot is delivered after it.
func (s *subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	s.err = &SubscriptionError{ContentKey: s.contentKey, Err: err}
	s.mu.Unlock()
	s.adapter.log.Error().Err(err).Str("content_key", s.contentKey).Msg("Live subscription stopped")
}

func (s *subscription) run(first models.Snapshot) {
	defer close(s.done)
	defer close(s.out)
	defer s.release()

	pending := &first
	last := first
	for {
		if pending != nil {
			select {
			case s.out <- *pending:
				last = *pending
				pending = nil
			case <-s.ctx.Done():
				return
			}
			continue
		}

		select {
		case <-s.ctx.Done():
			return
		case _, ok := <-s.signals:
			if !ok {
				if s.ctx.Err() != nil {
					return
				}
				cause := s.adapter.deps.Notifier.Err()
				if cause == nil {
					cause = realtime.ErrBrokerClosed
				}
				s.fail(cause)
				return
			}
			next, err := s.adapter.query(s.ctx, s.contentKey, s.order)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.fail(&StoreError{Op: "subscribe", ContentKey: s.contentKey, Err: err})
				return
			}
			if sameComments(last.Comments, next.Comments) {
				continue
			}
			pending = &next
		}
	}
}

// sameComments compares by id sequence; comment records are never mutated
func sameComments(a, b []models.Comment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
