// Package realtime fans PostgreSQL change notifications out to per-content-key
// subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Channel is the NOTIFY channel the comments trigger publishes on.
// The payload is the content key of the inserted row.
const Channel = "comment_changes"

// ErrBrokerClosed is reported to subscribers when the broker shuts down normally
var ErrBrokerClosed = errors.New("realtime broker closed")

// Notifier hands out change signals for a content key.
// The signal channel is closed when no further signals will arrive;
// Err then explains why.
type Notifier interface {
	Subscribe(contentKey string) (<-chan struct{}, func())
	Err() error
}

// Listener is the subset of *pq.Listener the broker needs
type Listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

var _ Listener = (*pq.Listener)(nil)

// Broker routes notifications to subscribers of the matching content key.
// Signals are coalesced: a subscriber that has not consumed the previous
// signal is not sent another one.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]chan struct{}
	nextID uint64
	closed bool
	err    error
	log    zerolog.Logger
}

var _ Notifier = (*Broker)(nil)

// NewBroker creates an empty broker
func NewBroker(log zerolog.Logger) *Broker {
	return &Broker{
		subs: make(map[string]map[uint64]chan struct{}),
		log:  log.With().Str("component", "realtime").Logger(),
	}
}

// Subscribe registers interest in a content key. The returned cancel func
// releases the registration and is safe to call more than once.
func (b *Broker) Subscribe(contentKey string) (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	if b.subs[contentKey] == nil {
		b.subs[contentKey] = make(map[uint64]chan struct{})
	}
	b.subs[contentKey][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(contentKey, id) })
	}
}

func (b *Broker) unsubscribe(contentKey string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[contentKey]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subs, contentKey)
	}
}

// Publish signals every subscriber of contentKey
func (b *Broker) Publish(contentKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[contentKey] {
		signal(ch)
	}
}

// PublishAll signals every subscriber. Used after a listener reconnect,
// when notifications may have been missed.
func (b *Broker) PublishAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subs {
		for _, ch := range subs {
			signal(ch)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Active returns the number of live subscriptions
func (b *Broker) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// Err returns the reason the broker stopped, nil while running
func (b *Broker) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close stops the broker and closes every subscriber channel.
// A nil cause records ErrBrokerClosed.
func (b *Broker) Close(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if cause == nil {
		cause = ErrBrokerClosed
	}
	b.closed = true
	b.err = cause

	for key, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, key)
	}
}

// Run pumps notifications from l into the broker until ctx is cancelled or
// the listener's notification channel closes. The listener is closed on return.
func (b *Broker) Run(ctx context.Context, l Listener, pingInterval time.Duration) error {
	if err := l.Listen(Channel); err != nil {
		l.Close()
		b.Close(err)
		return fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	defer l.Close()

	b.log.Info().Str("channel", Channel).Msg("Listening for comment changes")

	if pingInterval <= 0 {
		pingInterval = 90 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	notifications := l.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			b.Close(nil)
			return nil

		case n, ok := <-notifications:
			if !ok {
				err := errors.New("listener notification channel closed")
				b.log.Error().Err(err).Msg("Live subscriptions stopped")
				b.Close(err)
				return err
			}
			// pq delivers nil after re-establishing a lost connection
			if n == nil {
				b.log.Info().Msg("Listener reconnected, refreshing all subscriptions")
				b.PublishAll()
				continue
			}
			b.log.Debug().Str("content_key", n.Extra).Msg("Comment change notification")
			b.Publish(n.Extra)

		case <-ticker.C:
			go func() {
				if err := l.Ping(); err != nil {
					b.log.Warn().Err(err).Msg("Listener ping failed")
				}
			}()
		}
	}
}
