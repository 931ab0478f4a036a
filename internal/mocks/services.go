package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blog-comment-widget/internal/identity"
	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
	"github.com/google/uuid"
)

// MockAuthenticator is a mock implementation of identity.Authenticator
type MockAuthenticator struct {
	mu          sync.Mutex
	Sessions    map[string]*models.Session
	SignInError error
	SignInCalls int
}

// Verify interface compliance
var _ identity.Authenticator = (*MockAuthenticator)(nil)

func NewMockAuthenticator() *MockAuthenticator {
	return &MockAuthenticator{Sessions: make(map[string]*models.Session)}
}

func (m *MockAuthenticator) SignInAnonymously(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SignInCalls++
	if m.SignInError != nil {
		return nil, m.SignInError
	}
	now := time.Now()
	s := &models.Session{ID: uuid.NewString(), CreatedAt: now, LastSeenAt: now}
	m.Sessions[s.ID] = s
	return s, nil
}

func (m *MockAuthenticator) Resolve(ctx context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sessions[token], nil
}

// Calls returns the number of sign-ins so far
func (m *MockAuthenticator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SignInCalls
}

// MockSubscription is a hand-driven store.Subscription.
// Tests feed it with Push and end it with Fail.
type MockSubscription struct {
	ch         chan models.Snapshot
	done       chan struct{}
	closeOnce  sync.Once
	failOnce   sync.Once
	mu         sync.Mutex
	err        error
	closeCalls int
}

var _ store.Subscription = (*MockSubscription)(nil)

func NewMockSubscription() *MockSubscription {
	return &MockSubscription{
		ch:   make(chan models.Snapshot),
		done: make(chan struct{}),
	}
}

func (s *MockSubscription) Snapshots() <-chan models.Snapshot { return s.ch }

func (s *MockSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *MockSubscription) Close() {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed reports whether Close has been called
func (s *MockSubscription) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// CloseCalls returns how many times Close was called
func (s *MockSubscription) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Push delivers snap to the consumer. It returns false once the
// subscription is closed or the timeout passes without a reader.
func (s *MockSubscription) Push(snap models.Snapshot, timeout time.Duration) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- snap:
		return true
	case <-s.done:
		return false
	case <-time.After(timeout):
		return false
	}
}

// Fail ends the stream with err, like a listener error mid-stream
func (s *MockSubscription) Fail(err error) {
	s.failOnce.Do(func() {
		s.mu.Lock()
		s.err = &store.SubscriptionError{Err: err}
		s.mu.Unlock()
		close(s.ch)
	})
}

// AppendCall records one Append invocation
type AppendCall struct {
	ContentKey  string
	AuthorLabel string
	Body        string
}

// MockStore is a spy implementation of the comment store adapter
type MockStore struct {
	mu             sync.Mutex
	AppendCalls    []AppendCall
	AppendError    error
	AppendFunc     func(ctx context.Context, contentKey, authorLabel, body string) (string, error)
	SnapshotData   map[string]models.Snapshot
	SnapshotError  error
	SubscribeError error
	Subscriptions  []*MockSubscription
	SessionValue   *models.Session
	nextID         int
}

var _ store.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{SnapshotData: make(map[string]models.Snapshot)}
}

func (m *MockStore) Append(ctx context.Context, contentKey, authorLabel, body string) (string, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{ContentKey: contentKey, AuthorLabel: authorLabel, Body: body})
	fn := m.AppendFunc
	appendErr := m.AppendError
	m.nextID++
	id := fmt.Sprintf("comment-%d", m.nextID)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, contentKey, authorLabel, body)
	}
	if appendErr != nil {
		return "", appendErr
	}
	return id, nil
}

func (m *MockStore) Subscribe(ctx context.Context, contentKey string, order models.Order) (store.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubscribeError != nil {
		return nil, m.SubscribeError
	}
	sub := NewMockSubscription()
	m.Subscriptions = append(m.Subscriptions, sub)

	if snap, ok := m.SnapshotData[contentKey]; ok {
		snap.Order = order
		go sub.Push(snap, time.Second)
	}
	return sub, nil
}

func (m *MockStore) Snapshot(ctx context.Context, contentKey string, order models.Order) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SnapshotError != nil {
		return models.Snapshot{}, m.SnapshotError
	}
	snap, ok := m.SnapshotData[contentKey]
	if !ok {
		snap = models.Snapshot{ContentKey: contentKey, Comments: []models.Comment{}}
	}
	snap.Order = order
	return snap, nil
}

func (m *MockStore) Session() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SessionValue
}

// Calls returns a copy of the recorded Append calls
func (m *MockStore) Calls() []AppendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]AppendCall, len(m.AppendCalls))
	copy(calls, m.AppendCalls)
	return calls
}

// LastSubscription returns the most recently opened subscription
func (m *MockStore) LastSubscription() *MockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Subscriptions) == 0 {
		return nil
	}
	return m.Subscriptions[len(m.Subscriptions)-1]
}
