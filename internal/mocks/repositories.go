package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/repository"
)

// MockCommentRepository is an in-memory CommentRepository.
// Create assigns a strictly increasing created_at, like the server clock.
type MockCommentRepository struct {
	mu          sync.Mutex
	Comments    []*models.Comment
	InsertError error
	ListError   error
	GetError    error
	ListCalls   int
	// OnCreate runs after a successful Create, outside the lock.
	// Tests use it to publish a change notification like the database trigger.
	OnCreate func(comment *models.Comment)
	Now      func() time.Time
	last     time.Time
}

var _ repository.CommentRepository = (*MockCommentRepository)(nil)

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{
		Comments: make([]*models.Comment, 0),
		Now:      time.Now,
	}
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	if m.InsertError != nil {
		m.mu.Unlock()
		return m.InsertError
	}
	now := m.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	comment.CreatedAt = &now
	stored := *comment
	m.Comments = append(m.Comments, &stored)
	hook := m.OnCreate
	m.mu.Unlock()

	if hook != nil {
		hook(&stored)
	}
	return nil
}

func (m *MockCommentRepository) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, c := range comments {
		stored := *c
		m.Comments = append(m.Comments, &stored)
	}
	return len(comments), nil
}

func (m *MockCommentRepository) ListByContentKey(ctx context.Context, contentKey string, order models.Order, limit int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if m.ListError != nil {
		return nil, m.ListError
	}

	result := make([]models.Comment, 0)
	for _, c := range m.Comments {
		if c.ContentKey == contentKey {
			result = append(result, *c)
		}
	}

	// newest first, so the limit keeps the latest comments
	sortComments(result, models.OrderDesc)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	sortComments(result, order)
	return result, nil
}

func sortComments(result []models.Comment, order models.Order) {
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(*b.CreatedAt) {
			if order == models.OrderDesc {
				return a.CreatedAt.After(*b.CreatedAt)
			}
			return a.CreatedAt.Before(*b.CreatedAt)
		}
		if order == models.OrderDesc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}

	for _, c := range m.Comments {
		if c.ID == id {
			found := *c
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MockCommentRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Comments), nil
}

func (m *MockCommentRepository) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	m.mu.Lock()
	snapshot := make([]*models.Comment, len(m.Comments))
	copy(snapshot, m.Comments)
	m.mu.Unlock()

	for _, c := range snapshot {
		if err := callback(c); err != nil {
			return err
		}
	}
	return nil
}

// SetListError changes the error returned by ListByContentKey
func (m *MockCommentRepository) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListError = err
}

// Len returns the number of stored comments
func (m *MockCommentRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Comments)
}

// MockSessionRepository is an in-memory SessionRepository
type MockSessionRepository struct {
	mu          sync.Mutex
	Sessions    map[string]*models.Session
	CreateError error
	GetError    error
	Touched     []string
}

var _ repository.SessionRepository = (*MockSessionRepository)(nil)

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]*models.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return m.CreateError
	}
	stored := *session
	m.Sessions[session.ID] = &stored
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}
	s, ok := m.Sessions[id]
	if !ok {
		return nil, nil
	}
	found := *s
	return &found, nil
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Touched = append(m.Touched, id)
	if s, ok := m.Sessions[id]; ok {
		s.LastSeenAt = time.Now()
	}
	return nil
}
