package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blog-comment-widget/internal/mocks"
	"github.com/blog-comment-widget/internal/models"
)

func TestMockCommentRepository_BatchInsert(t *testing.T) {
	repo := mocks.NewMockCommentRepository()
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	comments := []*models.Comment{
		{ID: "comment-1", ContentKey: "post-1", AuthorLabel: "a", Body: "one", CreatedAt: &ts},
		{ID: "comment-2", ContentKey: "post-1", AuthorLabel: "b", Body: "two", CreatedAt: &ts},
		{ID: "comment-3", ContentKey: "post-2", AuthorLabel: "c", Body: "three", CreatedAt: &ts},
	}

	inserted, err := repo.BatchInsert(ctx, comments)
	if err != nil {
		t.Fatalf("BatchInsert failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("Expected 3 inserted, got %d", inserted)
	}

	// Verify comments are retrievable
	for _, c := range comments {
		stored, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Errorf("GetByID failed: %v", err)
		}
		if stored == nil {
			t.Errorf("Comment %s not found", c.ID)
		}
	}

	count, _ := repo.Count(ctx)
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func TestMockCommentRepository_CreateAssignsIncreasingTimestamps(t *testing.T) {
	repo := mocks.NewMockCommentRepository()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.Now = func() time.Time { return fixed }
	ctx := context.Background()

	first := &models.Comment{ID: "a", ContentKey: "post-1", Body: "one"}
	second := &models.Comment{ID: "b", ContentKey: "post-1", Body: "two"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if first.CreatedAt == nil || second.CreatedAt == nil {
		t.Fatal("Expected created_at to be assigned")
	}
	if !second.CreatedAt.After(*first.CreatedAt) {
		t.Errorf("Expected strictly increasing timestamps, got %v then %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestMockCommentRepository_ListByContentKey(t *testing.T) {
	repo := mocks.NewMockCommentRepository()
	ctx := context.Background()

	for _, c := range []*models.Comment{
		{ID: "a", ContentKey: "post-1", Body: "first"},
		{ID: "b", ContentKey: "post-2", Body: "other post"},
		{ID: "c", ContentKey: "post-1", Body: "second"},
		{ID: "d", ContentKey: "post-1", Body: "third"},
	} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		order models.Order
		limit int
		want  []string
	}{
		{"ascending", models.OrderAsc, 0, []string{"a", "c", "d"}},
		{"descending", models.OrderDesc, 0, []string{"d", "c", "a"}},
		{"limited keeps newest", models.OrderAsc, 2, []string{"c", "d"}},
		{"limited descending", models.OrderDesc, 2, []string{"d", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByContentKey(ctx, "post-1", tt.order, tt.limit)
			if err != nil {
				t.Fatalf("ListByContentKey failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d comments, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestMockCommentRepository_Errors(t *testing.T) {
	repo := mocks.NewMockCommentRepository()
	ctx := context.Background()

	repo.InsertError = errors.New("permission denied")
	if err := repo.Create(ctx, &models.Comment{ID: "a", ContentKey: "post-1", Body: "x"}); err == nil {
		t.Error("Expected Create to fail")
	}
	if repo.Len() != 0 {
		t.Errorf("Expected nothing stored, got %d", repo.Len())
	}

	repo.SetListError(errors.New("connection refused"))
	if _, err := repo.ListByContentKey(ctx, "post-1", models.OrderAsc, 0); err == nil {
		t.Error("Expected ListByContentKey to fail")
	}
}

func TestMockSessionRepository(t *testing.T) {
	repo := mocks.NewMockSessionRepository()
	ctx := context.Background()

	session := &models.Session{ID: "sess-1", CreatedAt: time.Now(), LastSeenAt: time.Now().Add(-time.Hour)}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	before, _ := repo.GetByID(ctx, "sess-1")
	if err := repo.Touch(ctx, "sess-1"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	after, _ := repo.GetByID(ctx, "sess-1")
	if !after.LastSeenAt.After(before.LastSeenAt) {
		t.Errorf("Expected last_seen_at to advance, got %v then %v", before.LastSeenAt, after.LastSeenAt)
	}

	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil session for unknown id, got %v (err %v)", missing, err)
	}
}
