package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryCommentStore is a development-only in-memory implementation.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]Comment // id -> comment
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments: make(map[string]Comment),
	}
}

func (s *InMemoryCommentStore) Create(_ context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != nil {
		parent, ok := s.comments[*c.ParentID]
		if !ok || parent.VideoID != c.VideoID || parent.DeletedAt != nil {
			return Comment{}, ErrParentNotFound
		}
	}

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = nil
	c.DeletedAt = nil
	s.comments[c.ID] = c
	return c, nil
}

func (s *InMemoryCommentStore) GetThread(_ context.Context, videoID string, limit int, cursor string) ([]ThreadNode, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var roots []Comment
	childrenByParent := make(map[string][]Comment)
	for _, c := range s.comments {
		if c.VideoID != videoID || c.DeletedAt != nil {
			continue
		}
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			childrenByParent[*c.ParentID] = append(childrenByParent[*c.ParentID], c)
		}
	}

	// Thread reading order: oldest root first.
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.Before(roots[j].CreatedAt)
		}
		return roots[i].ID < roots[j].ID
	})

	// Simple cursor: skip past cursor position (development only)
	startIdx := 0
	if cursor != "" {
		for i, r := range roots {
			if r.ID == cursor {
				startIdx = i + 1
				break
			}
		}
	}

	if startIdx >= len(roots) {
		return []ThreadNode{}, "", nil
	}
	roots = roots[startIdx:]

	var nextCursor string
	if len(roots) > limit {
		nextCursor = roots[limit-1].ID
		roots = roots[:limit]
	}

	nodes := make([]ThreadNode, len(roots))
	for i, root := range roots {
		replies := collectReplies(childrenByParent, root.ID)
		sort.Slice(replies, func(a, b int) bool {
			if !replies[a].CreatedAt.Equal(replies[b].CreatedAt) {
				return replies[a].CreatedAt.Before(replies[b].CreatedAt)
			}
			return replies[a].ID < replies[b].ID
		})
		nodes[i] = ThreadNode{Comment: root, Replies: replies}
	}
	return nodes, nextCursor, nil
}

// collectReplies flattens the whole reply subtree under rootID.
// Replies to replies are legal at write time, so the snapshot has to
// surface them too, flat under the owning root.
func collectReplies(children map[string][]Comment, rootID string) []Comment {
	out := []Comment{}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out
}

func (s *InMemoryCommentStore) UpdateBody(_ context.Context, commentID, userID, body string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.UserID != userID || c.DeletedAt != nil {
		return Comment{}, ErrNotFoundOrForbidden
	}
	c.Body = body
	now := time.Now().UTC()
	c.UpdatedAt = &now
	s.comments[commentID] = c
	return c, nil
}

func (s *InMemoryCommentStore) SoftDelete(_ context.Context, commentID, userID string, asAdmin bool) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok || c.DeletedAt != nil {
		return Comment{}, ErrNotFoundOrForbidden
	}
	if !asAdmin && c.UserID != userID {
		return Comment{}, ErrNotFoundOrForbidden
	}
	c.Body = "[deleted]"
	now := time.Now().UTC()
	c.DeletedAt = &now
	s.comments[commentID] = c
	return c, nil
}
