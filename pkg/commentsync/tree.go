// Package commentsync keeps a client-side view of a video's comment
// thread in sync with the comments service: a pure tree store, an SSE
// event channel with capped reconnect, and a controller that feeds both
// inbound events and optimistic local mutations through the same
// idempotent operations.
package commentsync

import (
	"time"
)

// Comment mirrors the comment shape served by the comments API.
type Comment struct {
	ID        string     `json:"id"`
	VideoID   string     `json:"video_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	ParentID  *string    `json:"parent_id,omitempty"`
	Body      string     `json:"body"`
	Timestamp *float64   `json:"timestamp,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ThreadNode is a root comment with its replies, in arrival order.
type ThreadNode struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// AddComment returns the tree with c inserted.
//
// A comment without a parent becomes a new root; one with a parent is
// appended to the replies of the root that owns the parent, whether the
// parent is the root itself or one of its replies. Duplicate ids and
// unresolvable parents leave the tree unchanged: the tree is a
// best-effort cache and a stale event must never corrupt it.
func AddComment(tree []ThreadNode, c Comment) []ThreadNode {
	if c.ParentID == nil || *c.ParentID == "" {
		for _, n := range tree {
			if n.Comment.ID == c.ID {
				return tree
			}
		}
		out := make([]ThreadNode, len(tree), len(tree)+1)
		copy(out, tree)
		return append(out, ThreadNode{Comment: c, Replies: []Comment{}})
	}

	parentID := *c.ParentID
	target := -1
	for i, n := range tree {
		if n.Comment.ID == parentID {
			target = i
			break
		}
	}
	if target < 0 {
		// One level deeper: the parent may itself be a reply.
		for i, n := range tree {
			for _, r := range n.Replies {
				if r.ID == parentID {
					target = i
					break
				}
			}
			if target >= 0 {
				break
			}
		}
	}
	if target < 0 {
		// Orphan: drop silently.
		return tree
	}

	for _, r := range tree[target].Replies {
		if r.ID == c.ID {
			return tree
		}
	}

	out := make([]ThreadNode, len(tree))
	copy(out, tree)
	replies := make([]Comment, len(out[target].Replies), len(out[target].Replies)+1)
	copy(replies, out[target].Replies)
	out[target].Replies = append(replies, c)
	return out
}

// UpdateComment returns the tree with the body of the comment with the
// given id replaced and its updated-at refreshed. Unknown ids are a no-op.
func UpdateComment(tree []ThreadNode, id, body string) []ThreadNode {
	now := time.Now().UTC()

	for i, n := range tree {
		if n.Comment.ID == id {
			out := make([]ThreadNode, len(tree))
			copy(out, tree)
			out[i].Comment.Body = body
			out[i].Comment.UpdatedAt = &now
			return out
		}
		for j, r := range n.Replies {
			if r.ID == id {
				out := make([]ThreadNode, len(tree))
				copy(out, tree)
				replies := make([]Comment, len(n.Replies))
				copy(replies, n.Replies)
				replies[j].Body = body
				replies[j].UpdatedAt = &now
				out[i].Replies = replies
				return out
			}
		}
	}
	return tree
}

// RemoveComment returns the tree without the comment with the given id.
// Removing a root removes its replies with it. Unknown ids are a no-op.
func RemoveComment(tree []ThreadNode, id string) []ThreadNode {
	found := false
	out := make([]ThreadNode, 0, len(tree))
	for _, n := range tree {
		if n.Comment.ID == id {
			found = true
			continue
		}
		keep := n
		for _, r := range n.Replies {
			if r.ID == id {
				found = true
				replies := make([]Comment, 0, len(n.Replies)-1)
				for _, r2 := range n.Replies {
					if r2.ID != id {
						replies = append(replies, r2)
					}
				}
				keep.Replies = replies
				break
			}
		}
		out = append(out, keep)
	}
	if !found {
		return tree
	}
	return out
}

// cloneTree deep-copies the node and reply slices so callers can hold
// the result across later mutations.
func cloneTree(tree []ThreadNode) []ThreadNode {
	out := make([]ThreadNode, len(tree))
	for i, n := range tree {
		out[i].Comment = n.Comment
		out[i].Replies = make([]Comment, len(n.Replies))
		copy(out[i].Replies, n.Replies)
	}
	return out
}
