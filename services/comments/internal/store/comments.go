package store

import (
	"context"
	"errors"
	"time"
)

// Comment represents a single comment row on a video.
// Timestamp is an optional playback-position marker in seconds,
// immutable after creation.
type Comment struct {
	ID        string     `json:"id"`
	VideoID   string     `json:"video_id"`
	UserID    string     `json:"user_id"`
	ParentID  *string    `json:"parent_id,omitempty"`
	Body      string     `json:"body"`
	Timestamp *float64   `json:"timestamp,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ThreadNode is a root comment with its direct replies.
// This is the snapshot shape served to clients and mirrored by the
// commentsync tree store.
type ThreadNode struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// ErrNotFoundOrForbidden is returned when a comment does not exist or
// the caller is not allowed to touch it. The two cases are deliberately
// indistinguishable to avoid leaking comment existence.
var ErrNotFoundOrForbidden = errors.New("comment not found or forbidden")

// ErrParentNotFound is returned when a reply references a parent that
// does not exist on the same video.
var ErrParentNotFound = errors.New("parent comment not found")

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	// Create persists a new comment. A non-nil ParentID must reference an
	// existing, non-deleted comment on the same video.
	Create(ctx context.Context, c Comment) (Comment, error)
	// GetThread returns a page of root comments (oldest first), each with
	// its full reply subtree flattened beneath it, plus an opaque cursor
	// for the next page. Soft-deleted comments are not included.
	GetThread(ctx context.Context, videoID string, limit int, cursor string) ([]ThreadNode, string, error)
	// UpdateBody edits a comment's body; author-only. Returns the updated row.
	UpdateBody(ctx context.Context, commentID, userID, body string) (Comment, error)
	// SoftDelete marks a comment deleted; author-only unless asAdmin.
	// Returns the deleted row so callers can route the change event.
	SoftDelete(ctx context.Context, commentID, userID string, asAdmin bool) (Comment, error)
}
