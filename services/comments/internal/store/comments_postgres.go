package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCommentStore persists comments in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

const commentColumns = `id, video_id, user_id, parent_id, body, ts, created_at, updated_at, deleted_at`

func (s *PostgresCommentStore) Create(ctx context.Context, c Comment) (Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if c.ParentID != nil {
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1 AND video_id = $2 AND deleted_at IS NULL)`,
			*c.ParentID, c.VideoID).Scan(&exists)
		if err != nil {
			return Comment{}, err
		}
		if !exists {
			return Comment{}, ErrParentNotFound
		}
	}

	q := `INSERT INTO comments (video_id, user_id, parent_id, body, ts)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING ` + commentColumns
	row := tx.QueryRow(ctx, q, c.VideoID, c.UserID, c.ParentID, c.Body, c.Timestamp)
	var out Comment
	if err := scanComment(row, &out); err != nil {
		return Comment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Comment{}, err
	}
	return out, nil
}

func (s *PostgresCommentStore) GetThread(ctx context.Context, videoID string, limit int, cursor string) ([]ThreadNode, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	roots, err := s.queryRoots(ctx, videoID, limit+1, cursor)
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(roots) > limit {
		last := roots[limit-1]
		roots = roots[:limit]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	if len(roots) == 0 {
		return []ThreadNode{}, "", nil
	}

	rootIDs := make([]string, len(roots))
	for i, r := range roots {
		rootIDs[i] = r.ID
	}

	replyMap, err := s.queryReplies(ctx, rootIDs)
	if err != nil {
		return nil, "", err
	}

	nodes := make([]ThreadNode, len(roots))
	for i, r := range roots {
		nodes[i] = ThreadNode{
			Comment: r,
			Replies: replyMap[r.ID],
		}
		if nodes[i].Replies == nil {
			nodes[i].Replies = []Comment{}
		}
	}
	return nodes, nextCursor, nil
}

func (s *PostgresCommentStore) queryRoots(ctx context.Context, videoID string, limit int, cursor string) ([]Comment, error) {
	var q string
	var args []any

	// Oldest root first so a thread reads top to bottom.
	if cursor == "" {
		q = `SELECT ` + commentColumns + `
		     FROM comments
		     WHERE video_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
		     ORDER BY created_at ASC, id ASC
		     LIMIT $2`
		args = []any{videoID, limit}
	} else {
		cursorTime, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		q = `SELECT ` + commentColumns + `
		     FROM comments
		     WHERE video_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
		       AND (created_at, id) > ($3, $4)
		     ORDER BY created_at ASC, id ASC
		     LIMIT $2`
		args = []any{videoID, limit, cursorTime, cursorID}
	}
	return s.scanComments(ctx, q, args...)
}

// queryReplies returns the whole reply subtree of each root, keyed by
// root id. Replies to replies are legal at write time, so the walk is
// recursive; every descendant lands flat under its owning root.
func (s *PostgresCommentStore) queryReplies(ctx context.Context, rootIDs []string) (map[string][]Comment, error) {
	q := `WITH RECURSIVE thread AS (
	        SELECT ` + commentColumns + `, parent_id AS root_id
	        FROM comments
	        WHERE parent_id = ANY($1) AND deleted_at IS NULL
	        UNION ALL
	        SELECT c.id, c.video_id, c.user_id, c.parent_id, c.body, c.ts,
	               c.created_at, c.updated_at, c.deleted_at, t.root_id
	        FROM comments c
	        JOIN thread t ON c.parent_id = t.id
	        WHERE c.deleted_at IS NULL
	      )
	      SELECT ` + commentColumns + `, root_id
	      FROM thread
	      ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, q, rootIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	replyMap := make(map[string][]Comment)
	for rows.Next() {
		var c Comment
		var rootID string
		if err := rows.Scan(&c.ID, &c.VideoID, &c.UserID, &c.ParentID,
			&c.Body, &c.Timestamp, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
			&rootID); err != nil {
			return nil, err
		}
		replyMap[rootID] = append(replyMap[rootID], c)
	}
	return replyMap, rows.Err()
}

func (s *PostgresCommentStore) scanComments(ctx context.Context, q string, args ...any) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComment(row pgx.Row, c *Comment) error {
	return row.Scan(&c.ID, &c.VideoID, &c.UserID, &c.ParentID,
		&c.Body, &c.Timestamp, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
}

func (s *PostgresCommentStore) UpdateBody(ctx context.Context, commentID, userID, body string) (Comment, error) {
	q := `UPDATE comments SET body = $1, updated_at = now()
	      WHERE id = $2 AND user_id = $3 AND deleted_at IS NULL
	      RETURNING ` + commentColumns
	row := s.pool.QueryRow(ctx, q, body, commentID, userID)
	var out Comment
	if err := scanComment(row, &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFoundOrForbidden
		}
		return Comment{}, err
	}
	return out, nil
}

func (s *PostgresCommentStore) SoftDelete(ctx context.Context, commentID, userID string, asAdmin bool) (Comment, error) {
	var q string
	var args []any
	if asAdmin {
		q = `UPDATE comments SET body = '[deleted]', deleted_at = now()
		     WHERE id = $1 AND deleted_at IS NULL
		     RETURNING ` + commentColumns
		args = []any{commentID}
	} else {
		q = `UPDATE comments SET body = '[deleted]', deleted_at = now()
		     WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		     RETURNING ` + commentColumns
		args = []any{commentID, userID}
	}
	row := s.pool.QueryRow(ctx, q, args...)
	var out Comment
	if err := scanComment(row, &out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFoundOrForbidden
		}
		return Comment{}, err
	}
	return out, nil
}

func encodeCursor(t time.Time, id string) string {
	raw := fmt.Sprintf("%d|%s", t.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(c string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(c)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("malformed cursor")
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, nanos), parts[1], nil
}
