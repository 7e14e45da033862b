package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/vidhub/internal/platform/api"
	"github.com/example/vidhub/internal/platform/auth"
	"github.com/example/vidhub/internal/platform/metrics"
	"github.com/example/vidhub/services/comments/internal/events"
	"github.com/example/vidhub/services/comments/internal/store"
)

type createCommentRequest struct {
	Body      string   `json:"body"`
	ParentID  *string  `json:"parent_id,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

type updateCommentRequest struct {
	Body string `json:"body"`
}

type threadResponse struct {
	Comments   []store.ThreadNode `json:"comments"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// CreateComment handles POST /v1/videos/{video_id}/comments
func CreateComment(cs store.CommentStore, pub *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			api.BadRequest(w, "EMPTY_BODY", "body must not be empty", "", nil)
			return
		}
		if req.Timestamp != nil && *req.Timestamp < 0 {
			api.BadRequest(w, "INVALID_TIMESTAMP", "timestamp must not be negative", "", nil)
			return
		}

		c := store.Comment{
			VideoID:   videoID,
			UserID:    userID,
			ParentID:  req.ParentID,
			Body:      req.Body,
			Timestamp: req.Timestamp,
		}

		created, err := cs.Create(r.Context(), c)
		if err != nil {
			if errors.Is(err, store.ErrParentNotFound) {
				metrics.CommentWrites.WithLabelValues("create", "rejected").Inc()
				api.BadRequest(w, "PARENT_NOT_FOUND", "parent comment not found", "", nil)
				return
			}
			metrics.CommentWrites.WithLabelValues("create", "error").Inc()
			api.Internal(w, "")
			return
		}
		metrics.CommentWrites.WithLabelValues("create", "ok").Inc()
		pub.Publish(events.Event{Type: events.TypeCreated, Comment: created})
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetThread handles GET /v1/videos/{video_id}/comments
func GetThread(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		nodes, nextCursor, err := cs.GetThread(r.Context(), videoID, limit, cursor)
		if err != nil {
			api.Internal(w, "")
			return
		}

		api.WriteJSON(w, http.StatusOK, threadResponse{
			Comments:   nodes,
			NextCursor: nextCursor,
		})
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(cs store.CommentStore, pub *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		var req updateCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			api.BadRequest(w, "EMPTY_BODY", "body must not be empty", "", nil)
			return
		}

		updated, err := cs.UpdateBody(r.Context(), commentID, userID, req.Body)
		if err != nil {
			if errors.Is(err, store.ErrNotFoundOrForbidden) {
				metrics.CommentWrites.WithLabelValues("update", "rejected").Inc()
				api.Forbidden(w, "FORBIDDEN", "not found or not the author", "")
				return
			}
			metrics.CommentWrites.WithLabelValues("update", "error").Inc()
			api.Internal(w, "")
			return
		}
		metrics.CommentWrites.WithLabelValues("update", "ok").Inc()
		pub.Publish(events.Event{Type: events.TypeUpdated, Comment: updated})
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}
// Authors delete their own comments; admins may delete any.
func DeleteComment(cs store.CommentStore, pub *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", "", nil)
			return
		}

		role, _ := auth.RoleFromContext(r.Context())
		deleted, err := cs.SoftDelete(r.Context(), commentID, userID, auth.IsAdmin(role))
		if err != nil {
			if errors.Is(err, store.ErrNotFoundOrForbidden) {
				metrics.CommentWrites.WithLabelValues("delete", "rejected").Inc()
				api.Forbidden(w, "FORBIDDEN", "not found or not the author", "")
				return
			}
			metrics.CommentWrites.WithLabelValues("delete", "error").Inc()
			api.Internal(w, "")
			return
		}
		metrics.CommentWrites.WithLabelValues("delete", "ok").Inc()
		pub.Publish(events.Event{Type: events.TypeDeleted, Comment: deleted})
		w.WriteHeader(http.StatusNoContent)
	}
}
