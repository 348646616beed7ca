// Package comment implements threaded feedback on videos.
package comment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/database"
	"github.com/vidtube/vidtube/internal/guard"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/query"
	"github.com/vidtube/vidtube/internal/validate"
)

type Handler struct {
	db database.DBTX
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db}
}

type ownerDetails struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type commentResponse struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"createdAt"`
	LikesCount int64        `json:"likesCount"`
	IsLiked    bool         `json:"isLiked"`
	Owner      ownerDetails `json:"owner"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// List returns a video's comments, newest first, with like counts
// relative to the viewer.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	viewer := auth.ViewerFromContext(r.Context())
	params := query.ParseParams(r)

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID,
	).Scan(&exists); err != nil {
		slog.Error("comment: failed to check video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check video")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	b := query.From("comments c").
		Select("c.id", "c.content", "c.created_at").
		SelectEngagement("c.id", "comment_id", viewer).
		Select("u.id", "u.username", "u.avatar_url").
		Join("JOIN users u ON u.id = c.owner_id")
	b.Where("c.video_id = " + b.Arg(videoID))

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("comment: failed to count comments", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch comments")
		return
	}

	b.Order(query.Sort{Column: "c.created_at", TieBreak: "c.id", Descending: true})
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("comment: failed to list comments", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch comments")
		return
	}
	defer rows.Close()

	comments := []commentResponse{}
	for rows.Next() {
		var c commentResponse
		if err := rows.Scan(
			&c.ID, &c.Content, &c.CreatedAt,
			&c.LikesCount, &c.IsLiked,
			&c.Owner.ID, &c.Owner.Username, &c.Owner.Avatar,
		); err != nil {
			slog.Error("comment: failed to scan comment row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch comments")
			return
		}
		comments = append(comments, c)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(comments, total, params), "comments fetched successfully")
}

// Add creates a comment on a video.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httputil.WriteError(w, http.StatusBadRequest, "content is required")
		return
	}
	if msg := validate.Comment(content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID,
	).Scan(&exists); err != nil {
		slog.Error("comment: failed to check video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check video")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	var c commentResponse
	c.Content = content
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO comments (video_id, owner_id, content) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		videoID, userID, content,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		slog.Error("comment: failed to create comment", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	httputil.WriteData(w, http.StatusCreated, c, "comment added successfully")
}

// Update edits a comment's content. Only the author may edit.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	commentID := chi.URLParam(r, "commentId")
	if _, err := uuid.Parse(commentID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httputil.WriteError(w, http.StatusBadRequest, "content is required")
		return
	}
	if msg := validate.Comment(content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM comments WHERE id = $1`, commentID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "comment not found")
		return
	}
	if err != nil {
		slog.Error("comment: failed to fetch comment", "comment_id", commentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to edit this comment")
		return
	}

	var c commentResponse
	err = h.db.QueryRow(r.Context(),
		`UPDATE comments SET content = $1, updated_at = now() WHERE id = $2
		 RETURNING id, content, created_at`,
		content, commentID,
	).Scan(&c.ID, &c.Content, &c.CreatedAt)
	if err != nil {
		slog.Error("comment: failed to update comment", "comment_id", commentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	httputil.WriteData(w, http.StatusOK, c, "comment updated successfully")
}

// Delete removes a comment. Only the author may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	commentID := chi.URLParam(r, "commentId")
	if _, err := uuid.Parse(commentID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM comments WHERE id = $1`, commentID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "comment not found")
		return
	}
	if err != nil {
		slog.Error("comment: failed to fetch comment", "comment_id", commentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to delete this comment")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`DELETE FROM comments WHERE id = $1`, commentID,
	); err != nil {
		slog.Error("comment: failed to delete comment", "comment_id", commentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	httputil.WriteData(w, http.StatusOK, nil, "comment deleted successfully")
}
