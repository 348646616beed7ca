// Package tweet implements short text posts on a channel.
package tweet

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

type tweetResponse struct {
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

// Create posts a new tweet for the authenticated user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

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
	if msg := validate.Tweet(content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var t tweetResponse
	t.Content = content
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO tweets (owner_id, content) VALUES ($1, $2)
		 RETURNING id, created_at`,
		userID, content,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		slog.Error("tweet: failed to create tweet", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create tweet")
		return
	}

	httputil.WriteData(w, http.StatusCreated, t, "tweet created successfully")
}

// ListByUser returns a user's tweets, newest first, with like counts
// relative to the viewer.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")
	if _, err := uuid.Parse(ownerID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	viewer := auth.ViewerFromContext(r.Context())
	params := query.ParseParams(r)

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, ownerID,
	).Scan(&exists); err != nil {
		slog.Error("tweet: failed to check user", "user_id", ownerID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check user")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	b := query.From("tweets t").
		Select("t.id", "t.content", "t.created_at").
		SelectEngagement("t.id", "tweet_id", viewer).
		Select("u.id", "u.username", "u.avatar_url").
		Join("JOIN users u ON u.id = t.owner_id")
	b.Where("t.owner_id = " + b.Arg(ownerID))

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("tweet: failed to count tweets", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch tweets")
		return
	}

	b.Order(query.Sort{Column: "t.created_at", TieBreak: "t.id", Descending: true})
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("tweet: failed to list tweets", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch tweets")
		return
	}
	defer rows.Close()

	tweets := []tweetResponse{}
	for rows.Next() {
		var t tweetResponse
		if err := rows.Scan(
			&t.ID, &t.Content, &t.CreatedAt,
			&t.LikesCount, &t.IsLiked,
			&t.Owner.ID, &t.Owner.Username, &t.Owner.Avatar,
		); err != nil {
			slog.Error("tweet: failed to scan tweet row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch tweets")
			return
		}
		tweets = append(tweets, t)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(tweets, total, params), "tweets fetched successfully")
}

// Update edits a tweet's content. Only the author may edit.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	tweetID := chi.URLParam(r, "tweetId")
	if _, err := uuid.Parse(tweetID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid tweet id")
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
	if msg := validate.Tweet(content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM tweets WHERE id = $1`, tweetID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "tweet not found")
		return
	}
	if err != nil {
		slog.Error("tweet: failed to fetch tweet", "tweet_id", tweetID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update tweet")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to edit this tweet")
		return
	}

	var t tweetResponse
	err = h.db.QueryRow(r.Context(),
		`UPDATE tweets SET content = $1, updated_at = now() WHERE id = $2
		 RETURNING id, content, created_at`,
		content, tweetID,
	).Scan(&t.ID, &t.Content, &t.CreatedAt)
	if err != nil {
		slog.Error("tweet: failed to update tweet", "tweet_id", tweetID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update tweet")
		return
	}

	httputil.WriteData(w, http.StatusOK, t, "tweet updated successfully")
}

// Delete removes a tweet. Only the author may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	tweetID := chi.URLParam(r, "tweetId")
	if _, err := uuid.Parse(tweetID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid tweet id")
		return
	}

	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM tweets WHERE id = $1`, tweetID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "tweet not found")
		return
	}
	if err != nil {
		slog.Error("tweet: failed to fetch tweet", "tweet_id", tweetID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete tweet")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to delete this tweet")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`DELETE FROM tweets WHERE id = $1`, tweetID,
	); err != nil {
		slog.Error("tweet: failed to delete tweet", "tweet_id", tweetID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete tweet")
		return
	}

	httputil.WriteData(w, http.StatusOK, nil, "tweet deleted successfully")
}
