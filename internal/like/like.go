// Package like implements toggleable likes on videos, comments and
// tweets.
package like

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/database"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/query"
)

type Handler struct {
	db database.DBTX
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db}
}

// ToggleVideo flips the caller's like on a video.
func (h *Handler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "videoId", "videos", "video_id", "video not found")
}

// ToggleComment flips the caller's like on a comment.
func (h *Handler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "commentId", "comments", "comment_id", "comment not found")
}

// ToggleTweet flips the caller's like on a tweet.
func (h *Handler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "tweetId", "tweets", "tweet_id", "tweet not found")
}

// toggle finds the caller's like on the target and deletes it, or
// inserts one when absent. The find and the write are separate
// statements, so two racing toggles can both insert; the next toggle
// removes a single row and the count settles.
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, param, table, column, notFound string) {
	userID := auth.UserIDFromContext(r.Context())
	targetID := chi.URLParam(r, param)
	if _, err := uuid.Parse(targetID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid "+param)
		return
	}

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, targetID,
	).Scan(&exists); err != nil {
		slog.Error("like: failed to check target", "table", table, "target_id", targetID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle like")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, notFound)
		return
	}

	var likeID string
	err := h.db.QueryRow(r.Context(),
		`SELECT id FROM likes WHERE `+column+` = $1 AND liked_by = $2`,
		targetID, userID,
	).Scan(&likeID)

	switch {
	case err == nil:
		if _, err := h.db.Exec(r.Context(),
			`DELETE FROM likes WHERE id = $1`, likeID,
		); err != nil {
			slog.Error("like: failed to remove like", "like_id", likeID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle like")
			return
		}
		httputil.WriteData(w, http.StatusOK, map[string]bool{"isLiked": false}, "like removed")

	case errors.Is(err, pgx.ErrNoRows):
		if _, err := h.db.Exec(r.Context(),
			`INSERT INTO likes (`+column+`, liked_by) VALUES ($1, $2)`,
			targetID, userID,
		); err != nil {
			slog.Error("like: failed to add like", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle like")
			return
		}
		httputil.WriteData(w, http.StatusOK, map[string]bool{"isLiked": true}, "like added")

	default:
		slog.Error("like: failed to look up like", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle like")
	}
}

type ownerDetails struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type likedVideo struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	VideoFile   string       `json:"videoFile"`
	Thumbnail   string       `json:"thumbnail"`
	Duration    float64      `json:"duration"`
	Views       int64        `json:"views"`
	CreatedAt   time.Time    `json:"createdAt"`
	LikedAt     time.Time    `json:"likedAt"`
	Owner       ownerDetails `json:"owner"`
}

// LikedVideos returns the videos the caller has liked, most recently
// liked first.
func (h *Handler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	params := query.ParseParams(r)

	b := query.From("likes l").
		Select(
			"v.id", "v.title", "v.description", "v.video_url", "v.thumbnail_url",
			"v.duration", "v.views", "v.created_at", "l.created_at",
			"u.id", "u.username", "u.avatar_url",
		).
		Join("JOIN videos v ON v.id = l.video_id").
		Join("JOIN users u ON u.id = v.owner_id")
	b.Where("l.liked_by = " + b.Arg(userID))
	b.Where("l.video_id IS NOT NULL")

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("like: failed to count liked videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch liked videos")
		return
	}

	b.Order(query.Sort{Column: "l.created_at", TieBreak: "l.id", Descending: true})
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("like: failed to list liked videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch liked videos")
		return
	}
	defer rows.Close()

	videos := []likedVideo{}
	for rows.Next() {
		var v likedVideo
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail,
			&v.Duration, &v.Views, &v.CreatedAt, &v.LikedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar,
		); err != nil {
			slog.Error("like: failed to scan liked video row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch liked videos")
			return
		}
		videos = append(videos, v)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(videos, total, params), "liked videos fetched successfully")
}
