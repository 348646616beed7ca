// Package channel implements public channel profiles and the viewer's
// watch history.
package channel

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
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

type profileResponse struct {
	ID                        string    `json:"id"`
	Username                  string    `json:"username"`
	Fullname                  string    `json:"fullname"`
	Avatar                    string    `json:"avatar"`
	CoverImage                string    `json:"coverImage"`
	CreatedAt                 time.Time `json:"createdAt"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
}

// Profile returns a channel's public profile by username, with the
// subscription flag relative to the viewer.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	username := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	if username == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username is required")
		return
	}
	viewer := auth.ViewerFromContext(r.Context())

	b := query.From("users u").
		Select(
			"u.id", "u.username", "u.fullname", "u.avatar_url", "u.cover_image_url", "u.created_at",
			"(SELECT COUNT(*) FROM subscriptions sc WHERE sc.subscriber_id = u.id) AS channels_subscribed_to_count",
		).
		SelectSubscription("u.id", viewer)
	b.Where("u.username = " + b.Arg(username))

	var p profileResponse
	err := h.db.QueryRow(r.Context(), b.SQL(), b.Args()...).Scan(
		&p.ID, &p.Username, &p.Fullname, &p.Avatar, &p.CoverImage, &p.CreatedAt,
		&p.ChannelsSubscribedToCount, &p.SubscribersCount, &p.IsSubscribed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "channel not found")
		return
	}
	if err != nil {
		slog.Error("channel: failed to fetch profile", "username", username, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch channel profile")
		return
	}

	httputil.WriteData(w, http.StatusOK, p, "channel profile fetched successfully")
}

type historyEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Duration  float64   `json:"duration"`
	Views     int64     `json:"views"`
	WatchedAt time.Time `json:"watchedAt"`
	Owner     struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	} `json:"owner"`
}

// WatchHistory returns the caller's watched videos, most recent first.
func (h *Handler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	params := query.ParseParams(r)

	b := query.From("watch_history wh").
		Select(
			"v.id", "v.title", "v.thumbnail_url", "v.duration", "v.views", "wh.watched_at",
			"u.id", "u.username", "u.avatar_url",
		).
		Join("JOIN videos v ON v.id = wh.video_id").
		Join("JOIN users u ON u.id = v.owner_id")
	b.Where("wh.user_id = " + b.Arg(userID))

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("channel: failed to count watch history", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch watch history")
		return
	}

	b.Order(query.Sort{Column: "wh.watched_at", TieBreak: "wh.video_id", Descending: true})
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("channel: failed to list watch history", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch watch history")
		return
	}
	defer rows.Close()

	history := []historyEntry{}
	for rows.Next() {
		var e historyEntry
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Thumbnail, &e.Duration, &e.Views, &e.WatchedAt,
			&e.Owner.ID, &e.Owner.Username, &e.Owner.Avatar,
		); err != nil {
			slog.Error("channel: failed to scan history row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch watch history")
			return
		}
		history = append(history, e)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(history, total, params), "watch history fetched successfully")
}
