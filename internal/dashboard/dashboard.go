// Package dashboard implements the channel owner's private stats view.
package dashboard

import (
	"log/slog"
	"net/http"
	"time"

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

type statsResponse struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalLikes       int64 `json:"totalLikes"`
}

// Stats returns aggregate counts for the caller's channel. A channel
// with no videos reports zeros across the board.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var s statsResponse
	err := h.db.QueryRow(r.Context(),
		`SELECT
		     (SELECT COUNT(*) FROM videos v WHERE v.owner_id = $1) AS total_videos,
		     (SELECT COALESCE(SUM(v.views), 0) FROM videos v WHERE v.owner_id = $1) AS total_views,
		     (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = $1) AS total_subscribers,
		     (SELECT COUNT(*) FROM likes l
		      JOIN videos v ON v.id = l.video_id
		      WHERE v.owner_id = $1) AS total_likes`,
		userID,
	).Scan(&s.TotalVideos, &s.TotalViews, &s.TotalSubscribers, &s.TotalLikes)
	if err != nil {
		slog.Error("dashboard: failed to fetch channel stats", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch channel stats")
		return
	}

	httputil.WriteData(w, http.StatusOK, s, "channel stats fetched successfully")
}

var videoSortFields = map[string]string{
	"createdAt": "v.created_at",
	"title":     "v.title",
	"views":     "v.views",
}

type dashboardVideo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	LikesCount  int64     `json:"likesCount"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Videos returns every video on the caller's channel, unpublished
// included, with per-video like counts.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	params := query.ParseParams(r)
	sort := query.ParseSort(r, videoSortFields, "v.created_at", "v.id")

	b := query.From("videos v").
		Select(
			"v.id", "v.title", "v.thumbnail_url", "v.duration", "v.views",
			"(SELECT COUNT(*) FROM likes l WHERE l.video_id = v.id) AS likes_count",
			"v.is_published", "v.created_at",
		)
	b.Where("v.owner_id = " + b.Arg(userID))

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("dashboard: failed to count channel videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch channel videos")
		return
	}

	b.Order(sort)
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("dashboard: failed to list channel videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch channel videos")
		return
	}
	defer rows.Close()

	videos := []dashboardVideo{}
	for rows.Next() {
		var v dashboardVideo
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Thumbnail, &v.Duration, &v.Views,
			&v.LikesCount, &v.IsPublished, &v.CreatedAt,
		); err != nil {
			slog.Error("dashboard: failed to scan channel video row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch channel videos")
			return
		}
		videos = append(videos, v)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(videos, total, params), "channel videos fetched successfully")
}
