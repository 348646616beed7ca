package video

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/query"
)

var listSortFields = map[string]string{
	"createdAt": "v.created_at",
	"title":     "v.title",
	"duration":  "v.duration",
	"views":     "v.views",
}

type listItem struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	VideoFile   string       `json:"videoFile"`
	Thumbnail   string       `json:"thumbnail"`
	Duration    float64      `json:"duration"`
	Views       int64        `json:"views"`
	CreatedAt   time.Time    `json:"createdAt"`
	Owner       ownerDetails `json:"owner"`
}

// List returns published videos with owner details, optionally filtered
// by owner and title search, paginated and sorted by a whitelisted field.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := query.ParseParams(r)
	sort := query.ParseSort(r, listSortFields, "v.created_at", "v.id")

	b := query.From("videos v").
		Select(
			"v.id", "v.title", "v.description", "v.video_url", "v.thumbnail_url",
			"v.duration", "v.views", "v.created_at",
			"u.id", "u.username", "u.avatar_url",
		).
		Join("JOIN users u ON u.id = v.owner_id").
		Where("v.is_published = true")

	if ownerID := r.URL.Query().Get("userId"); ownerID != "" {
		if _, err := uuid.Parse(ownerID); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		b.Where("v.owner_id = " + b.Arg(ownerID))
	}
	if q := strings.TrimSpace(r.URL.Query().Get("query")); q != "" {
		b.Where("v.title ILIKE " + b.Arg("%"+query.EscapeLike(q)+"%"))
	}

	var total int64
	if err := h.db.QueryRow(r.Context(), b.CountSQL(), b.Args()...).Scan(&total); err != nil {
		slog.Error("video: failed to count videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch videos")
		return
	}

	b.Order(sort)
	pageSQL, pageArgs := b.PageSQL(params)
	rows, err := h.db.Query(r.Context(), pageSQL, pageArgs...)
	if err != nil {
		slog.Error("video: failed to list videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch videos")
		return
	}
	defer rows.Close()

	videos := []listItem{}
	for rows.Next() {
		var v listItem
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail,
			&v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar,
		); err != nil {
			slog.Error("video: failed to scan video row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch videos")
			return
		}
		videos = append(videos, v)
	}

	httputil.WriteData(w, http.StatusOK, query.NewPaginated(videos, total, params), "videos fetched successfully")
}

type videoDetail struct {
	ID            string       `json:"id"`
	VideoFile     string       `json:"videoFile"`
	Thumbnail     string       `json:"thumbnail"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Duration      float64      `json:"duration"`
	Views         int64        `json:"views"`
	IsPublished   bool         `json:"isPublished"`
	CreatedAt     time.Time    `json:"createdAt"`
	CommentsCount int64        `json:"commentsCount"`
	LikesCount    int64        `json:"likesCount"`
	IsLiked       bool         `json:"isLiked"`
	Owner         channelOwner `json:"owner"`
}

type channelOwner struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Avatar           string `json:"avatar"`
	SubscribersCount int64  `json:"subscribersCount"`
	IsSubscribed     bool   `json:"isSubscribed"`
}

// Get returns a single video with engagement counts relative to the
// viewer. Each successful fetch increments the view counter, and an
// authenticated fetch records the video in the viewer's watch history.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	viewer := auth.ViewerFromContext(r.Context())

	b := query.From("videos v").
		Select(
			"v.id", "v.video_url", "v.thumbnail_url", "v.title", "v.description",
			"v.duration", "v.views", "v.is_published", "v.created_at",
			"(SELECT COUNT(*) FROM comments c WHERE c.video_id = v.id) AS comments_count",
		).
		SelectEngagement("v.id", "video_id", viewer).
		Select("u.id", "u.username", "u.avatar_url").
		SelectSubscription("u.id", viewer).
		Join("JOIN users u ON u.id = v.owner_id")
	b.Where("v.id = " + b.Arg(videoID))

	var v videoDetail
	err := h.db.QueryRow(r.Context(), b.SQL(), b.Args()...).Scan(
		&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description,
		&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt,
		&v.CommentsCount, &v.LikesCount, &v.IsLiked,
		&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar,
		&v.Owner.SubscribersCount, &v.Owner.IsSubscribed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		slog.Error("video: failed to fetch video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch video")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE videos SET views = views + 1 WHERE id = $1`, videoID,
	); err != nil {
		slog.Error("video: failed to increment views", "video_id", videoID, "error", err)
	}

	if !viewer.IsGuest() {
		if _, err := h.db.Exec(r.Context(),
			`INSERT INTO watch_history (user_id, video_id) VALUES ($1, $2)
			 ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = now()`,
			viewer.UserID(), videoID,
		); err != nil {
			slog.Error("video: failed to record watch history", "video_id", videoID, "error", err)
		}
	}

	httputil.WriteData(w, http.StatusOK, v, "video fetched successfully")
}

// Next returns up to 10 random published videos excluding the one being
// watched, for the up-next rail.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID,
	).Scan(&exists); err != nil {
		slog.Error("video: failed to check video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch next videos")
		return
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, v.description, v.video_url, v.thumbnail_url,
		        v.duration, v.views, v.created_at,
		        u.id, u.username, u.avatar_url
		 FROM videos v
		 JOIN users u ON u.id = v.owner_id
		 WHERE v.id <> $1 AND v.is_published = true
		 ORDER BY random()
		 LIMIT 10`,
		videoID,
	)
	if err != nil {
		slog.Error("video: failed to fetch next videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch next videos")
		return
	}
	defer rows.Close()

	videos := []listItem{}
	for rows.Next() {
		var v listItem
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail,
			&v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar,
		); err != nil {
			slog.Error("video: failed to scan next video row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch next videos")
			return
		}
		videos = append(videos, v)
	}

	httputil.WriteData(w, http.StatusOK, videos, "next videos fetched successfully")
}
