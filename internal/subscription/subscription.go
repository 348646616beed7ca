// Package subscription implements channel subscriptions.
package subscription

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
)

type Handler struct {
	db database.DBTX
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db}
}

func (h *Handler) userExists(w http.ResponseWriter, r *http.Request, id, notFound string) bool {
	var exists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		slog.Error("subscription: failed to check user", "user_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check user")
		return false
	}
	if !exists {
		httputil.WriteError(w, http.StatusNotFound, notFound)
		return false
	}
	return true
}

// Toggle flips the caller's subscription to a channel. Subscribing to
// your own channel is rejected.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	channelID := chi.URLParam(r, "channelId")
	if _, err := uuid.Parse(channelID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	if channelID == userID {
		httputil.WriteError(w, http.StatusBadRequest, "you cannot subscribe to your own channel")
		return
	}

	if !h.userExists(w, r, channelID, "channel not found") {
		return
	}

	var subscriptionID string
	err := h.db.QueryRow(r.Context(),
		`SELECT id FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
		userID, channelID,
	).Scan(&subscriptionID)

	switch {
	case err == nil:
		if _, err := h.db.Exec(r.Context(),
			`DELETE FROM subscriptions WHERE id = $1`, subscriptionID,
		); err != nil {
			slog.Error("subscription: failed to unsubscribe", "subscription_id", subscriptionID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle subscription")
			return
		}
		httputil.WriteData(w, http.StatusOK, map[string]bool{"isSubscribed": false}, "unsubscribed")

	case errors.Is(err, pgx.ErrNoRows):
		if _, err := h.db.Exec(r.Context(),
			`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)`,
			userID, channelID,
		); err != nil {
			slog.Error("subscription: failed to subscribe", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle subscription")
			return
		}
		httputil.WriteData(w, http.StatusOK, map[string]bool{"isSubscribed": true}, "subscribed")

	default:
		slog.Error("subscription: failed to look up subscription", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle subscription")
	}
}

type subscriberDetails struct {
	ID                     string `json:"id"`
	Username               string `json:"username"`
	Fullname               string `json:"fullname"`
	Avatar                 string `json:"avatar"`
	SubscribersCount       int64  `json:"subscribersCount"`
	SubscribedToSubscriber bool   `json:"subscribedToSubscriber"`
}

// Subscribers returns the users subscribed to a channel, newest first.
// Each entry carries the subscriber's own audience size and whether the
// caller subscribes to that subscriber. Guests read a constant false.
func (h *Handler) Subscribers(w http.ResponseWriter, r *http.Request) {
	viewer := auth.ViewerFromContext(r.Context())
	channelID := chi.URLParam(r, "channelId")
	if _, err := uuid.Parse(channelID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	if !h.userExists(w, r, channelID, "channel not found") {
		return
	}

	subscribedBack := "false"
	args := []any{channelID}
	if !viewer.IsGuest() {
		subscribedBack = `EXISTS (
		            SELECT 1 FROM subscriptions sb
		            WHERE sb.channel_id = u.id AND sb.subscriber_id = $2
		        )`
		args = append(args, viewer.UserID())
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT u.id, u.username, u.fullname, u.avatar_url,
		        (SELECT COUNT(*) FROM subscriptions sc WHERE sc.channel_id = u.id) AS subscribers_count,
		        `+subscribedBack+` AS subscribed_to_subscriber
		 FROM subscriptions s
		 JOIN users u ON u.id = s.subscriber_id
		 WHERE s.channel_id = $1
		 ORDER BY s.created_at DESC, s.id DESC`,
		args...,
	)
	if err != nil {
		slog.Error("subscription: failed to list subscribers", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch subscribers")
		return
	}
	defer rows.Close()

	subscribers := []subscriberDetails{}
	for rows.Next() {
		var s subscriberDetails
		if err := rows.Scan(
			&s.ID, &s.Username, &s.Fullname, &s.Avatar,
			&s.SubscribersCount, &s.SubscribedToSubscriber,
		); err != nil {
			slog.Error("subscription: failed to scan subscriber row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch subscribers")
			return
		}
		subscribers = append(subscribers, s)
	}

	httputil.WriteData(w, http.StatusOK, subscribers, "subscribers fetched successfully")
}

type latestVideo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Duration  float64   `json:"duration"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
}

type subscribedChannel struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Fullname    string       `json:"fullname"`
	Avatar      string       `json:"avatar"`
	LatestVideo *latestVideo `json:"latestVideo"`
}

// SubscribedChannels returns the channels a user subscribes to, each
// with its most recent published video when one exists.
func (h *Handler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberId")
	if _, err := uuid.Parse(subscriberID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid subscriber id")
		return
	}

	if !h.userExists(w, r, subscriberID, "user not found") {
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT u.id, u.username, u.fullname, u.avatar_url,
		        lv.id, lv.title, lv.thumbnail_url, lv.duration, lv.views, lv.created_at
		 FROM subscriptions s
		 JOIN users u ON u.id = s.channel_id
		 LEFT JOIN LATERAL (
		     SELECT v.id, v.title, v.thumbnail_url, v.duration, v.views, v.created_at
		     FROM videos v
		     WHERE v.owner_id = u.id AND v.is_published = true
		     ORDER BY v.created_at DESC, v.id DESC
		     LIMIT 1
		 ) lv ON true
		 WHERE s.subscriber_id = $1
		 ORDER BY s.created_at DESC, s.id DESC`,
		subscriberID,
	)
	if err != nil {
		slog.Error("subscription: failed to list subscribed channels", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch subscribed channels")
		return
	}
	defer rows.Close()

	channels := []subscribedChannel{}
	for rows.Next() {
		var c subscribedChannel
		var videoID, title, thumbnail *string
		var duration *float64
		var views *int64
		var createdAt *time.Time
		if err := rows.Scan(
			&c.ID, &c.Username, &c.Fullname, &c.Avatar,
			&videoID, &title, &thumbnail, &duration, &views, &createdAt,
		); err != nil {
			slog.Error("subscription: failed to scan channel row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch subscribed channels")
			return
		}
		if videoID != nil {
			c.LatestVideo = &latestVideo{
				ID:        *videoID,
				Title:     *title,
				Thumbnail: *thumbnail,
				Duration:  *duration,
				Views:     *views,
				CreatedAt: *createdAt,
			}
		}
		channels = append(channels, c)
	}

	httputil.WriteData(w, http.StatusOK, channels, "subscribed channels fetched successfully")
}
