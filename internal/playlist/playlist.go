// Package playlist implements user-curated video collections.
package playlist

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
	"github.com/vidtube/vidtube/internal/validate"
)

type Handler struct {
	db database.DBTX
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db}
}

type playlistResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	TotalVideos int64     `json:"totalVideos"`
	TotalViews  int64     `json:"totalViews"`
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create makes a new empty playlist for the authenticated user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if name == "" || description == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name and description are required")
		return
	}
	if msg := validate.PlaylistName(name); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.PlaylistDescription(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var p playlistResponse
	p.Name = name
	p.Description = description
	p.OwnerID = userID
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO playlists (owner_id, name, description) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		userID, name, description,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		slog.Error("playlist: failed to create playlist", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}

	httputil.WriteData(w, http.StatusCreated, p, "playlist created successfully")
}

type playlistVideo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Duration  float64   `json:"duration"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	Owner     struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	} `json:"owner"`
}

type playlistDetail struct {
	playlistResponse
	Videos []playlistVideo `json:"videos"`
}

// Get returns a playlist with its published videos in playlist order.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistId")
	if _, err := uuid.Parse(playlistID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	var p playlistDetail
	err := h.db.QueryRow(r.Context(),
		`SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at,
		        (SELECT COUNT(*) FROM playlist_videos pv
		         JOIN videos v ON v.id = pv.video_id
		         WHERE pv.playlist_id = p.id AND v.is_published = true) AS total_videos,
		        (SELECT COALESCE(SUM(v.views), 0) FROM playlist_videos pv
		         JOIN videos v ON v.id = pv.video_id
		         WHERE pv.playlist_id = p.id AND v.is_published = true) AS total_views
		 FROM playlists p WHERE p.id = $1`,
		playlistID,
	).Scan(
		&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
		&p.TotalVideos, &p.TotalViews,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		slog.Error("playlist: failed to fetch playlist", "playlist_id", playlistID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch playlist")
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, v.thumbnail_url, v.duration, v.views, v.created_at,
		        u.id, u.username, u.avatar_url
		 FROM playlist_videos pv
		 JOIN videos v ON v.id = pv.video_id
		 JOIN users u ON u.id = v.owner_id
		 WHERE pv.playlist_id = $1 AND v.is_published = true
		 ORDER BY pv.position, pv.video_id`,
		playlistID,
	)
	if err != nil {
		slog.Error("playlist: failed to list playlist videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch playlist")
		return
	}
	defer rows.Close()

	p.Videos = []playlistVideo{}
	for rows.Next() {
		var v playlistVideo
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Thumbnail, &v.Duration, &v.Views, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar,
		); err != nil {
			slog.Error("playlist: failed to scan playlist video row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch playlist")
			return
		}
		p.Videos = append(p.Videos, v)
	}

	httputil.WriteData(w, http.StatusOK, p, "playlist fetched successfully")
}

// ListByUser returns a user's playlists with aggregate counts.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")
	if _, err := uuid.Parse(ownerID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at,
		        (SELECT COUNT(*) FROM playlist_videos pv
		         JOIN videos v ON v.id = pv.video_id
		         WHERE pv.playlist_id = p.id AND v.is_published = true) AS total_videos,
		        (SELECT COALESCE(SUM(v.views), 0) FROM playlist_videos pv
		         JOIN videos v ON v.id = pv.video_id
		         WHERE pv.playlist_id = p.id AND v.is_published = true) AS total_views
		 FROM playlists p
		 WHERE p.owner_id = $1
		 ORDER BY p.created_at DESC, p.id DESC`,
		ownerID,
	)
	if err != nil {
		slog.Error("playlist: failed to list playlists", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch playlists")
		return
	}
	defer rows.Close()

	playlists := []playlistResponse{}
	for rows.Next() {
		var p playlistResponse
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
			&p.TotalVideos, &p.TotalViews,
		); err != nil {
			slog.Error("playlist: failed to scan playlist row", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch playlists")
			return
		}
		playlists = append(playlists, p)
	}

	httputil.WriteData(w, http.StatusOK, playlists, "playlists fetched successfully")
}

// Update changes a playlist's name or description. At least one must be
// provided. Only the owner may update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "playlistId")
	if _, err := uuid.Parse(playlistID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if name == "" && description == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name or description is required")
		return
	}
	if msg := validate.PlaylistName(name); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.PlaylistDescription(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if !h.ownsPlaylist(w, r, playlistID, userID, "update") {
		return
	}

	var p playlistResponse
	err := h.db.QueryRow(r.Context(),
		`UPDATE playlists
		 SET name = COALESCE(NULLIF($1, ''), name),
		     description = COALESCE(NULLIF($2, ''), description),
		     updated_at = now()
		 WHERE id = $3
		 RETURNING id, name, description, owner_id, created_at, updated_at`,
		name, description, playlistID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		slog.Error("playlist: failed to update playlist", "playlist_id", playlistID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update playlist")
		return
	}

	httputil.WriteData(w, http.StatusOK, p, "playlist updated successfully")
}

// Delete removes a playlist. Only the owner may delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "playlistId")
	if _, err := uuid.Parse(playlistID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	if !h.ownsPlaylist(w, r, playlistID, userID, "delete") {
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`DELETE FROM playlists WHERE id = $1`, playlistID,
	); err != nil {
		slog.Error("playlist: failed to delete playlist", "playlist_id", playlistID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}

	httputil.WriteData(w, http.StatusOK, nil, "playlist deleted successfully")
}

// AddVideo appends a video to the end of a playlist. Adding a video
// that is already present is rejected.
func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "playlistId")
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(playlistID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	if !h.ownsPlaylist(w, r, playlistID, userID, "modify") {
		return
	}

	var videoExists bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID,
	).Scan(&videoExists); err != nil {
		slog.Error("playlist: failed to check video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add video to playlist")
		return
	}
	if !videoExists {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	var inPlaylist bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2)`,
		playlistID, videoID,
	).Scan(&inPlaylist); err != nil {
		slog.Error("playlist: failed to check membership", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add video to playlist")
		return
	}
	if inPlaylist {
		httputil.WriteError(w, http.StatusBadRequest, "video is already in the playlist")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO playlist_videos (playlist_id, video_id, position)
		 SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		 FROM playlist_videos WHERE playlist_id = $1`,
		playlistID, videoID,
	); err != nil {
		slog.Error("playlist: failed to add video", "playlist_id", playlistID, "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add video to playlist")
		return
	}

	httputil.WriteData(w, http.StatusOK, nil, "video added to playlist")
}

// RemoveVideo takes a video out of a playlist. Removing a video that is
// not in the playlist is rejected.
func (h *Handler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "playlistId")
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(playlistID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	if !h.ownsPlaylist(w, r, playlistID, userID, "modify") {
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2`,
		playlistID, videoID,
	)
	if err != nil {
		slog.Error("playlist: failed to remove video", "playlist_id", playlistID, "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to remove video from playlist")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "video is not in the playlist")
		return
	}

	httputil.WriteData(w, http.StatusOK, nil, "video removed from playlist")
}

// ownsPlaylist resolves the playlist owner and writes the error
// response itself when the playlist is missing or owned by someone
// else.
func (h *Handler) ownsPlaylist(w http.ResponseWriter, r *http.Request, playlistID, userID, action string) bool {
	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM playlists WHERE id = $1`, playlistID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return false
	}
	if err != nil {
		slog.Error("playlist: failed to fetch playlist", "playlist_id", playlistID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to "+action+" playlist")
		return false
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to "+action+" this playlist")
		return false
	}
	return true
}
