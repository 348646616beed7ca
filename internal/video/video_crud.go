package video

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/guard"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/validate"
)

type videoResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Publish uploads a new video with its thumbnail and creates the record.
// The duration is probed from the uploaded file before it leaves disk.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title and description are required")
		return
	}
	if msg := validate.Title(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	videoFile, videoHeader, err := r.FormFile("videoFile")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "thumbnail is required")
		return
	}
	defer thumbFile.Close()

	tmpPath, err := saveToTemp(videoFile)
	if err != nil {
		slog.Error("video: failed to stage upload", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to upload video")
		return
	}
	defer func() { _ = os.Remove(tmpPath) }()

	duration := probeDuration(tmpPath)

	videoKey := "videos/" + uuid.NewString() + filepath.Ext(videoHeader.Filename)
	videoURL, err := h.storage.UploadFile(r.Context(), videoKey, tmpPath, contentType(videoHeader, "video/mp4"))
	if err != nil {
		slog.Error("video: failed to upload video file", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to upload video")
		return
	}

	thumbKey := "thumbnails/" + uuid.NewString() + filepath.Ext(thumbHeader.Filename)
	thumbURL, err := h.storage.Upload(r.Context(), thumbKey, thumbFile, contentType(thumbHeader, "image/jpeg"))
	if err != nil {
		slog.Error("video: failed to upload thumbnail", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to upload thumbnail")
		return
	}

	var resp videoResponse
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (owner_id, title, description, video_url, video_key, thumbnail_url, thumbnail_key, duration)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, title, description, video_url, thumbnail_url, duration, views, is_published, created_at`,
		userID, title, description, videoURL, videoKey, thumbURL, thumbKey, duration,
	).Scan(
		&resp.ID, &resp.Title, &resp.Description, &resp.VideoFile, &resp.Thumbnail,
		&resp.Duration, &resp.Views, &resp.IsPublished, &resp.CreatedAt,
	)
	if err != nil {
		slog.Error("video: failed to create video", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to publish video")
		return
	}

	httputil.WriteData(w, http.StatusCreated, resp, "video published successfully")
}

// Update changes a video's title and description, and optionally
// replaces its thumbnail. Only the owner may update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var ownerID, oldThumbKey string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id, thumbnail_key FROM videos WHERE id = $1`, videoID,
	).Scan(&ownerID, &oldThumbKey)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		slog.Error("video: failed to fetch video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to update this video")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title and description are required")
		return
	}
	if msg := validate.Title(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	thumbURL, thumbKey := "", ""
	if thumbFile, thumbHeader, err := r.FormFile("thumbnail"); err == nil {
		defer thumbFile.Close()
		thumbKey = "thumbnails/" + uuid.NewString() + filepath.Ext(thumbHeader.Filename)
		thumbURL, err = h.storage.Upload(r.Context(), thumbKey, thumbFile, contentType(thumbHeader, "image/jpeg"))
		if err != nil {
			slog.Error("video: failed to upload thumbnail", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to upload thumbnail")
			return
		}
	}

	var resp videoResponse
	if thumbKey != "" {
		err = h.db.QueryRow(r.Context(),
			`UPDATE videos
			 SET title = $1, description = $2, thumbnail_url = $3, thumbnail_key = $4, updated_at = now()
			 WHERE id = $5
			 RETURNING id, title, description, video_url, thumbnail_url, duration, views, is_published, created_at`,
			title, description, thumbURL, thumbKey, videoID,
		).Scan(
			&resp.ID, &resp.Title, &resp.Description, &resp.VideoFile, &resp.Thumbnail,
			&resp.Duration, &resp.Views, &resp.IsPublished, &resp.CreatedAt,
		)
	} else {
		err = h.db.QueryRow(r.Context(),
			`UPDATE videos
			 SET title = $1, description = $2, updated_at = now()
			 WHERE id = $3
			 RETURNING id, title, description, video_url, thumbnail_url, duration, views, is_published, created_at`,
			title, description, videoID,
		).Scan(
			&resp.ID, &resp.Title, &resp.Description, &resp.VideoFile, &resp.Thumbnail,
			&resp.Duration, &resp.Views, &resp.IsPublished, &resp.CreatedAt,
		)
	}
	if err != nil {
		slog.Error("video: failed to update video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
		return
	}

	if thumbKey != "" && oldThumbKey != "" {
		if err := h.storage.DeleteObject(r.Context(), oldThumbKey); err != nil {
			slog.Error("video: failed to delete old thumbnail", "key", oldThumbKey, "error", err)
		}
	}

	httputil.WriteData(w, http.StatusOK, resp, "video updated successfully")
}

// Delete removes a video and its stored objects. Only the owner may
// delete. Blob deletion failures are logged, not surfaced.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	var ownerID, videoKey, thumbKey string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id, video_key, thumbnail_key FROM videos WHERE id = $1`, videoID,
	).Scan(&ownerID, &videoKey, &thumbKey)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		slog.Error("video: failed to fetch video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to delete this video")
		return
	}

	if _, err := h.db.Exec(r.Context(), `DELETE FROM videos WHERE id = $1`, videoID); err != nil {
		slog.Error("video: failed to delete video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}

	for _, key := range []string{videoKey, thumbKey} {
		if key == "" {
			continue
		}
		if err := h.storage.DeleteObject(r.Context(), key); err != nil {
			slog.Error("video: failed to delete stored object", "key", key, "error", err)
		}
	}

	httputil.WriteData(w, http.StatusOK, nil, "video deleted successfully")
}

// TogglePublish flips a video's published flag. Only the owner may
// toggle.
func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	var ownerID string
	err := h.db.QueryRow(r.Context(),
		`SELECT owner_id FROM videos WHERE id = $1`, videoID,
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		slog.Error("video: failed to fetch video", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle publish on video")
		return
	}
	if !guard.Owns(userID, ownerID) {
		httputil.WriteError(w, http.StatusForbidden, "you are not allowed to modify this video")
		return
	}

	var isPublished bool
	err = h.db.QueryRow(r.Context(),
		`UPDATE videos SET is_published = NOT is_published, updated_at = now()
		 WHERE id = $1
		 RETURNING is_published`,
		videoID,
	).Scan(&isPublished)
	if err != nil {
		slog.Error("video: failed to toggle publish state", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to toggle publish state")
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]bool{"isPublished": isPublished}, "publish state toggled successfully")
}

func saveToTemp(file multipart.File) (string, error) {
	tmpFile, err := os.CreateTemp("", "vidtube-upload-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.ReadFrom(file); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

func contentType(header *multipart.FileHeader, fallback string) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}
