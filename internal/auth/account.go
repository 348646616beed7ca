package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		httputil.WriteError(w, http.StatusBadRequest, "old and new password are required")
		return
	}
	if len(req.NewPassword) < 8 || len(req.NewPassword) > 72 {
		httputil.WriteError(w, http.StatusBadRequest, "password must be between 8 and 72 characters")
		return
	}

	var hashedPassword string
	err := h.db.QueryRow(r.Context(),
		`SELECT password FROM users WHERE id = $1`, userID,
	).Scan(&hashedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("auth: failed to fetch password hash", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.OldPassword)); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid password")
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE users SET password = $1, updated_at = now() WHERE id = $2`,
		string(newHash), userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	httputil.WriteData(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	user, err := h.fetchUser(r, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("auth: failed to fetch user", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch current user")
		return
	}

	httputil.WriteData(w, http.StatusOK, user, "current user fetched successfully")
}

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.TrimSpace(req.Email)
	if req.Fullname == "" || req.Email == "" {
		httputil.WriteError(w, http.StatusBadRequest, "fullname and email are required")
		return
	}
	if msg := validate.Fullname(req.Fullname); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE users SET fullname = $1, email = $2, updated_at = now() WHERE id = $3`,
		req.Fullname, req.Email, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	user, err := h.fetchUser(r, userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch updated account")
		return
	}

	httputil.WriteData(w, http.StatusOK, user, "account details updated successfully")
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars", "avatar_url", "avatar_key", "avatar image updated successfully")
}

func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers", "cover_image_url", "cover_image_key", "cover image updated successfully")
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request, field, prefix, urlCol, keyCol, message string) {
	userID := UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, field+" file is required")
		return
	}
	defer func() { _ = file.Close() }()

	var oldKey string
	lookupErr := h.db.QueryRow(r.Context(),
		`SELECT `+keyCol+` FROM users WHERE id = $1`, userID,
	).Scan(&oldKey)
	if errors.Is(lookupErr, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if lookupErr != nil {
		slog.Error("auth: failed to fetch image key", "error", lookupErr)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update "+field)
		return
	}

	url, key, err := h.uploadImage(r.Context(), prefix, file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to upload "+field)
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE users SET `+urlCol+` = $1, `+keyCol+` = $2, updated_at = now() WHERE id = $3`,
		url, key, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update "+field)
		return
	}

	// The replaced blob is best-effort cleanup; the record already moved on.
	if oldKey != "" {
		if err := h.storage.DeleteObject(r.Context(), oldKey); err != nil {
			slog.Error("auth: failed to delete replaced image", "key", oldKey, "error", err)
		}
	}

	user, err := h.fetchUser(r, userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch updated account")
		return
	}

	httputil.WriteData(w, http.StatusOK, user, message)
}

func (h *Handler) fetchUser(r *http.Request, userID string) (userResponse, error) {
	var user userResponse
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT id, username, email, fullname, avatar_url, cover_image_url, created_at
		 FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Fullname, &user.Avatar, &user.CoverImage, &createdAt)
	if err != nil {
		return userResponse{}, err
	}
	user.CreatedAt = createdAt.Format(time.RFC3339)
	return user, nil
}
