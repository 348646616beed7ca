package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vidtube/vidtube/internal/database"
	"github.com/vidtube/vidtube/internal/httputil"
	"github.com/vidtube/vidtube/internal/query"
	"github.com/vidtube/vidtube/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userIDKey contextKey = "userID"

const maxImageBytes = 10 << 20

// ObjectStorage is the slice of the blob store the identity handlers use
// for avatars and cover images.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

type Handler struct {
	db            database.DBTX
	storage       ObjectStorage
	jwtSecret     string
	secureCookies bool
}

func NewHandler(db database.DBTX, storage ObjectStorage, jwtSecret string, secureCookies bool) *Handler {
	return &Handler{db: db, storage: storage, jwtSecret: jwtSecret, secureCookies: secureCookies}
}

type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Fullname   string `json:"fullname"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
	CreatedAt  string `json:"createdAt"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	fullname := strings.TrimSpace(r.FormValue("fullname"))
	email := strings.TrimSpace(r.FormValue("email"))
	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	password := r.FormValue("password")

	if fullname == "" || email == "" || username == "" || password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "fullname, email, username and password are required")
		return
	}
	if msg := validate.Username(username); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Fullname(fullname); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(password) < 8 {
		httputil.WriteError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if len(password) > 72 {
		httputil.WriteError(w, http.StatusBadRequest, "password must be at most 72 characters")
		return
	}

	avatarFile, avatarHeader, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer func() { _ = avatarFile.Close() }()

	avatarURL, avatarKey, err := h.uploadImage(r.Context(), "avatars", avatarFile, avatarHeader.Filename, avatarHeader.Header.Get("Content-Type"))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to upload avatar")
		return
	}

	var coverURL, coverKey string
	if coverFile, coverHeader, err := r.FormFile("coverImage"); err == nil {
		defer func() { _ = coverFile.Close() }()
		coverURL, coverKey, err = h.uploadImage(r.Context(), "covers", coverFile, coverHeader.Filename, coverHeader.Header.Get("Content-Type"))
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to upload cover image")
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	var userID string
	var createdAt time.Time
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO users (username, email, fullname, password, avatar_url, avatar_key, cover_image_url, cover_image_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		username, email, fullname, string(hashedPassword), avatarURL, avatarKey, coverURL, coverKey,
	).Scan(&userID, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			httputil.WriteError(w, http.StatusConflict, "username or email already registered")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	httputil.WriteData(w, http.StatusCreated, userResponse{
		ID:         userID,
		Username:   username,
		Email:      email,
		Fullname:   fullname,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		CreatedAt:  createdAt.Format(time.RFC3339),
	}, "user registered successfully")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" && req.Email == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username or email is required")
		return
	}
	if req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	var user userResponse
	var hashedPassword string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT id, username, email, fullname, avatar_url, cover_image_url, password, created_at
		 FROM users WHERE username = $1 OR email = $2`,
		strings.ToLower(req.Username), req.Email,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Fullname, &user.Avatar, &user.CoverImage, &hashedPassword, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user does not exist")
		return
	}
	if err != nil {
		slog.Error("auth: failed to fetch user", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	user.CreatedAt = createdAt.Format(time.RFC3339)

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "incorrect password")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	h.setSessionCookies(w, accessToken, refreshToken)
	httputil.WriteData(w, http.StatusOK, sessionResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, "user logged in successfully")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	if _, err := h.db.Exec(r.Context(),
		`UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.clearSessionCookies(w)
	httputil.WriteData(w, http.StatusOK, struct{}{}, "user logged out successfully")
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	incoming := h.incomingRefreshToken(r)
	if incoming == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	claims, err := ValidateToken(h.jwtSecret, incoming)
	if err != nil || claims.TokenType != TokenTypeRefresh {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// Single active session: the presented token must be the stored one.
	var stored *string
	if err := h.db.QueryRow(r.Context(),
		`SELECT refresh_token FROM users WHERE id = $1`, claims.UserID,
	).Scan(&stored); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if stored == nil || *stored != incoming {
		httputil.WriteError(w, http.StatusUnauthorized, "refresh token is expired or used")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(r.Context(), claims.UserID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	h.setSessionCookies(w, accessToken, refreshToken)
	httputil.WriteData(w, http.StatusOK, map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}, "access token refreshed")
}

// Middleware requires an authenticated caller, from the Authorization
// header or the accessToken cookie.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := h.callerUserID(r)
		if userID == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ViewerMiddleware resolves an optional identity for read endpoints. An
// invalid or absent token degrades to guest instead of failing, and
// guest=true forces guest viewing even when a valid token is present.
func (h *Handler) ViewerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("guest") == "true" {
			next.ServeHTTP(w, r)
			return
		}
		if userID := h.callerUserID(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) callerUserID(r *http.Request) string {
	tokenStr := ""
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenStr, _ = strings.CutPrefix(authHeader, "Bearer ")
	} else if cookie, err := r.Cookie("accessToken"); err == nil {
		tokenStr = cookie.Value
	}
	if tokenStr == "" {
		return ""
	}

	claims, err := ValidateToken(h.jwtSecret, tokenStr)
	if err != nil || claims.TokenType != TokenTypeAccess {
		return ""
	}
	return claims.UserID
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// ViewerFromContext maps the optional caller identity onto the query
// layer's viewer, guest when unauthenticated.
func ViewerFromContext(ctx context.Context) query.Viewer {
	if userID := UserIDFromContext(ctx); userID != "" {
		return query.NewViewer(userID)
	}
	return query.Guest()
}

func (h *Handler) incomingRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie("refreshToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *Handler) issueTokens(ctx context.Context, userID string) (accessToken, refreshToken string, err error) {
	accessToken, err = GenerateAccessToken(h.jwtSecret, userID)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = GenerateRefreshToken(h.jwtSecret, userID)
	if err != nil {
		return "", "", err
	}

	// Last login wins: the previous session's refresh token is overwritten.
	if _, err := h.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`,
		refreshToken, userID,
	); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(AccessTokenDuration / time.Second),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(RefreshTokenDuration / time.Second),
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})
	}
}

func (h *Handler) uploadImage(ctx context.Context, prefix string, body io.Reader, filename, contentType string) (url, key string, err error) {
	key = prefix + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err = h.storage.Upload(ctx, key, body, contentType)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}
