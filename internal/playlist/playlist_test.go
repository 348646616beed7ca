package playlist

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/vidtube/vidtube/internal/auth"
)

const testJWTSecret = "test-secret-for-playlist-tests"
const testUserID = "550e8400-e29b-41d4-a716-446655440000"
const testOtherUserID = "650e8400-e29b-41d4-a716-446655440111"
const testPlaylistID = "d50e8400-e29b-41d4-a716-446655440888"
const testVideoID = "750e8400-e29b-41d4-a716-446655440222"

func authenticatedRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := auth.GenerateAccessToken(testJWTSecret, testUserID)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func newAuthMiddleware() func(http.Handler) http.Handler {
	return auth.NewHandler(nil, nil, testJWTSecret, false).Middleware
}

func expectOwnerLookup(mock pgxmock.PgxPoolIface, ownerID string) {
	mock.ExpectQuery(`SELECT owner_id FROM playlists`).
		WithArgs(testPlaylistID).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(ownerID))
}

// --- Create Tests ---

func TestCreate_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO playlists`).
		WithArgs(testUserID, "Favorites", "videos I like").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testPlaylistID, now, now))

	body, _ := json.Marshal(playlistRequest{Name: "Favorites", Description: "videos I like"})

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Post("/api/v1/playlists", handler.Create)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/v1/playlists", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestCreate_MissingDescription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	body, _ := json.Marshal(playlistRequest{Name: "Favorites"})

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Post("/api/v1/playlists", handler.Create)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/v1/playlists", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// --- Get Tests ---

func TestGet_ReturnsPlaylistWithVideos(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	now := time.Now()
	mock.ExpectQuery(`FROM playlists p`).
		WithArgs(testPlaylistID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "owner_id", "created_at", "updated_at",
			"total_videos", "total_views",
		}).AddRow(
			testPlaylistID, "Favorites", "videos I like", testUserID, now, now,
			int64(1), int64(42),
		))
	mock.ExpectQuery(`FROM playlist_videos pv`).
		WithArgs(testPlaylistID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "thumbnail_url", "duration", "views", "created_at",
			"owner_id", "username", "avatar_url",
		}).AddRow(
			testVideoID, "First", "https://cdn/t.jpg", 12.5, int64(42), now,
			testOtherUserID, "creator", "https://cdn/a.png",
		))

	r := chi.NewRouter()
	r.Get("/api/v1/playlists/{playlistId}", handler.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playlists/"+testPlaylistID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			TotalVideos int64           `json:"totalVideos"`
			TotalViews  int64           `json:"totalViews"`
			Videos      []playlistVideo `json:"videos"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if envelope.Data.TotalVideos != 1 || envelope.Data.TotalViews != 42 {
		t.Errorf("unexpected aggregates: %+v", envelope.Data)
	}
	if len(envelope.Data.Videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(envelope.Data.Videos))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	mock.ExpectQuery(`FROM playlists p`).
		WithArgs(testPlaylistID).
		WillReturnError(pgx.ErrNoRows)

	r := chi.NewRouter()
	r.Get("/api/v1/playlists/{playlistId}", handler.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/playlists/"+testPlaylistID, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

// --- Update Tests ---

func TestUpdate_NameOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	now := time.Now()
	expectOwnerLookup(mock, testUserID)
	mock.ExpectQuery(`UPDATE playlists`).
		WithArgs("Renamed", "", testPlaylistID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "owner_id", "created_at", "updated_at",
		}).AddRow(
			testPlaylistID, "Renamed", "videos I like", testUserID, now, now,
		))

	body, _ := json.Marshal(playlistRequest{Name: "Renamed"})

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/{playlistId}", handler.Update)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/v1/playlists/"+testPlaylistID, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestUpdate_NotOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testOtherUserID)

	body, _ := json.Marshal(playlistRequest{Name: "Renamed"})

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/{playlistId}", handler.Update)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/v1/playlists/"+testPlaylistID, body))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestUpdate_NothingToChange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	body, _ := json.Marshal(playlistRequest{})

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/{playlistId}", handler.Update)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch, "/api/v1/playlists/"+testPlaylistID, body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// --- AddVideo Tests ---

func TestAddVideo_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM videos`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM playlist_videos`).
		WithArgs(testPlaylistID, testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO playlist_videos`).
		WithArgs(testPlaylistID, testVideoID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/add/{videoId}/{playlistId}", handler.AddVideo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/v1/playlists/add/"+testVideoID+"/"+testPlaylistID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestAddVideo_AlreadyInPlaylist(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM videos`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM playlist_videos`).
		WithArgs(testPlaylistID, testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/add/{videoId}/{playlistId}", handler.AddVideo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/v1/playlists/add/"+testVideoID+"/"+testPlaylistID, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestAddVideo_UnknownVideo(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM videos`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/add/{videoId}/{playlistId}", handler.AddVideo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/v1/playlists/add/"+testVideoID+"/"+testPlaylistID, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

// --- RemoveVideo Tests ---

func TestRemoveVideo_NotInPlaylist(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectExec(`DELETE FROM playlist_videos`).
		WithArgs(testPlaylistID, testVideoID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/remove/{videoId}/{playlistId}", handler.RemoveVideo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/v1/playlists/remove/"+testVideoID+"/"+testPlaylistID, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestRemoveVideo_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectExec(`DELETE FROM playlist_videos`).
		WithArgs(testPlaylistID, testVideoID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Patch("/api/v1/playlists/remove/{videoId}/{playlistId}", handler.RemoveVideo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPatch,
		"/api/v1/playlists/remove/"+testVideoID+"/"+testPlaylistID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

// --- Delete Tests ---

func TestDelete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	mock.ExpectQuery(`SELECT owner_id FROM playlists`).
		WithArgs(testPlaylistID).
		WillReturnError(pgx.ErrNoRows)

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Delete("/api/v1/playlists/{playlistId}", handler.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete, "/api/v1/playlists/"+testPlaylistID, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestDelete_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	expectOwnerLookup(mock, testUserID)
	mock.ExpectExec(`DELETE FROM playlists`).
		WithArgs(testPlaylistID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Delete("/api/v1/playlists/{playlistId}", handler.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodDelete, "/api/v1/playlists/"+testPlaylistID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}
