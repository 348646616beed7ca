package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/vidtube/vidtube/internal/auth"
)

const testJWTSecret = "test-secret-for-dashboard-tests"
const testUserID = "550e8400-e29b-41d4-a716-446655440000"
const testVideoID = "750e8400-e29b-41d4-a716-446655440222"

func authenticatedRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
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

// --- Stats Tests ---

func TestStats_ReturnsAggregates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	mock.ExpectQuery(`total_videos`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{
			"total_videos", "total_views", "total_subscribers", "total_likes",
		}).AddRow(int64(4), int64(1200), int64(35), int64(80)))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Get("/api/v1/dashboard/stats", handler.Stats)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodGet, "/api/v1/dashboard/stats"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data statsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if envelope.Data.TotalViews != 1200 {
		t.Errorf("expected totalViews 1200, got %d", envelope.Data.TotalViews)
	}
	if envelope.Data.TotalLikes != 80 {
		t.Errorf("expected totalLikes 80, got %d", envelope.Data.TotalLikes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestStats_EmptyChannelReportsZeros(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	mock.ExpectQuery(`total_videos`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{
			"total_videos", "total_views", "total_subscribers", "total_likes",
		}).AddRow(int64(0), int64(0), int64(0), int64(0)))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Get("/api/v1/dashboard/stats", handler.Stats)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodGet, "/api/v1/dashboard/stats"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data statsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if envelope.Data != (statsResponse{}) {
		t.Errorf("expected all-zero stats, got %+v", envelope.Data)
	}
}

// --- Videos Tests ---

func TestVideos_IncludesUnpublished(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM videos v`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`FROM videos v`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "thumbnail_url", "duration", "views",
			"likes_count", "is_published", "created_at",
		}).AddRow(
			testVideoID, "Published", "https://cdn/t.jpg", 12.5, int64(100), int64(7), true, time.Now(),
		).AddRow(
			"850e8400-e29b-41d4-a716-446655440333", "Draft", "https://cdn/d.jpg", 3.0, int64(0), int64(0), false, time.Now(),
		))

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Get("/api/v1/dashboard/videos", handler.Videos)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodGet, "/api/v1/dashboard/videos"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Docs []dashboardVideo `json:"docs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(envelope.Data.Docs) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(envelope.Data.Docs))
	}
	if envelope.Data.Docs[1].IsPublished {
		t.Error("expected the second video to be a draft")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestVideos_RequiresAuth(t *testing.T) {
	handler := NewHandler(nil)

	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Get("/api/v1/dashboard/videos", handler.Videos)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/videos", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}
