package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

func authenticatedContext(req *http.Request) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), userIDKey, testUserID))
}

func expectFetchUser(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id, username, email, fullname, avatar_url, cover_image_url, created_at`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "username", "email", "fullname", "avatar_url", "cover_image_url", "created_at",
		}).AddRow(
			testUserID, "ada", "ada@example.com", "Ada Lovelace", "https://cdn/a.png", "", time.Now(),
		))
}

// --- ChangePassword Tests ---

func TestChangePassword_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT password FROM users`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"password"}).AddRow(string(hashed)))
	mock.ExpectExec(`UPDATE users SET password`).
		WithArgs(pgxmock.AnyArg(), testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	body, _ := json.Marshal(map[string]string{
		"oldPassword": "old-password",
		"newPassword": "brand-new-password",
	})
	req := authenticatedContext(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body)))

	rec := httptest.NewRecorder()
	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	hashed, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT password FROM users`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"password"}).AddRow(string(hashed)))

	body, _ := json.Marshal(map[string]string{
		"oldPassword": "not-the-old-password",
		"newPassword": "brand-new-password",
	})
	req := authenticatedContext(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body)))

	rec := httptest.NewRecorder()
	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestChangePassword_ShortNewPassword(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body, _ := json.Marshal(map[string]string{
		"oldPassword": "old-password",
		"newPassword": "short",
	})
	req := authenticatedContext(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body)))

	rec := httptest.NewRecorder()
	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// --- CurrentUser Tests ---

func TestCurrentUser_ReturnsProfile(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	expectFetchUser(mock)

	req := authenticatedContext(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))

	rec := httptest.NewRecorder()
	handler.CurrentUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var user userResponse
	parseEnvelope(t, rec.Body.Bytes(), &user)
	if user.Username != "ada" {
		t.Errorf("expected username %q, got %q", "ada", user.Username)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

// --- UpdateAccount Tests ---

func TestUpdateAccount_Success(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	mock.ExpectExec(`UPDATE users SET fullname`).
		WithArgs("Ada King", "ada@example.com", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectFetchUser(mock)

	body, _ := json.Marshal(map[string]string{
		"fullname": "Ada King",
		"email":    "ada@example.com",
	})
	req := authenticatedContext(httptest.NewRequest(http.MethodPatch, "/api/v1/users/update-account", bytes.NewReader(body)))

	rec := httptest.NewRecorder()
	handler.UpdateAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestUpdateAccount_InvalidEmail(t *testing.T) {
	handler, mock := newTestHandler(t)
	defer mock.Close()

	body, _ := json.Marshal(map[string]string{
		"fullname": "Ada King",
		"email":    "not-an-email",
	})
	req := authenticatedContext(httptest.NewRequest(http.MethodPatch, "/api/v1/users/update-account", bytes.NewReader(body)))

	rec := httptest.NewRecorder()
	handler.UpdateAccount(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

// --- UpdateAvatar Tests ---

func TestUpdateAvatar_ReplacesAndDeletesOldImage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	storage := &mockStorage{}
	handler := NewHandler(mock, storage, testSecret, false)

	mock.ExpectQuery(`SELECT avatar_key FROM users`).
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"avatar_key"}).AddRow("avatars/old.png"))
	mock.ExpectExec(`UPDATE users SET avatar_url`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectFetchUser(mock)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("avatar", "new.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := authenticatedContext(httptest.NewRequest(http.MethodPatch, "/api/v1/users/avatar", buf))
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	handler.UpdateAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(storage.deletedKeys) != 1 || storage.deletedKeys[0] != "avatars/old.png" {
		t.Errorf("expected old avatar key to be deleted, got %v", storage.deletedKeys)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}
