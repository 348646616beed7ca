package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, 200, map[string]string{"hello": "world"}, "fetched")

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !env.Success {
		t.Error("expected success true")
	}
	if env.StatusCode != 200 {
		t.Errorf("expected statusCode 200, got %d", env.StatusCode)
	}
	if env.Message != "fetched" {
		t.Errorf("expected message %q, got %q", "fetched", env.Message)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 404, "video not found")

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if env.Success {
		t.Error("expected success false")
	}
	if env.Data != nil {
		t.Errorf("expected null data, got %v", env.Data)
	}
	if env.StatusCode != 404 || env.Message != "video not found" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestWriteData_ErrorStatusIsNotSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, 500, nil, "boom")

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if env.Success {
		t.Error("expected success false for a 500 envelope")
	}
}
