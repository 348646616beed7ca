package query

import (
	"net/http/httptest"
	"testing"
)

var videoSortFields = map[string]string{
	"createdAt": "v.created_at",
	"title":     "v.title",
	"duration":  "v.duration",
	"views":     "v.views",
}

func TestParseSort_Default(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/videos", nil)
	s := ParseSort(r, videoSortFields, "v.created_at", "v.id")
	if s.Column != "v.created_at" || !s.Descending {
		t.Errorf("expected default createdAt desc, got %+v", s)
	}
	if got := s.Clause(); got != "ORDER BY v.created_at DESC, v.id DESC" {
		t.Errorf("unexpected clause %q", got)
	}
}

func TestParseSort_WhitelistRejectsUnknownField(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/videos?sortBy=password&sortType=asc", nil)
	s := ParseSort(r, videoSortFields, "v.created_at", "v.id")
	if s.Column != "v.created_at" {
		t.Errorf("unknown sortBy must fall back to the default column, got %q", s.Column)
	}
}

func TestParseSort_Directions(t *testing.T) {
	cases := map[string]bool{
		"asc":     false,
		"desc":    true,
		"":        true,
		"ASC":     true, // only exact "asc" is ascending
		"upwards": true,
	}
	for sortType, wantDesc := range cases {
		r := httptest.NewRequest("GET", "/api/v1/videos?sortBy=views&sortType="+sortType, nil)
		s := ParseSort(r, videoSortFields, "v.created_at", "v.id")
		if s.Column != "v.views" {
			t.Errorf("sortType %q: expected views column, got %q", sortType, s.Column)
		}
		if s.Descending != wantDesc {
			t.Errorf("sortType %q: descending = %v, want %v", sortType, s.Descending, wantDesc)
		}
	}
}

func TestSortClause_TieBreakNotDuplicated(t *testing.T) {
	s := Sort{Column: "v.id", TieBreak: "v.id", Descending: false}
	if got := s.Clause(); got != "ORDER BY v.id ASC" {
		t.Errorf("tie-break equal to the sort column must not repeat: %q", got)
	}
}
