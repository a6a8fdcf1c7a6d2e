package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yard-anpr-service/internal/domain/anpr"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPSource(srv.URL+"/api/detections", time.Second, zerolog.Nop())
}

func TestHTTPSourceDecodesFeed(t *testing.T) {
	var gotLimit string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"count": 3,
			"data": [
				{"id": 12, "plateNumber": "CA 123 GP", "detectedAt": "2026-03-01T08:00:00Z", "cameraType": "hik", "direction": "ENTRY"},
				{"id": 13, "plateNumber": "ND456", "detectedAt": "2026-03-01T08:01:00Z", "cameraType": "hik", "direction": "exit", "siteId": 2},
				{"id": 14, "plateNumber": "", "detectedAt": "2026-03-01T08:02:00Z", "direction": "exit"}
			]
		}`))
	})

	got, err := src.Latest(context.Background(), 50)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if gotLimit != "50" {
		t.Errorf("expected limit=50 query, got %q", gotLimit)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 valid detections, got %d", len(got))
	}
	if got[0].Direction != anpr.DirectionEntry || got[0].Plate != "CA 123 GP" {
		t.Errorf("unexpected first detection: %+v", got[0])
	}
	if got[0].SiteID != nil {
		t.Errorf("expected nil site for first detection, got %d", *got[0].SiteID)
	}
	if got[1].SiteID == nil || *got[1].SiteID != 2 {
		t.Errorf("expected site 2 for second detection, got %v", got[1].SiteID)
	}
	if got[1].Method != anpr.MethodANPRAuto {
		t.Errorf("expected anpr_auto method, got %q", got[1].Method)
	}
}

func TestHTTPSourceErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{}`, ErrBadStatus},
		{"not json", http.StatusOK, `<html>`, ErrMalformedPayload},
		{"success false", http.StatusOK, `{"success": false, "count": 0, "data": []}`, ErrMalformedPayload},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			})
			_, err := src.Latest(context.Background(), 50)
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("expected %v, got %v", c.wantErr, err)
			}
		})
	}
}

func TestHTTPSourceTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := NewHTTPSource(srv.URL, 50*time.Millisecond, zerolog.Nop())
	start := time.Now()
	if _, err := src.Latest(context.Background(), 10); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch did not abort promptly: %s", elapsed)
	}
}

func TestMockSourceRetention(t *testing.T) {
	m := NewMockSource(3)
	for _, p := range []string{"A1", "A2", "A3", "A4", "A5"} {
		m.Push(p, anpr.DirectionEntry, nil)
	}

	got, _ := m.Latest(context.Background(), 10)
	if len(got) != 3 {
		t.Fatalf("expected retention of 3, got %d", len(got))
	}
	if got[0].ID != 5 || got[2].ID != 3 {
		t.Errorf("expected newest-first ids 5..3, got %d..%d", got[0].ID, got[2].ID)
	}

	got, _ = m.Latest(context.Background(), 2)
	if len(got) != 2 || got[1].ID != 4 {
		t.Errorf("expected limit to keep newest two, got %+v", got)
	}
}

func TestHTTPSourceKeepsRowsBeyondLimit(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		// Oldest first, and the limit query is ignored.
		rows := make([]string, 0, 60)
		for id := 1; id <= 60; id++ {
			rows = append(rows, fmt.Sprintf(
				`{"id": %d, "plateNumber": "P%d", "detectedAt": "2026-03-01T08:00:00Z", "direction": "entry"}`, id, id))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": true, "count": 60, "data": [%s]}`, strings.Join(rows, ","))
	})

	got, err := src.Latest(context.Background(), 50)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if len(got) != 60 {
		t.Fatalf("expected all 60 detections, got %d", len(got))
	}
	var maxID int64
	for _, d := range got {
		if d.ID > maxID {
			maxID = d.ID
		}
	}
	if maxID != 60 {
		t.Errorf("newest detection lost, max id = %d", maxID)
	}
}
