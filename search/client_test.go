package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel)
	return logger
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header %q", got)
		}
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "warehouse sizing" || req.Limit != 2 {
			t.Errorf("request %+v", req)
		}
		json.NewEncoder(w).Encode(searchResponse{Results: []Fragment{
			{Content: "Warehouses come in t-shirt sizes.", Source: "docs/wh.md", Score: 0.92},
			{Content: "Resize with ALTER WAREHOUSE.", Source: "docs/alter.md", Score: 0.81},
		}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", testLogger())
	fragments, err := c.Search(context.Background(), "warehouse sizing", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(fragments))
	}
	if fragments[0].Score < fragments[1].Score {
		t.Error("fragments not ordered by relevance")
	}
}

func TestSearchZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Results: []Fragment{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", testLogger())
	fragments, err := c.Search(context.Background(), "nothing matches this", 5)
	if err != nil {
		t.Fatalf("zero results must not be an error: %v", err)
	}
	if len(fragments) != 0 {
		t.Errorf("got %d fragments, want 0", len(fragments))
	}
}

func TestSearchRetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{Results: []Fragment{{Content: "ok"}}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "", testLogger())
	fragments, err := c.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("search should succeed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("made %d attempts, want 3", attempts)
	}
	if len(fragments) != 1 {
		t.Errorf("got %d fragments, want 1", len(fragments))
	}
}

func TestSearchDoesNotRetryBadRequest(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", testLogger())
	if _, err := c.Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error from 400 response")
	}
	if attempts != 1 {
		t.Errorf("made %d attempts, want 1 (no retry on 4xx)", attempts)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "", testLogger())
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}

	server.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Error("ping against closed server should fail")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {2, 2}, {10, 10}, {50, 10},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
