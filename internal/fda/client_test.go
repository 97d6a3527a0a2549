package fda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/sidefx/internal/util"
)

const searchResponse = `{
  "meta": {"last_updated": "2024-05-01", "results": {"skip": 0, "limit": 2, "total": 2}},
  "results": [
    {"id": "a1", "set_id": "s1", "openfda": {"generic_name": ["IBUPROFEN"]},
     "adverse_reactions_table": ["<table><tr><th>Reaction</th><th>%</th></tr><tr><td>Nausea</td><td>3 %</td></tr></table>"]},
    {"id": "a2", "openfda": {}}
  ]
}`

type recordingWaiter struct {
	urls   []string
	delays []time.Duration
}

func (w *recordingWaiter) WaitURL(ctx context.Context, rawURL string, crawlDelay time.Duration) error {
	w.urls = append(w.urls, rawURL)
	w.delays = append(w.delays, crawlDelay)
	return nil
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drug/label.json" {
			t.Errorf("Expected path /drug/label.json, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != `adverse_reactions_table:"nausea"` {
			t.Errorf("Unexpected search param: %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1000" {
			t.Errorf("Expected default limit 1000, got %s", got)
		}
		if got := r.Header.Get("User-Agent"); got != "sidefx-test" {
			t.Errorf("Expected User-Agent sidefx-test, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	waiter := &recordingWaiter{}
	client := NewClient(Config{BaseURL: server.URL, UserAgent: "sidefx-test", Timeout: 5 * time.Second}, WithLimiter(waiter))

	bundle, err := client.Search(context.Background(), "nausea", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(bundle.Results) != 2 {
		t.Fatalf("Expected 2 labels, got %d", len(bundle.Results))
	}
	if bundle.Meta.Results.Total != 2 {
		t.Errorf("Expected total 2, got %d", bundle.Meta.Results.Total)
	}
	if bundle.Results[0].DrugName() != "IBUPROFEN" {
		t.Errorf("Expected IBUPROFEN, got %s", bundle.Results[0].DrugName())
	}

	if len(waiter.urls) != 1 || !strings.HasPrefix(waiter.urls[0], server.URL+"/drug/label.json?") {
		t.Errorf("Expected one limiter wait for the search URL, got %v", waiter.urls)
	}
	if waiter.delays[0] != 0 {
		t.Errorf("Expected no crawl delay without robots checks, got %v", waiter.delays[0])
	}
}

func TestClient_Search_CrawlDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nCrawl-delay: 3\n")
			return
		}
		_, _ = fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	waiter := &recordingWaiter{}
	client := NewClient(Config{BaseURL: server.URL, UserAgent: "sidefx/0.1", RespectRobots: true}, WithLimiter(waiter))

	if _, err := client.Search(context.Background(), "nausea", 1); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(waiter.delays) != 1 || waiter.delays[0] != 3*time.Second {
		t.Errorf("Expected crawl delay 3s passed to the limiter, got %v", waiter.delays)
	}
}

func TestClient_Search_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"error": {"code": "NOT_FOUND", "message": "No matches found!"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	bundle, err := client.Search(context.Background(), "unheard-of", 10)
	if err != nil {
		t.Fatalf("Expected no error for 404, got %v", err)
	}
	if bundle == nil || len(bundle.Results) != 0 {
		t.Errorf("Expected empty bundle, got %+v", bundle)
	}
}

func TestClient_Search_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error": {"code": "OVER_RATE_LIMIT"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"})
	_, err := client.Search(context.Background(), "nausea", 5)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", statusErr.StatusCode)
	}
	if strings.Contains(statusErr.Error(), "secret") {
		t.Errorf("Expected API key to be redacted, got %s", statusErr.Error())
	}
	if !strings.Contains(statusErr.Body, "OVER_RATE_LIMIT") {
		t.Errorf("Expected body in error, got %q", statusErr.Body)
	}
}

func TestClient_Search_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxBytes: 16})
	if _, err := client.Search(context.Background(), "nausea", 1); err == nil {
		t.Error("Expected error for oversized body")
	}
}

func TestClient_Search_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"results": [`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if _, err := client.Search(context.Background(), "nausea", 1); err == nil {
		t.Error("Expected decode error")
	}
}

func TestClient_Search_EmptyName(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Search(context.Background(), "  ", 1); err == nil {
		t.Error("Expected error for empty effect name")
	}
}

func TestClient_Search_RobotsDisallowed(t *testing.T) {
	var searched bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /drug/\n")
			return
		}
		searched = true
		_, _ = fmt.Fprint(w, searchResponse)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, UserAgent: "sidefx/0.1", RespectRobots: true})
	_, err := client.Search(context.Background(), "nausea", 1)
	if !errors.Is(err, util.ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
	if searched {
		t.Error("Expected no search request after robots.txt disallow")
	}
}

func TestClient_SearchURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://api.fda.gov/", Limit: 50, APIKey: "k"})

	got := client.SearchURL("Headache", 0)
	if !strings.HasPrefix(got, "https://api.fda.gov/drug/label.json?") {
		t.Errorf("Unexpected URL: %s", got)
	}
	if !strings.Contains(got, "limit=50") {
		t.Errorf("Expected configured limit, got %s", got)
	}
	if !strings.Contains(got, "api_key=k") {
		t.Errorf("Expected api_key, got %s", got)
	}

	if got := client.SearchURL("Headache", 5000); !strings.Contains(got, "limit=50") {
		t.Errorf("Expected out-of-range limit to fall back, got %s", got)
	}

	if NewClient(Config{Limit: 5000}).limit != MaxLimit {
		t.Error("Expected limit capped at MaxLimit")
	}
}

func TestRedact(t *testing.T) {
	got := Redact("https://api.fda.gov/drug/label.json?api_key=secret&limit=1")
	if strings.Contains(got, "secret") || !strings.Contains(got, "limit=1") {
		t.Errorf("Unexpected redaction: %s", got)
	}

	plain := "https://api.fda.gov/drug/label.json?limit=1"
	if Redact(plain) != plain {
		t.Errorf("Expected URL without key unchanged, got %s", Redact(plain))
	}
}
