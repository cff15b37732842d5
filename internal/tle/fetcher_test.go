package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// TestFetcherBodyLimit verifies that responses exceeding the 50 MB limit
// return an error instead of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 52; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, testLogger, WithRetry(1, 0))
	_, err := fetcher.Fetch(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

func TestFetchByIntDesQuery(t *testing.T) {
	body := issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(body))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL+"/NORAD/elements/gp.php", testLogger)
	data, err := fetcher.FetchByIntDes(context.Background(), " 1998-067A ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != body {
		t.Errorf("body mismatch: got %d bytes, want %d", len(data), len(body))
	}
	if gotQuery != "FORMAT=TLE&INTDES=1998-067A" {
		t.Errorf("query = %q", gotQuery)
	}

	entries, err := ParseSets(strings.NewReader(string(data)), testLogger)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(entries) != 1 || entries[0].Elements.CatalogNumber != 25544 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFetchByIntDesEmpty(t *testing.T) {
	fetcher := NewFetcher("http://127.0.0.1:0", testLogger)
	if _, err := fetcher.FetchByIntDes(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty designator")
	}
}

// TestFetcherRetries verifies that transient failures are retried.
func TestFetcherRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, testLogger, WithRetry(3, time.Millisecond))
	data, err := fetcher.FetchByCatalog(context.Background(), 25544)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("body = %q, want ok", data)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

// TestFetcherHTTPError verifies error handling once every attempt fails.
func TestFetcherHTTPError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL, testLogger, WithRetry(2, 0))
	_, err := fetcher.Fetch(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetcherCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewFetcher(server.URL, testLogger, WithRetry(5, time.Hour))
	if _, err := fetcher.Fetch(ctx, nil); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
