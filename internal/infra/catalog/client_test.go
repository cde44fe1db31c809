package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-saga-service/internal/domain"
)

func newCatalogServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if r.URL.Path == "/questions/404" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.QuestionInfo{
			ID:           42,
			Difficulty:   "hard",
			QuestionType: "single_choice",
		})
	}))
}

func TestClientCachesLookups(t *testing.T) {
	var calls int64
	server := newCatalogServer(t, &calls)
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := client.Question(ctx, 42)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if info.Difficulty != "hard" {
			t.Fatalf("lookup %d: got %+v", i, info)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

func TestClientRefetchesAfterExpiry(t *testing.T) {
	var calls int64
	server := newCatalogServer(t, &calls)
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	now := time.Now()
	client.clock = func() time.Time { return now }
	ctx := context.Background()

	if _, err := client.Question(ctx, 42); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	now = now.Add(2 * time.Minute) // past ttl plus jitter
	if _, err := client.Question(ctx, 42); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestClientCollapsesConcurrentMisses(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&calls, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":42,"difficulty":"hard"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Question(ctx, 42); err != nil {
				t.Errorf("lookup: %v", err)
			}
		}()
	}
	// Give the goroutines a moment to pile up behind singleflight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected singleflight to collapse to 1 call, got %d", got)
	}
}

func TestClientNotFound(t *testing.T) {
	var calls int64
	server := newCatalogServer(t, &calls)
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	if _, err := client.Question(context.Background(), 404); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestClientHonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"id":42}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Question(ctx, 42); err == nil {
		t.Fatalf("expected timeout error")
	}
}
