package aliexpress_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"review_toolkit/internal/adapters/aliexpress"
	"review_toolkit/internal/domain"
)

func pageHandler(t *testing.T, pages map[int][]map[string]any, hits *int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		body := map[string]any{"data": map[string]any{"evaViewList": pages[page]}}
		w.WriteHeader(200)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func fakeReviews(page, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			"evaluationId": fmt.Sprintf("p%d-%d", page, i),
			"buyerName":    "Ana",
			"buyerEval":    80.0,
		})
	}
	return out
}

func TestFetchReviews_StopsAtEmptyPage(t *testing.T) {
	var hits int32
	pages := map[int][]map[string]any{
		1: fakeReviews(1, 20),
		2: fakeReviews(2, 20),
		3: {},
	}
	ts := httptest.NewServer(pageHandler(t, pages, &hits))
	defer ts.Close()

	cl := aliexpress.New(ts.URL, 100, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, last, err := cl.FetchReviews(ctx, "1005007002128983", domain.FetchOptions{PageSize: 20})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 40 {
		t.Fatalf("expected 40 records, got %d", len(got))
	}
	if last != 2 {
		t.Fatalf("expected last page 2, got %d", last)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("expected exactly 3 page fetches, got %d", n)
	}
}

func TestFetchReviews_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			var items []map[string]any
			if page == 1 {
				items = fakeReviews(1, 2)
			}
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"evaViewList": items}})
		}
	}))
	defer ts.Close()

	cl := aliexpress.New(ts.URL, 100, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, _, err := cl.FetchReviews(ctx, "42", domain.FetchOptions{PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected retries before success, got %d calls", hits)
	}
}

func TestFetchReviews_SourceUnavailableCarriesLastPage(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 1 {
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"evaViewList": fakeReviews(1, 5)}})
			return
		}
		w.WriteHeader(403) // terminal, no retry
	}))
	defer ts.Close()

	cl := aliexpress.New(ts.URL, 100, 1)
	got, last, err := cl.FetchReviews(context.Background(), "42", domain.FetchOptions{PageSize: 5})

	var su *domain.SourceUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if su.LastPage != 1 || last != 1 {
		t.Fatalf("expected last page 1, got err=%d ret=%d", su.LastPage, last)
	}
	if len(got) != 5 {
		t.Fatalf("expected the 5 records fetched before the failure, got %d", len(got))
	}
}

func TestFetchReviews_LimitTruncates(t *testing.T) {
	var hits int32
	pages := map[int][]map[string]any{1: fakeReviews(1, 20), 2: fakeReviews(2, 20)}
	ts := httptest.NewServer(pageHandler(t, pages, &hits))
	defer ts.Close()

	cl := aliexpress.New(ts.URL, 100, 1)
	got, _, err := cl.FetchReviews(context.Background(), "42", domain.FetchOptions{PageSize: 20, Limit: 25})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 records, got %d", len(got))
	}
}
