package aliexpress

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"review_toolkit/internal/adapters/observability"
	"review_toolkit/internal/domain"
)

const maxAttempts = 4

// Client paginates the feedback search endpoint until it returns an empty
// page. Pages may be fetched in concurrent windows; results are reassembled
// by page index so output order stays deterministic.
type Client struct {
	base    string
	hc      *http.Client
	rl      *rate.Limiter
	workers int
}

func New(base string, rps, workers int) *Client {
	if rps <= 0 {
		rps = 5
	}
	if workers <= 0 {
		workers = 1
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		hc:      &http.Client{Timeout: 20 * time.Second},
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
		workers: workers,
	}
}

type feedbackPage struct {
	Data struct {
		EvaViewList []map[string]any `json:"evaViewList"`
	} `json:"data"`
}

type pageResult struct {
	items []map[string]any
	err   error
}

// FetchReviews returns raw review payloads for one product plus the last
// fully fetched page index. Pagination starts at opts.StartPage and stops at
// the first empty page; pages past the first empty one are discarded even if
// a concurrent window already fetched them. Exhausted retries surface as a
// SourceUnavailableError carrying the last page reached together with every
// record fetched up to it, so callers can persist the partial batch.
func (c *Client) FetchReviews(ctx context.Context, productID string, opts domain.FetchOptions) ([]map[string]any, int, error) {
	start := opts.StartPage
	if start <= 0 {
		start = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 100
	}

	var out []map[string]any
	last := start - 1

	for page := start; ; page += c.workers {
		window, err := c.fetchWindow(ctx, productID, page, size)
		if err != nil {
			return nil, last, err
		}

		done := false
		for i, res := range window {
			if res.err != nil {
				return out, last, &domain.SourceUnavailableError{LastPage: last, Err: res.err}
			}
			if len(res.items) == 0 {
				done = true
				break
			}
			out = append(out, res.items...)
			last = page + i
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out[:opts.Limit], last, nil
			}
		}
		if done {
			return out, last, nil
		}
	}
}

// fetchWindow fetches pages [first, first+workers) concurrently. Each slot is
// filled in index order; a slot's error stops consumption at that index.
func (c *Client) fetchWindow(ctx context.Context, productID string, first, size int) ([]pageResult, error) {
	results := make([]pageResult, c.workers)
	sem := semaphore.NewWeighted(int64(c.workers))
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			defer sem.Release(1)
			items, err := c.fetchPage(ctx, productID, first+slot, size)
			results[slot] = pageResult{items: items, err: err}
		}(i)
	}
	wg.Wait()
	return results, nil
}

// fetchPage performs one GET with client-side rate limiting and bounded
// retries. Retries on 429 and transient 5xx, honoring Retry-After; any other
// non-2xx status is terminal.
func (c *Client) fetchPage(ctx context.Context, productID string, page, size int) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/searchEvaluation.do?productId=%s&page=%d&pageSize=%d&filter=all",
		c.base, productID, page, size)

	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "review-toolkit/1.0")

		started := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.ObserveSource("aliexpress", 0, time.Since(started))
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr
		}
		observability.ObserveSource("aliexpress", resp.StatusCode, time.Since(started))

		switch resp.StatusCode {
		case http.StatusOK:
			var body feedbackPage
			err := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("page %d: decode: %w", page, err)
			}
			return body.Data.EvaViewList, nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("page %d: remote %d", page, resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("page %d: bad status %d: %s", page, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return nil, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// Base doubles each attempt (200ms, 400ms, 800ms...), with up to +50% random
// jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
