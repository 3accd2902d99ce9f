package redisad

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"review_toolkit/internal/adapters/observability"
)

// Checkpoints stores the last fully fetched page per product so an aborted
// scrape can resume. Keys live under scrape:<product_id>.
type Checkpoints struct{ c *redis.Client }

func New(addr, pass string, db int) *Checkpoints {
	return &Checkpoints{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func key(productID string) string { return "scrape:" + productID }

func (r *Checkpoints) LastPage(ctx context.Context, productID string) (int, bool, error) {
	v, err := r.c.Get(ctx, key(productID)).Result()
	if err == redis.Nil {
		observability.ObserveCheckpoint("redis", "miss")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	page, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	observability.ObserveCheckpoint("redis", "hit")
	return page, true, nil
}

func (r *Checkpoints) SetLastPage(ctx context.Context, productID string, page int) error {
	observability.ObserveCheckpoint("redis", "set")
	return r.c.Set(ctx, key(productID), strconv.Itoa(page), 0).Err()
}

func (r *Checkpoints) Clear(ctx context.Context, productID string) error {
	observability.ObserveCheckpoint("redis", "clear")
	return r.c.Del(ctx, key(productID)).Err()
}
