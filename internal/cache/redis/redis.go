package redis

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/hubgate/hubgate/internal/cache"
)

type Cache struct{ c *rdb.Client }

func New(addr string, db int) cache.Cache {
	return &Cache{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

// NewFromClient wraps an existing client, sharing the connection pool with
// the redis rate limiter.
func NewFromClient(c *rdb.Client) cache.Cache { return &Cache{c: c} }

func (r *Cache) Get(k string) ([]byte, bool) {
	b, err := r.c.Get(context.Background(), k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Set(k string, v []byte, ttl time.Duration) {
	_ = r.c.Set(context.Background(), k, v, ttl).Err()
}

func (r *Cache) Delete(k string) { _ = r.c.Del(context.Background(), k).Err() }

func (r *Cache) GetDel(k string) ([]byte, bool) {
	b, err := r.c.GetDel(context.Background(), k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}
