package federation

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/pkg/errors"
)

// ProfileCache keeps proxied single-resource reads around for a short TTL so
// that rendering a page full of remote authors does not hit the peer once per
// item. Only 2xx answers are cached.
type ProfileCache struct {
	marshal *marshaler.Marshaler
	ttl     time.Duration
}

func NewProfileCache(ttl time.Duration) (*ProfileCache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ristretto cache")
	}
	manager := cache.New[any](ristretto_store.NewRistretto(client))
	return &ProfileCache{marshal: marshaler.New(manager), ttl: ttl}, nil
}

func (c *ProfileCache) Get(ctx context.Context, key string) (*RemoteResult, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	v, err := c.marshal.Get(ctx, key, new(RemoteResult))
	if err != nil {
		return nil, false
	}
	res, ok := v.(*RemoteResult)
	return res, ok
}

func (c *ProfileCache) Set(ctx context.Context, key string, res *RemoteResult) {
	if c == nil || c.ttl <= 0 || res == nil {
		return
	}
	_ = c.marshal.Set(ctx, key, res,
		store.WithExpiration(c.ttl),
		store.WithCost(int64(len(res.Body))+1),
	)
}

func (c *ProfileCache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	_ = c.marshal.Delete(ctx, key)
}
