package upstream

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache keeps raw gist bodies keyed by gist URL.
type Cache struct {
	store *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

func NewCache(maxSize int64, ttl time.Duration) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        1e5,
		MaxCost:            maxSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, ttl: ttl}, nil
}

func (c *Cache) Get(gistURL string) ([]byte, bool) {
	return c.store.Get(gistURL)
}

func (c *Cache) Set(gistURL string, body []byte) {
	stored := make([]byte, len(body))
	copy(stored, body)

	c.store.SetWithTTL(gistURL, stored, int64(len(stored)), c.ttl)
	c.store.Wait()
}

func (c *Cache) Close() {
	c.store.Close()
}
