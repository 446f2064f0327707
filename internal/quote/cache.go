package quote

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tradesim/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const cacheTTL = 5 * time.Minute

// Cache is a read-through redis cache in front of another Provider.
// Redis failures fall through to the underlying provider.
type Cache struct {
	next Provider
	rdb  *redis.Client
	log  *logrus.Logger
}

func NewCache(next Provider, rdb *redis.Client, log *logrus.Logger) *Cache {
	return &Cache{next: next, rdb: rdb, log: log}
}

func (c *Cache) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := "quote:" + symbol

	if raw, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var q models.Quote
		if err := json.Unmarshal([]byte(raw), &q); err == nil {
			return q, nil
		}
	} else if err != redis.Nil {
		c.log.Warnf("quote cache read for %s failed: %v", symbol, err)
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}

	if raw, err := json.Marshal(q); err == nil {
		if err := c.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			c.log.Warnf("quote cache write for %s failed: %v", symbol, err)
		}
	}
	return q, nil
}
