package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const summaryTTL = 5 * time.Minute

// SummaryCache serves sale weight snapshots from redis. Concurrent cache
// misses for the same sale collapse into a single storage read.
type SummaryCache struct {
	logger *slog.Logger
	client *redis.Client
	repo   interface {
		GetSaleSummary(ctx context.Context, saleID int64) (*SaleSummary, error)
	}
	group singleflight.Group
}

func NewSummaryCache(logger *slog.Logger, client *redis.Client, repo RepositoryPort) *SummaryCache {
	return &SummaryCache{logger: logger, client: client, repo: repo}
}

func summaryKey(saleID int64) string {
	return fmt.Sprintf("marketplace:sale_summary:%d", saleID)
}

// Get returns the cached summary, loading and caching it on a miss.
func (c *SummaryCache) Get(ctx context.Context, saleID int64) (*SaleSummary, error) {
	key := summaryKey(saleID)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var summary SaleSummary
			if err := json.Unmarshal(raw, &summary); err == nil {
				return &summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("summary cache read failed", slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		summary, err := c.repo.GetSaleSummary(ctx, saleID)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			if raw, err := json.Marshal(summary); err == nil {
				if err := c.client.Set(ctx, key, raw, summaryTTL).Err(); err != nil {
					c.logger.Warn("summary cache write failed", slog.Any("error", err))
				}
			}
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SaleSummary), nil
}

// Invalidate drops the cached snapshot after a weight change.
func (c *SummaryCache) Invalidate(ctx context.Context, saleID int64) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, summaryKey(saleID)).Err(); err != nil {
		c.logger.Warn("summary cache invalidate failed",
			slog.Int64("sale_id", saleID), slog.Any("error", err))
	}
}
