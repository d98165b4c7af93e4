package marketplace

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingSummaryRepo struct {
	*memoryRepo
	reads int
}

func (r *countingSummaryRepo) GetSaleSummary(ctx context.Context, saleID int64) (*SaleSummary, error) {
	r.reads++
	return r.memoryRepo.GetSaleSummary(ctx, saleID)
}

func newCacheFixture(t *testing.T) (*fixture, *countingSummaryRepo, *SummaryCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, ServiceConfig{})
	counting := &countingSummaryRepo{memoryRepo: f.repo}
	cache := &SummaryCache{logger: slog.Default(), client: client, repo: counting}
	f.svc.summaries = cache
	return f, counting, cache
}

func TestSummaryCacheServesFromRedis(t *testing.T) {
	f, counting, cache := newCacheFixture(t)
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)

	first, err := cache.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 300, first.SoldBeforeTransport, 0.0001)
	require.Equal(t, 1, counting.reads)

	second, err := cache.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, counting.reads)
}

func TestSummaryCacheInvalidatedOnWeightChange(t *testing.T) {
	f, _, cache := newCacheFixture(t)
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)

	summary, err := cache.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 300, summary.SoldBeforeTransport, 0.0001)

	_, err = f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-2", 200))
	require.NoError(t, err)

	summary, err = cache.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 500, summary.SoldBeforeTransport, 0.0001)
	require.InDelta(t, 500, summary.RemainingBeforeTransport, 0.0001)
	require.Equal(t, 2, summary.PurchaseCount)
}

func TestSummaryCacheMissingSale(t *testing.T) {
	_, _, cache := newCacheFixture(t)

	_, err := cache.Get(context.Background(), 404)
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestSummaryCacheNilClientFallsThrough(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	counting := &countingSummaryRepo{memoryRepo: f.repo}
	cache := &SummaryCache{logger: slog.Default(), repo: counting}
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	for i := 0; i < 2; i++ {
		summary, err := cache.Get(ctx, sale.ID)
		require.NoError(t, err)
		require.InDelta(t, 1000, summary.RemainingBeforeTransport, 0.0001)
	}
	require.Equal(t, 2, counting.reads)
}
