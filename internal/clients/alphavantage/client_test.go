package alphavantage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorusfin/pelorus/internal/clientdata"
	"github.com/pelorusfin/pelorus/internal/domain"
)

func setupCacheRepo(t *testing.T) *clientdata.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

// unreachableClient points at a closed port so any cache miss that falls
// through to HTTP fails fast instead of hanging the test.
func unreachableClient(t *testing.T, repo *clientdata.Repository) *Client {
	t.Helper()
	c := NewClient("test-key", repo, zerolog.Nop())
	c.baseURL = "http://127.0.0.1:1/query"
	return c
}

func TestGetNewsCacheHit(t *testing.T) {
	repo := setupCacheRepo(t)
	c := unreachableClient(t, repo)

	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	cached := []domain.NewsArticle{
		{Title: "ASML raises guidance", Source: "reuters", PublishedAt: asOf.AddDate(0, 0, -1)},
	}
	key := fmt.Sprintf("ASML:%s:%d", asOf.Format("20060102"), 20)
	require.NoError(t, repo.Store("provider_news", key, cached, clientdata.TTLNews))

	got, err := c.GetNews(context.Background(), "ASML", 20, asOf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ASML raises guidance", got[0].Title)
}

func TestGetNewsCacheMissReachesProvider(t *testing.T) {
	repo := setupCacheRepo(t)
	c := unreachableClient(t, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.GetNews(ctx, "ASML", 20, time.Now())
	assert.Error(t, err)
}

func TestGetLatestPriceCacheHit(t *testing.T) {
	repo := setupCacheRepo(t)
	c := unreachableClient(t, repo)

	cached := domain.Quote{
		Ticker:   "ASML",
		Price:    712.40,
		Currency: domain.CurrencyUSD,
		AsOf:     time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Source:   "alphavantage",
	}
	require.NoError(t, repo.Store("current_prices", "ASML", cached, clientdata.TTLCurrentPrice))

	got, err := c.GetLatestPrice(context.Background(), "ASML")
	require.NoError(t, err)
	assert.Equal(t, 712.40, got.Price)
	assert.Equal(t, domain.CurrencyUSD, got.Currency)
}

func TestGetLatestPriceExpiredCacheFallsThrough(t *testing.T) {
	repo := setupCacheRepo(t)
	c := unreachableClient(t, repo)

	cached := domain.Quote{Ticker: "ASML", Price: 700}
	require.NoError(t, repo.Store("current_prices", "ASML", cached, -time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.GetLatestPrice(ctx, "ASML")
	assert.Error(t, err)
}
