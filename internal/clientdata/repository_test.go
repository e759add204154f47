package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.InitSchema())

	return db
}

type cachedBars struct {
	Closes []float64 `msgpack:"closes"`
}

func TestStoreAndGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	in := cachedBars{Closes: []float64{100.5, 101.25}}
	require.NoError(t, repo.Store("provider_prices", "ASML:30", in, time.Hour))

	var out cachedBars
	found, err := repo.GetIfFresh("provider_prices", "ASML:30", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in.Closes, out.Closes)
}

func TestGetIfFreshMissesOnExpiredEntry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	require.NoError(t, repo.Store("provider_news", "SAP", cachedBars{}, -time.Minute))

	var out cachedBars
	found, err := repo.GetIfFresh("provider_news", "SAP", &out)
	require.NoError(t, err)
	assert.False(t, found)

	// Stale read still returns the data.
	found, err = repo.Get("provider_news", "SAP", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetMissingKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	var out cachedBars
	found, err := repo.Get("provider_metadata", "nope", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidTableRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	err := repo.Store("signals; DROP TABLE provider_prices", "k", cachedBars{}, time.Hour)
	assert.Error(t, err)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	require.NoError(t, repo.Store("provider_prices", "expired", cachedBars{}, -time.Hour))
	require.NoError(t, repo.Store("provider_prices", "fresh", cachedBars{}, time.Hour))
	require.NoError(t, repo.Store("current_prices", "expired", cachedBars{}, -time.Hour))

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), results["provider_prices"])
	assert.Equal(t, int64(1), results["current_prices"])

	var out cachedBars
	found, err := repo.Get("provider_prices", "fresh", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCleanupJob(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db)

	require.NoError(t, repo.Store("provider_ratings", "expired", cachedBars{}, -time.Hour))

	job := NewCleanupJob(repo, zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
	require.NoError(t, job.Run())

	var out cachedBars
	found, err := repo.Get("provider_ratings", "expired", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
