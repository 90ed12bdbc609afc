package study

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cora-labs/lendsim/pkg/simulation"
	"github.com/cora-labs/lendsim/pkg/types"
)

func baseConfig() *Config {
	return &Config{
		Name:             "test",
		HorizonDays:      10,
		InitialLiquidity: 10000,
		MaxLTV:           0.8,
		MaxUtilization:   0.9,
		DemandRatio:      0.5,
		VolatilityFactor: 1,
		ArrivalDist:      "uniform",
		DurationDist:     "uniform",
		SizeMin:          10,
		SizeMax:          1000,
		LTVMean:          0.5,
		LTVStd:           0.2,
		Model:            "trad",
		Seeds:            2,
		BaseSeed:         1,
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	a, err := CacheKey(baseConfig(), 7, "digest")
	require.NoError(t, err)
	b, err := CacheKey(baseConfig(), 7, "digest")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
}

func TestCacheKeySensitivity(t *testing.T) {
	base, err := CacheKey(baseConfig(), 7, "digest")
	require.NoError(t, err)

	otherSeed, err := CacheKey(baseConfig(), 8, "digest")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSeed)

	otherHistory, err := CacheKey(baseConfig(), 7, "other")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherHistory)

	cfg := baseConfig()
	cfg.MaxLTV = 0.7
	otherConfig, err := CacheKey(cfg, 7, "digest")
	require.NoError(t, err)
	assert.NotEqual(t, base, otherConfig)
}

func TestHistoryDigest(t *testing.T) {
	series := types.PriceSeries{{Time: 0, Price: 100}, {Time: 3600, Price: 101}}
	assert.Equal(t, HistoryDigest(series), HistoryDigest(series))
	assert.NotEqual(t,
		HistoryDigest(series),
		HistoryDigest(types.PriceSeries{{Time: 0, Price: 100}, {Time: 3600, Price: 102}}))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	record := NewRecord("k1", simulation.Result{Seed: 7, PnL: 12.5})
	require.NoError(t, store.Set(ctx, record))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Result.PnL)

	// write-if-absent: a second write never overwrites
	require.NoError(t, store.Set(ctx, NewRecord("k1", simulation.Result{Seed: 7, PnL: 99})))
	got, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Result.PnL)
}

func TestRecordTampering(t *testing.T) {
	record := NewRecord("k1", simulation.Result{Seed: 7, PnL: 12.5})
	require.NoError(t, record.Verify())

	record.Result.PnL = 999
	assert.ErrorIs(t, record.Verify(), ErrCacheTampered)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	record := NewRecord("k1", simulation.Result{Seed: 3, PnL: -4})
	require.NoError(t, store.Set(ctx, record))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, -4.0, got.Result.PnL)
	assert.Equal(t, record.Checksum, got.Checksum)
}

func TestFileStoreCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "k1.json"), []byte("{not json"), 0o644))
	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFileStoreTamperedEntryIsLoud(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	record := NewRecord("k1", simulation.Result{Seed: 3, PnL: 10})
	require.NoError(t, store.Set(ctx, record))

	// flip the stored pnl without fixing the checksum
	path := filepath.Join(dir, "k1.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"pnl": 10`)
	tampered := strings.Replace(string(raw), `"pnl": 10`, `"pnl": 11`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheTampered)
}

func TestFileStoreMislabeledEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	record := NewRecord("other", simulation.Result{Seed: 3})
	require.NoError(t, store.Set(ctx, record))

	// the entry is valid but filed under the wrong key
	require.NoError(t, os.Rename(filepath.Join(dir, "other.json"), filepath.Join(dir, "k1.json")))
	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
