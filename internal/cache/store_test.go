package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "cache_snapshot.json"), zerolog.Nop())
}

func TestSetThenGet(t *testing.T) {
	store := newTestStore(t)

	store.Set("quote:PTT.BK", map[string]interface{}{"price": 35.5})

	var out map[string]float64
	require.True(t, store.GetJSON("quote:PTT.BK", &out))
	assert.Equal(t, 35.5, out["price"])
}

func TestGetUnknownKey(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Get("quote:MISSING")
	assert.False(t, ok)
}

func TestExpiredEntryIsAbsentAndRemoved(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set("quote:PTT.BK", "stale")

	// Advance past the long TTL.
	store.now = func() time.Time { return now.Add(TTLMarketData + time.Second) }

	_, ok := store.Get("quote:PTT.BK")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "expired entry should be removed on read")

	// A subsequent set for the same key succeeds.
	store.Set("quote:PTT.BK", "fresh")
	var v string
	require.True(t, store.GetJSON("quote:PTT.BK", &v))
	assert.Equal(t, "fresh", v)
}

func TestFxKeysUseShortTTL(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set("fx:USD:THB", 35.0)
	store.Set("quote:PTT.BK", 36.0)

	// Past the FX TTL but well inside the market-data TTL.
	store.now = func() time.Time { return now.Add(TTLExchangeRate + time.Second) }

	_, fxOK := store.Get("fx:USD:THB")
	assert.False(t, fxOK, "fx entry should expire on the short TTL")

	_, quoteOK := store.Get("quote:PTT.BK")
	assert.True(t, quoteOK, "quote entry should still be fresh")
}

func TestTTLFor(t *testing.T) {
	assert.Equal(t, TTLExchangeRate, TTLFor("fx:USD:THB"))
	assert.Equal(t, TTLExchangeRate, TTLFor("quote:USDTHB=X"))
	assert.Equal(t, TTLMarketData, TTLFor("quote:PTT.BK"))
	assert.Equal(t, TTLMarketData, TTLFor("history:PTT.BK:2024-01-01:2024-12-31"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache_snapshot.json")

	store := NewStore(path, zerolog.Nop())
	store.Set("quote:PTT.BK", map[string]string{"currency": "THB"})

	// Snapshot is a flat key -> {value, timestamp} object.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snapshot map[string]Entry
	require.NoError(t, json.Unmarshal(data, &snapshot))
	require.Contains(t, snapshot, "quote:PTT.BK")

	// A new store warm-starts from the file.
	restored := NewStore(path, zerolog.Nop())
	var out map[string]string
	require.True(t, restored.GetJSON("quote:PTT.BK", &out))
	assert.Equal(t, "THB", out["currency"])
}

func TestCorruptSnapshotIsTolerated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache_snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("<html>not json</html>"), 0644))

	store := NewStore(path, zerolog.Nop())
	assert.Equal(t, 0, store.Len())

	// The store remains usable and overwrites the bad file.
	store.Set("quote:PTT.BK", 1.0)
	var v float64
	assert.True(t, store.GetJSON("quote:PTT.BK", &v))
}

func TestPersistenceFailureDoesNotFailCaller(t *testing.T) {
	// Point the snapshot at a path whose parent is a file, so every write
	// fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := NewStore(filepath.Join(blocker, "cache_snapshot.json"), zerolog.Nop())
	store.Set("quote:PTT.BK", 1.0)

	// In-memory store stays authoritative.
	var v float64
	assert.True(t, store.GetJSON("quote:PTT.BK", &v))
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Set("quote:SYM", n*100+j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Get("quote:SYM")
			}
		}()
	}
	wg.Wait()

	var v int
	assert.True(t, store.GetJSON("quote:SYM", &v))
}

func TestDeleteExpired(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Set("fx:USD:THB", 35.0)
	store.Set("quote:PTT.BK", 36.0)

	store.now = func() time.Time { return now.Add(TTLExchangeRate + time.Second) }
	assert.Equal(t, 1, store.DeleteExpired())
	assert.Equal(t, 1, store.Len())

	store.now = func() time.Time { return now.Add(TTLMarketData + time.Second) }
	assert.Equal(t, 1, store.DeleteExpired())
	assert.Equal(t, 0, store.Len())
}
