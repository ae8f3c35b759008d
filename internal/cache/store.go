// Package cache provides the process-wide key/value store backing every
// upstream lookup. Entries are JSON blobs with a stored-at timestamp and a
// prefix-dependent TTL; a flat JSON snapshot file mirrors the in-memory map
// so restarts warm-start instead of hammering the providers.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one cached value with the time it was stored.
type Entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"timestamp"`
}

// Store is a concurrency-safe key/value cache with class-dependent TTLs and
// best-effort disk persistence. The in-memory map is authoritative for the
// lifetime of the process; the snapshot file is an eventually-consistent
// mirror that is safe to delete at rest.
type Store struct {
	mu           sync.RWMutex
	entries      map[string]Entry
	snapshotPath string
	log          zerolog.Logger
	now          func() time.Time
}

// NewStore creates a cache store persisting to snapshotPath and loads any
// existing snapshot. A missing or corrupt snapshot is tolerated - the store
// simply starts cold.
func NewStore(snapshotPath string, log zerolog.Logger) *Store {
	s := &Store{
		entries:      make(map[string]Entry),
		snapshotPath: snapshotPath,
		log:          log.With().Str("component", "cache").Logger(),
		now:          time.Now,
	}
	s.loadSnapshot()
	return s
}

// Get returns the cached value for key, or ok=false if the key is unseen or
// its entry has outlived its TTL class. Expired entries are removed as a
// side effect so the snapshot does not accumulate dead weight.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if s.now().Sub(entry.StoredAt) >= TTLFor(key) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry since the read above.
		if current, ok := s.entries[key]; ok && s.now().Sub(current.StoredAt) >= TTLFor(key) {
			delete(s.entries, key)
			s.persistLocked()
		}
		s.mu.Unlock()
		return nil, false
	}

	return entry.Value, true
}

// GetJSON fetches key and unmarshals it into out.
func (s *Store) GetJSON(key string, out interface{}) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return false
	}
	return true
}

// Set stores value under key, overwriting any previous entry, and rewrites
// the disk snapshot. Persistence failures are logged and swallowed - they
// must never fail the caller's request.
func (s *Store) Set(key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to marshal cache value")
		return
	}

	s.mu.Lock()
	s.entries[key] = Entry{Value: raw, StoredAt: s.now()}
	s.persistLocked()
	s.mu.Unlock()
}

// DeleteExpired removes every entry past its TTL and returns how many were
// dropped. Run from the scheduled cleanup job.
func (s *Store) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.entries {
		if s.now().Sub(entry.StoredAt) >= TTLFor(key) {
			delete(s.entries, key)
			deleted++
		}
	}
	if deleted > 0 {
		s.persistLocked()
	}
	return deleted
}

// Len returns the number of live entries (expired ones included until swept).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// loadSnapshot reads the flat key->{value,timestamp} JSON object written by
// previous runs.
func (s *Store) loadSnapshot() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Failed to read cache snapshot")
		}
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Ignoring corrupt cache snapshot")
		return
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.log.Info().Int("entries", len(entries)).Msg("Loaded cache snapshot")
}

// persistLocked rewrites the snapshot file. Callers must hold the write
// lock; the serialization itself works on the live map but the write is a
// single temp-file + rename so a crash never leaves a torn snapshot.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to serialize cache snapshot")
		return
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0755); err != nil {
		s.log.Error().Err(err).Str("path", s.snapshotPath).Msg("Failed to create snapshot directory")
		return
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		s.log.Error().Err(err).Str("path", tmp).Msg("Failed to write cache snapshot")
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		s.log.Error().Err(err).Str("path", s.snapshotPath).Msg("Failed to replace cache snapshot")
	}
}
