package cache

import "github.com/rs/zerolog"

// CleanupJob sweeps expired entries out of the store so the snapshot file
// does not grow without bound. Scheduled daily.
type CleanupJob struct {
	store *Store
	log   zerolog.Logger
}

// NewCleanupJob creates a cache cleanup job.
func NewCleanupJob(store *Store, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store: store,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run removes all expired entries.
func (j *CleanupJob) Run() error {
	deleted := j.store.DeleteExpired()
	if deleted > 0 {
		j.log.Info().Int("deleted", deleted).Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
