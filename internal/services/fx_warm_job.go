package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// FxWarmJob periodically refreshes the currency pairs every dividend
// response depends on, so the first request after a quiet spell is not
// stuck behind an upstream fetch.
type FxWarmJob struct {
	fx    *FxService
	pairs [][2]string
	log   zerolog.Logger
}

// NewFxWarmJob creates the warm-up job for the given (from, to) pairs.
func NewFxWarmJob(fx *FxService, pairs [][2]string, log zerolog.Logger) *FxWarmJob {
	return &FxWarmJob{
		fx:    fx,
		pairs: pairs,
		log:   log.With().Str("job", "fx_warmup").Logger(),
	}
}

// Name returns the job name for scheduler logging.
func (j *FxWarmJob) Name() string { return "fx_warmup" }

// Run resolves every configured pair. A pair that cannot be resolved is
// logged; the job only fails when nothing resolved at all.
func (j *FxWarmJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved := 0
	for _, pair := range j.pairs {
		rate, ok := j.fx.Rate(ctx, pair[0], pair[1])
		if !ok {
			j.log.Warn().Str("from", pair[0]).Str("to", pair[1]).Msg("Could not warm pair")
			continue
		}
		resolved++
		j.log.Debug().Str("from", pair[0]).Str("to", pair[1]).Float64("rate", rate).Msg("Warmed pair")
	}

	if resolved == 0 && len(j.pairs) > 0 {
		return fmt.Errorf("no exchange rate pairs could be warmed")
	}
	return nil
}
