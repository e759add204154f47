package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
)

// runTimeout bounds one full batch run including provider fetches.
const runTimeout = 30 * time.Minute

// PortfolioSource supplies the current portfolio state for a run. A nil
// source means an empty portfolio.
type PortfolioSource func(ctx context.Context) (domain.PortfolioContext, error)

// Job adapts the runner for the scheduler and for on-demand triggering via
// the HTTP API.
type Job struct {
	runner *Runner
	source PortfolioSource
	log    zerolog.Logger
}

func NewJob(runner *Runner, source PortfolioSource, log zerolog.Logger) *Job {
	return &Job{
		runner: runner,
		source: source,
		log:    log.With().Str("job", "daily_analysis").Logger(),
	}
}

func (j *Job) Name() string { return "daily_analysis" }

// Run executes one batch run for today.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return j.TriggerRun(ctx)
}

// TriggerRun executes one batch run for today with the caller's context.
func (j *Job) TriggerRun(ctx context.Context) error {
	portfolio := domain.PortfolioContext{}
	if j.source != nil {
		loaded, err := j.source(ctx)
		if err != nil {
			j.log.Warn().Err(err).Msg("portfolio load failed, running with empty portfolio")
		} else {
			portfolio = loaded
		}
	}

	result, err := j.runner.Run(ctx, time.Now().UTC(), portfolio)
	if err != nil {
		return err
	}
	j.log.Info().
		Int("signals", len(result.Signals)).
		Int("skipped", len(result.Skipped)).
		Msg("scheduled run finished")
	return nil
}
