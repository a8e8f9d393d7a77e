package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/dispatch"
	"github.com/de-tools/cloud-sentry/pkg/services/evidence"
	"github.com/de-tools/cloud-sentry/pkg/services/rules"
)

// Inventory discovers the resource population and reads per-resource
// configuration.
type Inventory interface {
	ListResources(ctx context.Context) ([]domain.Resource, error)
	Describe(ctx context.Context, res domain.Resource) domain.BucketConfig
}

// Dispatcher delivers one evidence record to both downstream sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec domain.EvidenceRecord) dispatch.Result
}

type Settings struct {
	// Concurrency bounds the worker pool so describe and dispatch calls
	// stay inside external rate limits.
	Concurrency int
}

func DefaultSettings() Settings {
	return Settings{Concurrency: 8}
}

// Runner drives one complete sweep: enumerate, then per resource evaluate,
// build evidence, and dispatch. Each run is independent; no state survives
// between invocations.
type Runner struct {
	inventory  Inventory
	dispatcher Dispatcher
	settings   Settings
	now        func() time.Time
}

func NewRunner(inventory Inventory, dispatcher Dispatcher, settings Settings) *Runner {
	if settings.Concurrency <= 0 {
		settings.Concurrency = DefaultSettings().Concurrency
	}
	return &Runner{
		inventory:  inventory,
		dispatcher: dispatcher,
		settings:   settings,
		now:        time.Now,
	}
}

// Run executes one sweep. Only an enumeration failure is fatal: without the
// full population no evidence is dispatched at all, so a run never emits a
// silently partial set. Every other failure is isolated to its resource and
// reported in the summary.
func (r *Runner) Run(ctx context.Context) (domain.RunSummary, error) {
	runID := uuid.NewString()
	logger := zerolog.Ctx(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)

	summary := domain.RunSummary{
		RunID:   runID,
		Started: r.now().UTC(),
	}

	resources, err := r.inventory.ListResources(ctx)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("resource enumeration failed: %w", err)
	}
	logger.Info().Int("resources", len(resources)).Msg("enumeration complete")

	var mu sync.Mutex
	outcomes := make([]domain.ResourceOutcome, 0, len(resources))

	g := new(errgroup.Group)
	g.SetLimit(r.settings.Concurrency)
	for _, res := range resources {
		res := res
		g.Go(func() error {
			outcome := r.process(ctx, res, runID)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in their outcomes

	summary.Completed = r.now().UTC()
	summary.Total = len(outcomes)
	summary.Outcomes = outcomes
	for _, o := range outcomes {
		switch {
		case o.Incomplete:
			summary.Incomplete++
		case o.Status == domain.StatusPass:
			summary.Passed++
		case o.Status == domain.StatusFail:
			summary.Failed++
		default:
			summary.Errored++
		}
		if o.TriggerSent {
			summary.TriggersSent++
		}
		summary.DispatchErrors += o.DispatchErrors
	}

	logger.Info().
		Int("total", summary.Total).
		Int("passed", summary.Passed).
		Int("failed", summary.Failed).
		Int("errored", summary.Errored).
		Int("incomplete", summary.Incomplete).
		Int("dispatch_errors", summary.DispatchErrors).
		Msg("sweep complete")

	return summary, nil
}

// process runs the evaluate-build-dispatch chain for one resource. It never
// returns an error: failures become part of the resource's outcome so the
// sweep keeps going.
func (r *Runner) process(ctx context.Context, res domain.Resource, runID string) domain.ResourceOutcome {
	logger := zerolog.Ctx(ctx)

	// Work that has not started when the run deadline expires is abandoned
	// and reported incomplete rather than allowed to overrun.
	if ctx.Err() != nil {
		logger.Warn().
			Str("resource_id", res.ARN).
			Msg("resource abandoned: run deadline exceeded")
		return domain.ResourceOutcome{
			ResourceID: res.ARN,
			Status:     domain.StatusError,
			Incomplete: true,
		}
	}

	cfg := r.inventory.Describe(ctx, res)

	results, err := rules.Evaluate(cfg)
	if err != nil {
		logger.Error().
			Err(err).
			Str("resource_id", res.ARN).
			Msg("rule evaluation failed")
		results = rules.ErrorResults(res, err)
	}

	rec := evidence.Build(res, results, runID, r.now())
	logEvidence(logger, rec)

	dispatched := r.dispatcher.Dispatch(ctx, rec)

	return domain.ResourceOutcome{
		ResourceID:     res.ARN,
		Status:         rec.Status,
		TriggerSent:    dispatched.TriggerSent,
		DispatchErrors: dispatched.Errors(),
	}
}

// logEvidence writes the record to the run's log stream. The log is the
// run's observable output: every resource appears with its final status,
// ERROR entries included, so operators can tell "confirmed failing" from
// "could not confirm".
func logEvidence(logger *zerolog.Logger, rec domain.EvidenceRecord) {
	checks := zerolog.Arr()
	for _, check := range rec.Checks {
		entry := zerolog.Dict().
			Str("rule", check.Rule).
			Str("status", string(check.Status))
		if check.Reason != "" {
			entry = entry.Str("reason", check.Reason)
		}
		checks = checks.Dict(entry)
	}

	logger.Info().
		Str("resource_id", rec.Resource.ARN).
		Str("status", string(rec.Status)).
		Time("timestamp", rec.Timestamp).
		Array("checks", checks).
		Msg("compliance evidence")
}
