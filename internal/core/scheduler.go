package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"release-train/internal/ports"
	"release-train/internal/shared"
	"release-train/internal/types"
)

const (
	defaultWorkers       = 4
	defaultMaxAttempts   = 8
	defaultRetryDelay    = 500 * time.Millisecond
	defaultRetryMaxDelay = 30 * time.Second
	maxOutputFragment    = 800
)

type SchedulerConfig struct {
	// Workers caps intra-tier concurrency. Cross-tier ordering is strict.
	Workers int
	// Settle is slept after any tier that uploaded at least one package,
	// covering registries that index new versions asynchronously.
	Settle time.Duration
	// MaxAttempts bounds upload attempts per package, counting the first.
	MaxAttempts int
	// RetryDelay and RetryMaxDelay shape the exponential backoff applied
	// between rate-limited attempts.
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
	// DryRun scans and checks the registry but never builds or uploads.
	DryRun bool
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Scheduler drives the tiered publish loop: skip, build, upload, retry.
// A package failure is recorded and never aborts the run; the caller reads
// the aggregate outcome off the returned report.
type Scheduler struct {
	registry ports.RegistryPort
	cfg      SchedulerConfig

	// sleep is swapped out by tests to observe backoff intervals.
	sleep func(time.Duration)
}

func NewScheduler(registry ports.RegistryPort, cfg SchedulerConfig) (*Scheduler, error) {
	if registry == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry is nil")
	}
	return &Scheduler{
		registry: registry,
		cfg:      cfg.withDefaults(),
		sleep:    time.Sleep,
	}, nil
}

// Run publishes tier by tier. No package in tier i+1 is attempted until
// every package in tier i has reached a terminal outcome, plus the settle
// delay when tier i actually uploaded something.
func (s *Scheduler) Run(ctx context.Context, tiers []types.Tier) (types.Report, error) {
	var report types.Report
	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Debug().
			Int("tier", tier.Index).
			Int("packages", len(tier.Packages)).
			Msg("starting tier")
		results := s.runTier(ctx, tier)
		types.SortResults(results)
		report.Add(results...)

		if i == len(tiers)-1 || s.cfg.Settle <= 0 || s.cfg.DryRun {
			continue
		}
		if countPublished(results) > 0 {
			log.Debug().
				Dur("settle", s.cfg.Settle).
				Msg("waiting for registry to index tier")
			s.sleep(s.cfg.Settle)
		}
	}
	return report, nil
}

func (s *Scheduler) runTier(ctx context.Context, tier types.Tier) []types.PackageResult {
	results := make([]types.PackageResult, 0, len(tier.Packages))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)
	for _, pkg := range tier.Packages {
		group.Go(func() error {
			result := s.process(groupCtx, pkg)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures live in the results.
	_ = group.Wait()
	return results
}

func (s *Scheduler) process(ctx context.Context, pkg types.Package) types.PackageResult {
	if pkg.Private {
		return types.PackageResult{Package: pkg, Outcome: types.OutcomeSkippedPrivate, Reason: "marked private in manifest"}
	}

	exists, err := s.registry.Exists(ctx, pkg)
	if err == nil && exists {
		return types.PackageResult{
			Package: pkg,
			Outcome: types.OutcomeSkippedPublished,
			Reason:  "registry already has " + pkg.Version,
		}
	}

	if s.cfg.DryRun {
		return types.PackageResult{Package: pkg, Outcome: types.OutcomePublished, Reason: "dry-run, upload skipped"}
	}

	if err := s.registry.Build(ctx, pkg); err != nil {
		log.Warn().Str("package", pkg.Name).Err(err).Msg("build failed")
		return types.PackageResult{
			Package: pkg,
			Outcome: types.OutcomeFailedBuild,
			Reason:  "build failed",
			Output:  shared.TrimOutput(err.Error(), maxOutputFragment),
		}
	}

	return s.upload(ctx, pkg)
}

func (s *Scheduler) upload(ctx context.Context, pkg types.Package) types.PackageResult {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryDelay
	policy.MaxInterval = s.cfg.RetryMaxDelay
	policy.Multiplier = 2
	// Jitter would break the non-decreasing interval guarantee callers
	// rely on when reasoning about total backoff time.
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return types.PackageResult{
				Package:  pkg,
				Outcome:  types.OutcomeFailedUpload,
				Reason:   "canceled before upload completed",
				Attempts: attempts,
				Output:   err.Error(),
			}
		}
		attempts++
		err := s.registry.Publish(ctx, pkg)
		if err == nil {
			log.Info().Str("package", pkg.Name).Str("version", pkg.Version).Msg("published")
			return types.PackageResult{Package: pkg, Outcome: types.OutcomePublished, Attempts: attempts}
		}
		if errors.Is(err, ports.ErrAlreadyPublished) {
			return types.PackageResult{
				Package:  pkg,
				Outcome:  types.OutcomeSkippedPublished,
				Reason:   "registry reported version already present during upload",
				Attempts: attempts,
			}
		}
		if errors.Is(err, ports.ErrRateLimited) {
			if attempts >= s.cfg.MaxAttempts {
				log.Warn().Str("package", pkg.Name).Int("attempts", attempts).Msg("rate limit retries exhausted")
				return types.PackageResult{
					Package:  pkg,
					Outcome:  types.OutcomeFailedRateLimit,
					Reason:   "rate limited after max attempts",
					Attempts: attempts,
					Output:   shared.TrimOutput(err.Error(), maxOutputFragment),
				}
			}
			delay := policy.NextBackOff()
			log.Debug().
				Str("package", pkg.Name).
				Int("attempt", attempts).
				Dur("backoff", delay).
				Msg("rate limited, backing off")
			s.sleep(delay)
			continue
		}
		log.Warn().Str("package", pkg.Name).Err(err).Msg("upload failed")
		return types.PackageResult{
			Package:  pkg,
			Outcome:  types.OutcomeFailedUpload,
			Reason:   "upload failed",
			Attempts: attempts,
			Output:   shared.TrimOutput(err.Error(), maxOutputFragment),
		}
	}
}

func countPublished(results []types.PackageResult) int {
	count := 0
	for _, result := range results {
		if result.Outcome == types.OutcomePublished {
			count++
		}
	}
	return count
}
