package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-train/internal/ports"
	"release-train/internal/types"
)

// fakeRegistry scripts per-package behavior and records every call so
// tests can assert on ordering and call counts.
type fakeRegistry struct {
	mu    sync.Mutex
	calls []string

	existing    map[string]bool
	buildErrs   map[string]error
	publishErrs map[string][]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		existing:    map[string]bool{},
		buildErrs:   map[string]error{},
		publishErrs: map[string][]error{},
	}
}

func (f *fakeRegistry) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRegistry) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeRegistry) callCount(prefix string) int {
	count := 0
	for _, call := range f.recorded() {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			count++
		}
	}
	return count
}

func (f *fakeRegistry) Ecosystem() types.Ecosystem { return types.EcosystemNpm }

func (f *fakeRegistry) Preflight(context.Context) error { return nil }

func (f *fakeRegistry) Exists(_ context.Context, pkg types.Package) (bool, error) {
	f.record("exists:" + pkg.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[pkg.Name], nil
}

func (f *fakeRegistry) Build(_ context.Context, pkg types.Package) error {
	f.record("build:" + pkg.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buildErrs[pkg.Name]
}

func (f *fakeRegistry) Publish(_ context.Context, pkg types.Package) error {
	f.record("publish:" + pkg.Name)
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.publishErrs[pkg.Name]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.publishErrs[pkg.Name] = queue[1:]
	return err
}

var _ ports.RegistryPort = (*fakeRegistry)(nil)

func singleTier(packages ...types.Package) []types.Tier {
	return []types.Tier{{Index: 0, Packages: packages}}
}

func newTestScheduler(t *testing.T, registry ports.RegistryPort, cfg SchedulerConfig) (*Scheduler, *[]time.Duration) {
	t.Helper()
	scheduler, err := NewScheduler(registry, cfg)
	require.NoError(t, err)
	var sleeps []time.Duration
	var mu sync.Mutex
	scheduler.sleep = func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}
	return scheduler, &sleeps
}

func TestNewSchedulerNilRegistry(t *testing.T) {
	_, err := NewScheduler(nil, SchedulerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is nil")
}

func TestSchedulerSkipsPrivatePackages(t *testing.T) {
	registry := newFakeRegistry()
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "internal", Version: "1.0.0", Private: true},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.OutcomeSkippedPrivate, report.Results[0].Outcome)
	assert.Empty(t, registry.recorded())
}

func TestSchedulerSkipsAlreadyPublished(t *testing.T) {
	registry := newFakeRegistry()
	registry.existing["core"] = true
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.OutcomeSkippedPublished, report.Results[0].Outcome)
	assert.Zero(t, registry.callCount("build:"))
	assert.Zero(t, registry.callCount("publish:"))
}

func TestSchedulerDryRunNeverBuildsOrUploads(t *testing.T) {
	registry := newFakeRegistry()
	registry.existing["core"] = true
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{DryRun: true, Settle: time.Second})

	report, err := scheduler.Run(context.Background(), []types.Tier{
		{Index: 0, Packages: []types.Package{{Name: "core", Version: "1.0.0"}}},
		{Index: 1, Packages: []types.Package{{Name: "app", Version: "1.0.0"}}},
	})
	require.NoError(t, err)
	assert.Zero(t, registry.callCount("build:"))
	assert.Zero(t, registry.callCount("publish:"))
	assert.Empty(t, *sleeps)

	require.Len(t, report.Results, 2)
	byName := map[string]types.PackageResult{}
	for _, result := range report.Results {
		byName[result.Package.Name] = result
	}
	assert.Equal(t, types.OutcomeSkippedPublished, byName["core"].Outcome)
	assert.Equal(t, types.OutcomePublished, byName["app"].Outcome)
	assert.Equal(t, "dry-run, upload skipped", byName["app"].Reason)
}

func TestSchedulerRetriesRateLimitWithBackoff(t *testing.T) {
	registry := newFakeRegistry()
	registry.publishErrs["core"] = []error{
		fmt.Errorf("%w: 429", ports.ErrRateLimited),
		fmt.Errorf("%w: 429", ports.ErrRateLimited),
	}
	delay := 100 * time.Millisecond
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{
		MaxAttempts: 8,
		RetryDelay:  delay,
	})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.OutcomePublished, report.Results[0].Outcome)
	assert.Equal(t, 3, report.Results[0].Attempts)
	assert.Equal(t, 3, registry.callCount("publish:"))

	require.Len(t, *sleeps, 2)
	assert.Equal(t, delay, (*sleeps)[0])
	assert.Equal(t, 2*delay, (*sleeps)[1])
}

func TestSchedulerBackoffCapsAtMaxDelay(t *testing.T) {
	registry := newFakeRegistry()
	registry.publishErrs["core"] = []error{
		ports.ErrRateLimited,
		ports.ErrRateLimited,
		ports.ErrRateLimited,
		ports.ErrRateLimited,
	}
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{
		MaxAttempts:   8,
		RetryDelay:    100 * time.Millisecond,
		RetryMaxDelay: 250 * time.Millisecond,
	})

	_, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
	))
	require.NoError(t, err)

	require.Len(t, *sleeps, 4)
	previous := time.Duration(0)
	for _, d := range *sleeps {
		assert.GreaterOrEqual(t, d, previous)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
		previous = d
	}
}

func TestSchedulerRateLimitExhaustsRetries(t *testing.T) {
	registry := newFakeRegistry()
	registry.publishErrs["core"] = []error{
		ports.ErrRateLimited,
		ports.ErrRateLimited,
		ports.ErrRateLimited,
	}
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{MaxAttempts: 3})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.OutcomeFailedRateLimit, report.Results[0].Outcome)
	assert.Equal(t, 3, report.Results[0].Attempts)
	assert.Len(t, *sleeps, 2)
}

func TestSchedulerTreatsUploadConflictAsSkip(t *testing.T) {
	registry := newFakeRegistry()
	registry.publishErrs["core"] = []error{
		fmt.Errorf("%w: cannot publish over", ports.ErrAlreadyPublished),
	}
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, types.OutcomeSkippedPublished, report.Results[0].Outcome)
	assert.Equal(t, 1, registry.callCount("publish:"))
}

func TestSchedulerRecordsBuildFailure(t *testing.T) {
	registry := newFakeRegistry()
	registry.buildErrs["broken"] = errors.New("tsc exited with code 2")
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	report, err := scheduler.Run(context.Background(), singleTier(
		types.Package{Name: "broken", Version: "1.0.0"},
		types.Package{Name: "fine", Version: "1.0.0"},
	))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, types.OutcomeFailedBuild, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Output, "tsc exited with code 2")
	assert.Equal(t, types.OutcomePublished, report.Results[1].Outcome)
	assert.Zero(t, registry.callCount("publish:broken"))
}

func TestSchedulerFailureDoesNotBlockLaterTiers(t *testing.T) {
	registry := newFakeRegistry()
	registry.publishErrs["core"] = []error{errors.New("upload rejected")}
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	report, err := scheduler.Run(context.Background(), []types.Tier{
		{Index: 0, Packages: []types.Package{{Name: "core", Version: "1.0.0"}}},
		{Index: 1, Packages: []types.Package{{Name: "app", Version: "1.0.0"}}},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.FailedCount())
	assert.Equal(t, types.OutcomePublished, report.Results[1].Outcome)
	assert.Equal(t, 1, registry.callCount("publish:app"))
}

func TestSchedulerTierBarrier(t *testing.T) {
	registry := newFakeRegistry()
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{Workers: 4})

	tiers := []types.Tier{
		{Index: 0, Packages: []types.Package{
			{Name: "core", Version: "1.0.0"},
			{Name: "util", Version: "1.0.0"},
		}},
		{Index: 1, Packages: []types.Package{
			{Name: "app", Version: "1.0.0"},
		}},
	}
	_, err := scheduler.Run(context.Background(), tiers)
	require.NoError(t, err)

	calls := registry.recorded()
	firstTierOneCall := len(calls)
	for i, call := range calls {
		if call == "exists:app" {
			firstTierOneCall = i
			break
		}
	}
	terminal := map[string]bool{}
	for _, call := range calls[:firstTierOneCall] {
		if call == "publish:core" || call == "publish:util" {
			terminal[call] = true
		}
	}
	assert.True(t, terminal["publish:core"], "tier 0 must finish before tier 1 starts")
	assert.True(t, terminal["publish:util"], "tier 0 must finish before tier 1 starts")
}

func TestSchedulerSettleBetweenTiers(t *testing.T) {
	registry := newFakeRegistry()
	settle := 2 * time.Second
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{Settle: settle})

	_, err := scheduler.Run(context.Background(), []types.Tier{
		{Index: 0, Packages: []types.Package{{Name: "core", Version: "1.0.0"}}},
		{Index: 1, Packages: []types.Package{{Name: "app", Version: "1.0.0"}}},
	})
	require.NoError(t, err)
	// One settle after tier 0; none after the final tier.
	require.Len(t, *sleeps, 1)
	assert.Equal(t, settle, (*sleeps)[0])
}

func TestSchedulerSkipsSettleWhenNothingUploaded(t *testing.T) {
	registry := newFakeRegistry()
	registry.existing["core"] = true
	scheduler, sleeps := newTestScheduler(t, registry, SchedulerConfig{Settle: time.Second})

	_, err := scheduler.Run(context.Background(), []types.Tier{
		{Index: 0, Packages: []types.Package{{Name: "core", Version: "1.0.0"}}},
		{Index: 1, Packages: []types.Package{{Name: "app", Version: "1.0.0"}}},
	})
	require.NoError(t, err)
	assert.Empty(t, *sleeps)
}

func TestSchedulerSecondRunIsIdempotent(t *testing.T) {
	registry := newFakeRegistry()
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})
	tiers := singleTier(
		types.Package{Name: "core", Version: "1.0.0"},
		types.Package{Name: "util", Version: "1.0.0"},
	)

	first, err := scheduler.Run(context.Background(), tiers)
	require.NoError(t, err)
	assert.Len(t, first.Published(), 2)

	// The registry now has both versions.
	registry.existing["core"] = true
	registry.existing["util"] = true

	second, err := scheduler.Run(context.Background(), tiers)
	require.NoError(t, err)
	assert.Empty(t, second.Published())
	assert.Len(t, second.Skipped(), 2)
	assert.Zero(t, second.FailedCount())
}

func TestSchedulerStopsOnCanceledContext(t *testing.T) {
	registry := newFakeRegistry()
	scheduler, _ := newTestScheduler(t, registry, SchedulerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scheduler.Run(ctx, singleTier(types.Package{Name: "core", Version: "1.0.0"}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, registry.recorded())
}
