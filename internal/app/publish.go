package app

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"release-train/internal/adapters"
	"release-train/internal/core"
	"release-train/internal/ports"
	"release-train/internal/types"
)

func (s Service) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	eco, err := parseEcosystem(req.Ecosystem)
	if err != nil {
		return PublishResult{}, err
	}
	if len(req.Workspaces) == 0 {
		return PublishResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one workspace root is required")
	}

	packages, warnings, err := s.scanPackages(eco, req.Workspaces)
	if err != nil {
		return PublishResult{}, err
	}
	if len(packages) == 0 {
		return PublishResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no packages found in the given workspaces")
	}

	tiers, tierWarnings, err := s.planTiers(ctx, packages, req.TiersFile)
	if err != nil {
		return PublishResult{}, err
	}
	warnings = append(warnings, tierWarnings...)
	for _, warning := range warnings {
		log.Warn().Msg(warning)
	}

	registry := registryForEcosystem(eco, req.RegistryURL, req.Tag, req.TimeoutSec, packages)
	if err := registry.Preflight(ctx); err != nil {
		return PublishResult{}, err
	}
	if req.Check {
		return PublishResult{Tiers: tiers, Warnings: warnings, Checked: true}, nil
	}

	scheduler, err := core.NewScheduler(registry, core.SchedulerConfig{
		Workers:     req.Workers,
		Settle:      time.Duration(req.SettleSec) * time.Second,
		MaxAttempts: req.Retries,
		RetryDelay:  time.Duration(req.RetryDelayMs) * time.Millisecond,
		DryRun:      req.DryRun,
	})
	if err != nil {
		return PublishResult{}, err
	}
	report, err := scheduler.Run(ctx, tiers)
	if err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Tiers: tiers, Warnings: warnings, Report: report}, nil
}

func (s Service) planTiers(ctx context.Context, packages []types.Package, tiersFile string) ([]types.Tier, []string, error) {
	static, err := s.TierSource.ReadTiers(tiersFile)
	if err != nil {
		return nil, nil, err
	}
	if static != nil {
		return applyStatic(packages, static)
	}
	tiers, err := core.ComputeTiers(ctx, packages)
	if err != nil {
		return nil, nil, err
	}
	return tiers, nil, nil
}

func applyStatic(packages []types.Package, static [][]string) ([]types.Tier, []string, error) {
	tiers, warnings, err := core.ApplyStaticTiers(packages, static)
	if err != nil {
		return nil, nil, err
	}
	return tiers, warnings, nil
}

func registryForEcosystem(eco types.Ecosystem, registryURL string, tag string, timeoutSec int, packages []types.Package) ports.RegistryPort {
	switch eco {
	case types.EcosystemCargo:
		return adapters.NewCargoRegistryAdapter(registryURL, timeoutSec, workspaceVersions(packages))
	case types.EcosystemPypi:
		// A non-default index doubles as the upload endpoint.
		repositoryURL := ""
		if registryURL != "" {
			repositoryURL = registryURL
		}
		return adapters.NewPypiRegistryAdapter(registryURL, repositoryURL, timeoutSec)
	default:
		return adapters.NewNpmRegistryAdapter(registryURL, tag, timeoutSec)
	}
}
