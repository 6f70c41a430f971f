package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

func (s Service) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	eco, err := parseEcosystem(req.Ecosystem)
	if err != nil {
		return PlanResult{}, err
	}
	if len(req.Workspaces) == 0 {
		return PlanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one workspace root is required")
	}
	packages, warnings, err := s.scanPackages(eco, req.Workspaces)
	if err != nil {
		return PlanResult{}, err
	}
	if len(packages) == 0 {
		return PlanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no packages found in the given workspaces")
	}
	tiers, tierWarnings, err := s.planTiers(ctx, packages, req.TiersFile)
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{Tiers: tiers, Warnings: append(warnings, tierWarnings...)}, nil
}
