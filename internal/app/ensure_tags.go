package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"release-train/internal/adapters"
	"release-train/internal/types"
)

// EnsureTags reconciles the symbolic release channel after a publish
// wave. It is independent of the scheduler and safe to re-run: when the
// tag already points at the workspace version nothing is issued.
func (s Service) EnsureTags(ctx context.Context, req EnsureTagsRequest) (EnsureTagsResult, error) {
	eco, err := parseEcosystem(req.Ecosystem)
	if err != nil {
		return EnsureTagsResult{}, err
	}
	if eco != types.EcosystemNpm {
		// Only npm has a dist-tag concept; crates.io and PyPI resolve
		// channels client-side.
		return EnsureTagsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dist-tags are only supported for the npm ecosystem")
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		tag = "next"
	}
	if len(req.Workspaces) == 0 {
		return EnsureTagsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one workspace root is required")
	}

	packages, warnings, err := s.scanPackages(eco, req.Workspaces)
	if err != nil {
		return EnsureTagsResult{}, err
	}
	for _, warning := range warnings {
		log.Warn().Msg(warning)
	}

	registry := adapters.NewNpmRegistryAdapter(req.RegistryURL, tag, req.TimeoutSec)
	if err := registry.Preflight(ctx); err != nil {
		return EnsureTagsResult{}, err
	}

	result := EnsureTagsResult{Tag: tag}
	for _, pkg := range packages {
		if pkg.Private {
			continue
		}
		moved, err := registry.EnsureDistTag(ctx, pkg, tag)
		if err != nil {
			return EnsureTagsResult{}, err
		}
		if moved {
			log.Info().Str("package", pkg.Name).Str("tag", tag).Str("version", pkg.Version).Msg("moved dist-tag")
		}
		result.Results = append(result.Results, TagResult{Name: pkg.Name, Version: pkg.Version, Moved: moved})
	}
	return result, nil
}
