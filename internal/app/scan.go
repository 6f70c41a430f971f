package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"release-train/internal/types"
)

func parseEcosystem(value string) (types.Ecosystem, error) {
	eco := types.Ecosystem(strings.ToLower(strings.TrimSpace(value)))
	if !eco.Valid() {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("ecosystem must be one of npm, cargo, pypi")
	}
	return eco, nil
}

// scanPackages walks the workspace roots and reads one descriptor per
// package directory. Directories whose manifest identity cannot be
// determined are skipped with a warning; they never abort the scan.
func (s Service) scanPackages(eco types.Ecosystem, workspaces []string) ([]types.Package, []string, error) {
	manifest, ok := s.Manifests[eco]
	if !ok {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("no manifest reader registered for ecosystem " + string(eco))
	}
	var packages []types.Package
	var warnings []string
	seen := map[string]struct{}{}
	for _, root := range workspaces {
		dirs, err := s.Workspace.FindPackageDirs(root, manifest.ManifestName())
		if err != nil {
			return nil, nil, err
		}
		for _, dir := range dirs {
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			pkg, found, err := manifest.Read(dir)
			if err != nil {
				warning := fmt.Sprintf("skipping %s: %s", dir, err.Error())
				log.Warn().Str("dir", dir).Err(err).Msg("cannot determine package identity")
				warnings = append(warnings, warning)
				continue
			}
			if !found {
				continue
			}
			packages = append(packages, pkg)
		}
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, warnings, nil
}

func workspaceVersions(packages []types.Package) map[string]string {
	versions := make(map[string]string, len(packages))
	for _, pkg := range packages {
		versions[pkg.Name] = pkg.Version
	}
	return versions
}
