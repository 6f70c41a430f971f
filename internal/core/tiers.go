package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/types"
)

// ComputeTiers layers packages by longest path over the workspace-local
// dependency graph: every package lands one tier after the deepest of its
// workspace dependencies, so tier i+1 never uploads before tier i is done.
// Dependencies on packages outside the workspace are ignored.
func ComputeTiers(ctx context.Context, packages []types.Package) ([]types.Tier, error) {
	byName := make(map[string]types.Package, len(packages))
	for _, pkg := range packages {
		assert.NotEmpty(ctx, pkg.Name, "package name must be set")
		assert.NotEmpty(ctx, pkg.Version, "package version must be set")
		if _, ok := byName[pkg.Name]; ok {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("duplicate package name %q in workspace", pkg.Name))
		}
		byName[pkg.Name] = pkg
	}

	inDegree := make(map[string]int, len(packages))
	dependents := make(map[string][]string, len(packages))
	for _, pkg := range packages {
		inDegree[pkg.Name] = 0
	}
	for _, pkg := range packages {
		for _, dep := range pkg.DependsOn {
			if _, ok := byName[dep]; !ok {
				continue
			}
			inDegree[pkg.Name]++
			dependents[dep] = append(dependents[dep], pkg.Name)
		}
	}

	rows := make(map[string]int, len(packages))
	queue := make([]string, 0, len(packages))
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	processed := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range dependents[curr] {
			if row := rows[curr] + 1; row > rows[child] {
				rows[child] = row
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(packages) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("workspace dependency graph contains a cycle: " + strings.Join(cycleMembers(packages, inDegree), ", "))
	}

	return groupByRow(packages, rows), nil
}

func cycleMembers(packages []types.Package, inDegree map[string]int) []string {
	var members []string
	for _, pkg := range packages {
		if inDegree[pkg.Name] > 0 {
			members = append(members, pkg.Name)
		}
	}
	sort.Strings(members)
	return members
}

func groupByRow(packages []types.Package, rows map[string]int) []types.Tier {
	grouped := map[int][]types.Package{}
	maxRow := 0
	for _, pkg := range packages {
		row := rows[pkg.Name]
		grouped[row] = append(grouped[row], pkg)
		if row > maxRow {
			maxRow = row
		}
	}
	var tiers []types.Tier
	for row := 0; row <= maxRow; row++ {
		members := grouped[row]
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
		tiers = append(tiers, types.Tier{Index: len(tiers), Packages: members})
	}
	return tiers
}

// ApplyStaticTiers builds the publish plan from a hand-maintained tier
// list. The list is an operator override, not a source of truth: drift
// against the declared manifest dependencies is reported as warnings, and
// workspace packages missing from the list are appended as a final tier
// so nothing is silently dropped.
func ApplyStaticTiers(packages []types.Package, names [][]string) ([]types.Tier, []string, error) {
	byName := make(map[string]types.Package, len(packages))
	for _, pkg := range packages {
		byName[pkg.Name] = pkg
	}

	var warnings []string
	assigned := map[string]int{}
	var tiers []types.Tier
	for _, tierNames := range names {
		var members []types.Package
		for _, name := range tierNames {
			pkg, ok := byName[name]
			if !ok {
				warnings = append(warnings, fmt.Sprintf("tiers file names %q but no workspace package has that name", name))
				continue
			}
			if _, dup := assigned[name]; dup {
				warnings = append(warnings, fmt.Sprintf("tiers file lists %q more than once; first placement wins", name))
				continue
			}
			assigned[name] = len(tiers)
			members = append(members, pkg)
		}
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
		tiers = append(tiers, types.Tier{Index: len(tiers), Packages: members})
	}

	var missing []types.Package
	for _, pkg := range packages {
		if _, ok := assigned[pkg.Name]; !ok {
			warnings = append(warnings, fmt.Sprintf("package %q is not listed in the tiers file; appending to a final tier", pkg.Name))
			assigned[pkg.Name] = len(names)
			missing = append(missing, pkg)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i].Name < missing[j].Name })
		tiers = append(tiers, types.Tier{Index: len(tiers), Packages: missing})
	}

	warnings = append(warnings, tierDriftWarnings(tiers, byName, assigned)...)
	return tiers, warnings, nil
}

// tierDriftWarnings flags packages placed at or before one of their own
// workspace dependencies, the drift the static lists historically hid.
func tierDriftWarnings(tiers []types.Tier, byName map[string]types.Package, assigned map[string]int) []string {
	var warnings []string
	for _, tier := range tiers {
		for _, pkg := range tier.Packages {
			for _, dep := range pkg.DependsOn {
				if _, ok := byName[dep]; !ok {
					continue
				}
				if assigned[dep] >= assigned[pkg.Name] {
					warnings = append(warnings, fmt.Sprintf(
						"package %q (tier %d) depends on %q (tier %d); dependencies must publish in an earlier tier",
						pkg.Name, assigned[pkg.Name], dep, assigned[dep]))
				}
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}
