package types

import "sort"

// Package describes one publishable unit discovered in a workspace.
// Descriptors are built fresh from manifest files on every run and are
// immutable for the duration of that run.
type Package struct {
	Name      string
	Version   string
	Dir       string
	Private   bool
	Ecosystem Ecosystem

	// DependsOn holds declared same-ecosystem dependency names. The tier
	// computation intersects this set with the workspace; external
	// dependencies are ignored.
	DependsOn []string
}

// Tier is one wave of the publish plan. Packages within a tier have no
// publish-order requirement relative to each other.
type Tier struct {
	Index    int
	Packages []Package
}

// PackageResult records the terminal state of one package in one run.
type PackageResult struct {
	Package Package
	Outcome Outcome
	Reason  string
	// Attempts counts upload attempts, including the successful one.
	Attempts int
	// Output carries a trimmed fragment of tool output for failures.
	Output string
}

// Report aggregates per-package results for the end-of-run summary.
// Results are collected per tier and sorted by package name so the
// summary is stable regardless of worker interleaving.
type Report struct {
	Results []PackageResult
}

func (r *Report) Add(results ...PackageResult) {
	r.Results = append(r.Results, results...)
}

func (r Report) Published() []PackageResult {
	return r.filter(func(res PackageResult) bool { return res.Outcome == OutcomePublished })
}

func (r Report) Skipped() []PackageResult {
	return r.filter(func(res PackageResult) bool { return res.Outcome.Skipped() })
}

func (r Report) Failed() []PackageResult {
	return r.filter(func(res PackageResult) bool { return res.Outcome.Failed() })
}

func (r Report) FailedCount() int {
	return len(r.Failed())
}

func (r Report) filter(keep func(PackageResult) bool) []PackageResult {
	var out []PackageResult
	for _, res := range r.Results {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

// SortResults orders results by package name for stable output.
func SortResults(results []PackageResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Package.Name < results[j].Package.Name
	})
}
