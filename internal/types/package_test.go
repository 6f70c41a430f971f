package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func result(name string, outcome Outcome) PackageResult {
	return PackageResult{Package: Package{Name: name, Version: "1.0.0"}, Outcome: outcome}
}

func TestReportPartitionsByOutcome(t *testing.T) {
	var report Report
	report.Add(
		result("a", OutcomePublished),
		result("b", OutcomeSkippedPrivate),
		result("c", OutcomeSkippedPublished),
		result("d", OutcomeFailedBuild),
		result("e", OutcomeFailedUpload),
		result("f", OutcomeFailedRateLimit),
	)

	if diff := cmp.Diff(1, len(report.Published())); diff != "" {
		t.Fatalf("unexpected published count (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, len(report.Skipped())); diff != "" {
		t.Fatalf("unexpected skipped count (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, report.FailedCount()); diff != "" {
		t.Fatalf("unexpected failed count (-want +got):\n%s", diff)
	}
}

func TestSortResults(t *testing.T) {
	results := []PackageResult{
		result("zeta", OutcomePublished),
		result("alpha", OutcomePublished),
		result("mid", OutcomePublished),
	}
	SortResults(results)

	want := []string{"alpha", "mid", "zeta"}
	got := make([]string, 0, len(results))
	for _, res := range results {
		got = append(got, res.Package.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestOutcomeClassification(t *testing.T) {
	assert.True(t, OutcomeFailedBuild.Failed())
	assert.True(t, OutcomeFailedUpload.Failed())
	assert.True(t, OutcomeFailedRateLimit.Failed())
	assert.False(t, OutcomePublished.Failed())

	assert.True(t, OutcomeSkippedPrivate.Skipped())
	assert.True(t, OutcomeSkippedPublished.Skipped())
	assert.False(t, OutcomeFailedUpload.Skipped())
}

func TestEcosystemValid(t *testing.T) {
	for _, eco := range Ecosystems() {
		assert.True(t, eco.Valid())
	}
	assert.False(t, Ecosystem("maven").Valid())
	assert.False(t, Ecosystem("").Valid())
}
