package app

import "release-train/internal/types"

type PublishRequest struct {
	Ecosystem    string
	Workspaces   []string
	TiersFile    string
	Workers      int
	SettleSec    int
	Retries      int
	RetryDelayMs int
	TimeoutSec   int
	RegistryURL  string
	Tag          string
	DryRun       bool
	Check        bool
}

type PublishResult struct {
	Tiers    []types.Tier
	Warnings []string
	Report   types.Report
	// Checked is set when the request ran preflight and planning only.
	Checked bool
}

type PlanRequest struct {
	Ecosystem  string
	Workspaces []string
	TiersFile  string
}

type PlanResult struct {
	Tiers    []types.Tier
	Warnings []string
}

type EnsureTagsRequest struct {
	Ecosystem   string
	Workspaces  []string
	Tag         string
	RegistryURL string
	TimeoutSec  int
}

type TagResult struct {
	Name    string
	Version string
	Moved   bool
}

type EnsureTagsResult struct {
	Tag     string
	Results []TagResult
}
