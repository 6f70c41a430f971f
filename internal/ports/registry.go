package ports

import (
	"context"
	"errors"

	"release-train/internal/types"
)

// Sentinel errors returned by RegistryPort.Publish so the scheduler can
// classify failures without matching tool output itself.
var (
	// ErrAlreadyPublished reports that the registry already holds this
	// exact version. Treated as success by the scheduler.
	ErrAlreadyPublished = errors.New("version already published")

	// ErrRateLimited reports a registry rate-limit rejection. The
	// scheduler retries these with backoff up to a bounded attempt count.
	ErrRateLimited = errors.New("registry rate limited")
)

// RegistryPort is the per-ecosystem publish capability set.
type RegistryPort interface {
	Ecosystem() types.Ecosystem

	// Preflight verifies the local toolchain and credentials before any
	// work starts. A Preflight failure aborts the whole run.
	Preflight(ctx context.Context) error

	// Exists reports whether name@version is already on the registry.
	// Network failures collapse to (false, nil): the upload's own
	// already-exists response is authoritative over a failed pre-check.
	Exists(ctx context.Context, pkg types.Package) (bool, error)

	// Build produces or verifies the uploadable artifact for pkg.
	Build(ctx context.Context, pkg types.Package) error

	// Publish uploads pkg. Failures are classified: ErrAlreadyPublished
	// and ErrRateLimited are returned wrapped; anything else is terminal.
	Publish(ctx context.Context, pkg types.Package) error
}

// DistTagPort reconciles a symbolic release channel after publishing.
type DistTagPort interface {
	// EnsureDistTag makes tag point at pkg.Version, issuing a tag move
	// only when it does not already. Returns whether a move was issued.
	EnsureDistTag(ctx context.Context, pkg types.Package, tag string) (moved bool, err error)
}
