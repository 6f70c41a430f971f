package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/ports"
	"release-train/internal/types"
)

const DefaultCratesURL = "https://crates.io"

type CargoRegistryAdapter struct {
	BaseURL string
	Timeout time.Duration

	// workspaceVersions maps workspace crate names to their versions so
	// path dependencies can be rewritten to version references for upload.
	workspaceVersions map[string]string

	run    commandRunner
	client *http.Client
}

func NewCargoRegistryAdapter(baseURL string, timeoutSec int, workspaceVersions map[string]string) *CargoRegistryAdapter {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if endpoint == "" {
		endpoint = DefaultCratesURL
	}
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CargoRegistryAdapter{
		BaseURL:           endpoint,
		Timeout:           timeout,
		workspaceVersions: workspaceVersions,
		run:               runCommand,
		client:            &http.Client{Timeout: timeout},
	}
}

func (a *CargoRegistryAdapter) Ecosystem() types.Ecosystem {
	return types.EcosystemCargo
}

func (a *CargoRegistryAdapter) Preflight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath("cargo"); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("cargo is not on PATH").
			WithCause(err)
	}
	if os.Getenv("CARGO_REGISTRY_TOKEN") != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range []string{"credentials.toml", "credentials"} {
			if _, statErr := os.Stat(filepath.Join(home, ".cargo", name)); statErr == nil {
				return nil
			}
		}
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("cargo credentials not found (set CARGO_REGISTRY_TOKEN or run cargo login)")
}

type cratesResponse struct {
	Versions []struct {
		Num string `json:"num"`
	} `json:"versions"`
}

func (a *CargoRegistryAdapter) Exists(ctx context.Context, pkg types.Package) (bool, error) {
	requestURL := fmt.Sprintf("%s/api/v1/crates/%s", a.BaseURL, url.PathEscape(pkg.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "release-train")
	resp, err := a.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var crate cratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&crate); err != nil {
		return false, nil
	}
	for _, version := range crate.Versions {
		if version.Num == pkg.Version {
			return true, nil
		}
	}
	return false, nil
}

func (a *CargoRegistryAdapter) Build(ctx context.Context, pkg types.Package) error {
	output, err := a.run(ctx, pkg.Dir, "cargo", "package", "--list", "--allow-dirty")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cargo package failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	return nil
}

// Publish rewrites intra-workspace path dependencies to version-only
// references for the duration of the upload; the manifest is restored
// byte-for-byte on every exit path.
func (a *CargoRegistryAdapter) Publish(ctx context.Context, pkg types.Package) error {
	guard := NewCargoManifestGuard(pkg.Dir, a.workspaceVersions)
	return guard.Run(func() error {
		output, err := a.run(ctx, pkg.Dir, "cargo", "publish", "--allow-dirty")
		if err != nil {
			return classifyPublishError(output, err)
		}
		return nil
	})
}

var _ ports.RegistryPort = (*CargoRegistryAdapter)(nil)
