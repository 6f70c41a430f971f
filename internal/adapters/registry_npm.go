package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/ports"
	"release-train/internal/types"
)

const DefaultNpmRegistryURL = "https://registry.npmjs.org"

type NpmRegistryAdapter struct {
	RegistryURL string
	Tag         string
	Timeout     time.Duration

	run    commandRunner
	client *http.Client
}

func NewNpmRegistryAdapter(registryURL string, tag string, timeoutSec int) *NpmRegistryAdapter {
	endpoint := strings.TrimRight(strings.TrimSpace(registryURL), "/")
	if endpoint == "" {
		endpoint = DefaultNpmRegistryURL
	}
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NpmRegistryAdapter{
		RegistryURL: endpoint,
		Tag:         strings.TrimSpace(tag),
		Timeout:     timeout,
		run:         runCommand,
		client:      &http.Client{Timeout: timeout},
	}
}

func (a *NpmRegistryAdapter) Ecosystem() types.Ecosystem {
	return types.EcosystemNpm
}

func (a *NpmRegistryAdapter) Preflight(ctx context.Context) error {
	if _, err := exec.LookPath("npm"); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("npm is not on PATH").
			WithCause(err)
	}
	if os.Getenv("NPM_TOKEN") != "" || os.Getenv("NODE_AUTH_TOKEN") != "" {
		return nil
	}
	// No token in the environment: an interactive login may still be
	// present in ~/.npmrc, which whoami confirms.
	output, err := a.run(ctx, "", "npm", "whoami", "--registry", a.RegistryURL)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("npm credentials not found (set NPM_TOKEN or run npm login)").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	return nil
}

type npmPackument struct {
	Versions map[string]json.RawMessage `json:"versions"`
}

func (a *NpmRegistryAdapter) Exists(ctx context.Context, pkg types.Package) (bool, error) {
	// Scoped names keep their slash percent-encoded in registry URLs.
	escaped := strings.ReplaceAll(url.PathEscape(pkg.Name), "%40", "@")
	requestURL := fmt.Sprintf("%s/%s", a.RegistryURL, escaped)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, nil
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		// A failed pre-check is never authoritative; the upload's own
		// conflict response settles it.
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}
	var packument npmPackument
	if err := json.NewDecoder(resp.Body).Decode(&packument); err != nil {
		return false, nil
	}
	_, ok := packument.Versions[pkg.Version]
	return ok, nil
}

func (a *NpmRegistryAdapter) Build(ctx context.Context, pkg types.Package) error {
	output, err := a.run(ctx, pkg.Dir, "npm", "pack", "--dry-run")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("npm pack failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	return nil
}

func (a *NpmRegistryAdapter) Publish(ctx context.Context, pkg types.Package) error {
	args := []string{"publish", "--registry", a.RegistryURL}
	if a.Tag != "" {
		args = append(args, "--tag", a.Tag)
	}
	output, err := a.run(ctx, pkg.Dir, "npm", args...)
	if err != nil {
		return classifyPublishError(output, err, "cannot publish over")
	}
	return nil
}

func (a *NpmRegistryAdapter) EnsureDistTag(ctx context.Context, pkg types.Package, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dist-tag is empty")
	}
	output, err := a.run(ctx, pkg.Dir, "npm", "dist-tag", "ls", pkg.Name, "--registry", a.RegistryURL)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("npm dist-tag ls failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	if parseDistTags(string(output))[tag] == pkg.Version {
		return false, nil
	}
	spec := fmt.Sprintf("%s@%s", pkg.Name, pkg.Version)
	output, err = a.run(ctx, pkg.Dir, "npm", "dist-tag", "add", spec, tag, "--registry", a.RegistryURL)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("npm dist-tag add failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	return true, nil
}

// parseDistTags reads `npm dist-tag ls` output ("latest: 1.2.3" per line).
func parseDistTags(output string) map[string]string {
	tags := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}
		tag := strings.TrimSpace(parts[0])
		version := strings.TrimSpace(parts[1])
		if tag != "" && version != "" {
			tags[tag] = version
		}
	}
	return tags
}

var _ ports.RegistryPort = (*NpmRegistryAdapter)(nil)
var _ ports.DistTagPort = (*NpmRegistryAdapter)(nil)
