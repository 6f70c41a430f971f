package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"release-train/internal/ports"
	"release-train/internal/shared"
	"release-train/internal/types"
)

const DefaultPypiURL = "https://pypi.org"

type PypiRegistryAdapter struct {
	IndexURL string
	// RepositoryURL is the upload endpoint; empty means twine's default.
	RepositoryURL string
	Timeout       time.Duration

	run    commandRunner
	client *http.Client
}

func NewPypiRegistryAdapter(indexURL string, repositoryURL string, timeoutSec int) *PypiRegistryAdapter {
	endpoint := strings.TrimRight(strings.TrimSpace(indexURL), "/")
	if endpoint == "" {
		endpoint = DefaultPypiURL
	}
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PypiRegistryAdapter{
		IndexURL:      endpoint,
		RepositoryURL: strings.TrimSpace(repositoryURL),
		Timeout:       timeout,
		run:           runCommand,
		client:        &http.Client{Timeout: timeout},
	}
}

func (a *PypiRegistryAdapter) Ecosystem() types.Ecosystem {
	return types.EcosystemPypi
}

func (a *PypiRegistryAdapter) Preflight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, tool := range []string{"python3", "twine"} {
		if _, err := exec.LookPath(tool); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(tool + " is not on PATH").
				WithCause(err)
		}
	}
	if os.Getenv("TWINE_API_TOKEN") != "" || os.Getenv("TWINE_PASSWORD") != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		if _, statErr := os.Stat(filepath.Join(home, ".pypirc")); statErr == nil {
			return nil
		}
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("pypi credentials not found (set TWINE_API_TOKEN or create ~/.pypirc)")
}

func (a *PypiRegistryAdapter) Exists(ctx context.Context, pkg types.Package) (bool, error) {
	name := shared.NormalizePipName(pkg.Name)
	version := pkg.Version
	if parsed, err := pep440.Parse(version); err == nil {
		version = parsed.String()
	}
	requestURL := fmt.Sprintf("%s/pypi/%s/%s/json", a.IndexURL, url.PathEscape(name), url.PathEscape(version))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, nil
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (a *PypiRegistryAdapter) Build(ctx context.Context, pkg types.Package) error {
	output, err := a.run(ctx, pkg.Dir, "python3", "-m", "build", "--outdir", "dist")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("python build failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	artifacts, err := listDistArtifacts(filepath.Join(pkg.Dir, "dist"))
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("python build produced no artifacts")
	}
	checkArgs := append([]string{"check"}, artifacts...)
	output, err = a.run(ctx, pkg.Dir, "twine", checkArgs...)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("twine check failed").
			WithCause(fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err))
	}
	return nil
}

func (a *PypiRegistryAdapter) Publish(ctx context.Context, pkg types.Package) error {
	artifacts, err := listDistArtifacts(filepath.Join(pkg.Dir, "dist"))
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("no dist artifacts to upload")
	}
	args := []string{"upload", "--non-interactive", "--skip-existing"}
	if a.RepositoryURL != "" {
		args = append(args, "--repository-url", a.RepositoryURL)
	}
	args = append(args, artifacts...)
	output, err := a.run(ctx, pkg.Dir, "twine", args...)
	if err != nil {
		return classifyPublishError(output, err)
	}
	return nil
}

// listDistArtifacts collects the uploadable wheel and sdist files for the
// current version; the shell cannot expand dist/* for us here.
func listDistArtifacts(distDir string) ([]string, error) {
	entries, err := os.ReadDir(distDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan dist artifacts").
			WithCause(err)
	}
	var artifacts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".whl") || strings.HasSuffix(name, ".tar.gz") {
			artifacts = append(artifacts, filepath.Join(distDir, name))
		}
	}
	return artifacts, nil
}

var _ ports.RegistryPort = (*PypiRegistryAdapter)(nil)
