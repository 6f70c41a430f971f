package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"
)

// CargoManifestGuard temporarily rewrites intra-workspace path
// dependencies in a Cargo.toml to version-only references. Run restores
// the original manifest bytes regardless of how the wrapped function
// exits, so a crash mid-upload never leaves the manifest mutated.
type CargoManifestGuard struct {
	manifestPath      string
	workspaceVersions map[string]string
}

func NewCargoManifestGuard(dir string, workspaceVersions map[string]string) *CargoManifestGuard {
	return &CargoManifestGuard{
		manifestPath:      filepath.Join(dir, cargoManifestName),
		workspaceVersions: workspaceVersions,
	}
}

func (g *CargoManifestGuard) Run(fn func() error) (err error) {
	original, readErr := os.ReadFile(g.manifestPath)
	if readErr != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read Cargo.toml for rewrite").
			WithCause(readErr)
	}
	rewritten, changed, rewriteErr := rewritePathDependencies(original, g.workspaceVersions)
	if rewriteErr != nil {
		return rewriteErr
	}
	if !changed {
		return fn()
	}
	info, statErr := os.Stat(g.manifestPath)
	mode := os.FileMode(0644)
	if statErr == nil {
		mode = info.Mode()
	}
	if writeErr := os.WriteFile(g.manifestPath, rewritten, mode); writeErr != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to rewrite Cargo.toml").
			WithCause(writeErr)
	}
	defer func() {
		if restoreErr := os.WriteFile(g.manifestPath, original, mode); restoreErr != nil && err == nil {
			err = errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to restore Cargo.toml").
				WithCause(restoreErr)
		}
	}()
	return fn()
}

type cargoDependencySpec struct {
	hasPath    bool
	hasVersion bool
}

// rewritePathDependencies strips `path = "..."` from dependency entries
// that already carry a version, and replaces it with a version reference
// for workspace crates that do not. Non-dependency content is untouched.
func rewritePathDependencies(manifest []byte, workspaceVersions map[string]string) ([]byte, bool, error) {
	specs, err := inspectCargoDependencies(manifest)
	if err != nil {
		return nil, false, err
	}
	lines := strings.Split(string(manifest), "\n")
	changed := false
	currentDep := ""
	for i, line := range lines {
		if header := dependencyTableHeader(line); header != "" {
			currentDep = header
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			currentDep = ""
			continue
		}
		if currentDep != "" && pathAssignmentPattern.MatchString(line) {
			spec := specs[currentDep]
			if spec.hasVersion {
				lines[i] = ""
			} else if version, ok := workspaceVersions[currentDep]; ok {
				lines[i] = fmt.Sprintf("version = %q", version)
			} else {
				return nil, false, errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("path dependency %q has no version and is not a workspace crate", currentDep))
			}
			changed = true
			continue
		}
		rewrittenLine, lineChanged, err := rewriteInlineDependencyLine(line, specs, workspaceVersions)
		if err != nil {
			return nil, false, err
		}
		if lineChanged {
			lines[i] = rewrittenLine
			changed = true
		}
	}
	return []byte(strings.Join(lines, "\n")), changed, nil
}

var (
	dependencyHeaderPattern = regexp.MustCompile(`^\s*\[(?:target\.[^.]+\.)?(?:dependencies|dev-dependencies|build-dependencies)\.([A-Za-z0-9_-]+)\]\s*$`)
	inlineDependencyPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*=\s*\{.*\bpath\s*=`)
	pathAssignmentPattern   = regexp.MustCompile(`^\s*path\s*=\s*"[^"]*"\s*$`)
	inlinePathPattern       = regexp.MustCompile(`\bpath\s*=\s*"[^"]*"\s*,?\s*`)
)

func dependencyTableHeader(line string) string {
	match := dependencyHeaderPattern.FindStringSubmatch(line)
	if match == nil {
		return ""
	}
	return match[1]
}

func rewriteInlineDependencyLine(line string, specs map[string]cargoDependencySpec, workspaceVersions map[string]string) (string, bool, error) {
	match := inlineDependencyPattern.FindStringSubmatch(line)
	if match == nil {
		return line, false, nil
	}
	name := match[1]
	spec := specs[name]
	var rewritten string
	if spec.hasVersion {
		rewritten = inlinePathPattern.ReplaceAllString(line, "")
	} else {
		version, ok := workspaceVersions[name]
		if !ok {
			return "", false, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("path dependency %q has no version and is not a workspace crate", name))
		}
		rewritten = inlinePathPattern.ReplaceAllString(line, fmt.Sprintf("version = %q ", version))
	}
	return tidyInlineTable(rewritten), true, nil
}

// tidyInlineTable repairs dangling commas left by removing an assignment
// from an inline table: `{ , version = "1" }` or `{ version = "1", }`.
func tidyInlineTable(line string) string {
	line = regexp.MustCompile(`\{\s*,`).ReplaceAllString(line, "{")
	line = regexp.MustCompile(`,\s*,`).ReplaceAllString(line, ",")
	line = regexp.MustCompile(`,?\s*\}`).ReplaceAllString(line, " }")
	return line
}

func inspectCargoDependencies(manifest []byte) (map[string]cargoDependencySpec, error) {
	var parsed struct {
		Dependencies      map[string]interface{}            `toml:"dependencies"`
		DevDependencies   map[string]interface{}            `toml:"dev-dependencies"`
		BuildDependencies map[string]interface{}            `toml:"build-dependencies"`
		Target            map[string]map[string]interface{} `toml:"target"`
	}
	if err := toml.Unmarshal(manifest, &parsed); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed Cargo.toml").
			WithCause(err)
	}
	specs := map[string]cargoDependencySpec{}
	collect := func(set map[string]interface{}) {
		for name, raw := range set {
			table, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			spec := specs[name]
			if _, ok := table["path"]; ok {
				spec.hasPath = true
			}
			if _, ok := table["version"]; ok {
				spec.hasVersion = true
			}
			specs[name] = spec
		}
	}
	collect(parsed.Dependencies)
	collect(parsed.DevDependencies)
	collect(parsed.BuildDependencies)
	for _, tables := range parsed.Target {
		for key, raw := range tables {
			if key != "dependencies" && key != "dev-dependencies" && key != "build-dependencies" {
				continue
			}
			if set, ok := raw.(map[string]interface{}); ok {
				collect(set)
			}
		}
	}
	return specs, nil
}
