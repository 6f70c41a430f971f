package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/ports"
	"release-train/internal/types"
)

const npmManifestName = "package.json"

type NpmManifestAdapter struct{}

func NewNpmManifestAdapter() NpmManifestAdapter {
	return NpmManifestAdapter{}
}

func (a NpmManifestAdapter) ManifestName() string {
	return npmManifestName
}

type npmManifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Private          bool              `json:"private"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

func (a NpmManifestAdapter) Read(dir string) (types.Package, bool, error) {
	path := filepath.Join(dir, npmManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Package{}, false, nil
		}
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read package.json").
			WithCause(err)
	}
	var manifest npmManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed package.json").
			WithCause(err)
	}
	name := strings.TrimSpace(manifest.Name)
	version := strings.TrimSpace(manifest.Version)
	if name == "" || version == "" {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package.json is missing name or version")
	}
	return types.Package{
		Name:      name,
		Version:   version,
		Dir:       dir,
		Private:   manifest.Private,
		Ecosystem: types.EcosystemNpm,
		DependsOn: mergeDependencyNames(manifest.Dependencies, manifest.DevDependencies, manifest.PeerDependencies),
	}, true, nil
}

func mergeDependencyNames(sets ...map[string]string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, set := range sets {
		for name := range set {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var _ ports.ManifestPort = NpmManifestAdapter{}
