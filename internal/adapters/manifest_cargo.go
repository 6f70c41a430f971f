package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/ports"
	"release-train/internal/types"
)

const cargoManifestName = "Cargo.toml"

type CargoManifestAdapter struct{}

func NewCargoManifestAdapter() CargoManifestAdapter {
	return CargoManifestAdapter{}
}

func (a CargoManifestAdapter) ManifestName() string {
	return cargoManifestName
}

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		// publish may be a bool or a list of allowed registries;
		// `publish = false` marks the crate private.
		Publish interface{} `toml:"publish"`
	} `toml:"package"`
	Dependencies      map[string]interface{} `toml:"dependencies"`
	DevDependencies   map[string]interface{} `toml:"dev-dependencies"`
	BuildDependencies map[string]interface{} `toml:"build-dependencies"`
}

func (a CargoManifestAdapter) Read(dir string) (types.Package, bool, error) {
	path := filepath.Join(dir, cargoManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Package{}, false, nil
		}
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read Cargo.toml").
			WithCause(err)
	}
	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed Cargo.toml").
			WithCause(err)
	}
	name := strings.TrimSpace(manifest.Package.Name)
	version := strings.TrimSpace(manifest.Package.Version)
	if name == "" || version == "" {
		// Workspace-root manifests carry [workspace] without [package].
		if name == "" && version == "" && len(manifest.Dependencies) == 0 {
			return types.Package{}, false, nil
		}
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("Cargo.toml is missing package name or version")
	}
	return types.Package{
		Name:      name,
		Version:   version,
		Dir:       dir,
		Private:   cargoPublishDisabled(manifest.Package.Publish),
		Ecosystem: types.EcosystemCargo,
		DependsOn: cargoDependencyNames(manifest),
	}, true, nil
}

func cargoPublishDisabled(publish interface{}) bool {
	value, ok := publish.(bool)
	return ok && !value
}

func cargoDependencyNames(manifest cargoManifest) []string {
	stringSets := make([]map[string]string, 0, 3)
	for _, set := range []map[string]interface{}{
		manifest.Dependencies,
		manifest.DevDependencies,
		manifest.BuildDependencies,
	} {
		names := make(map[string]string, len(set))
		for name, spec := range set {
			// A dependency table may rename the crate via `package = "..."`.
			if table, ok := spec.(map[string]interface{}); ok {
				if renamed, ok := table["package"].(string); ok && strings.TrimSpace(renamed) != "" {
					name = strings.TrimSpace(renamed)
				}
			}
			names[name] = ""
		}
		stringSets = append(stringSets, names)
	}
	return mergeDependencyNames(stringSets...)
}

var _ ports.ManifestPort = CargoManifestAdapter{}
