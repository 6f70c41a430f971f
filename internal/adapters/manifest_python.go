package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"release-train/internal/ports"
	"release-train/internal/shared"
	"release-train/internal/types"
)

const pythonManifestName = "pyproject.toml"

// privateClassifier is the PyPI convention for keeping a project off
// public indexes; uploads carrying it are rejected by pypi.org.
const privateClassifier = "Private :: Do Not Upload"

type PythonManifestAdapter struct{}

func NewPythonManifestAdapter() PythonManifestAdapter {
	return PythonManifestAdapter{}
}

func (a PythonManifestAdapter) ManifestName() string {
	return pythonManifestName
}

type pyprojectManifest struct {
	Project struct {
		Name         string   `toml:"name"`
		Version      string   `toml:"version"`
		Dependencies []string `toml:"dependencies"`
		Classifiers  []string `toml:"classifiers"`
	} `toml:"project"`
}

func (a PythonManifestAdapter) Read(dir string) (types.Package, bool, error) {
	path := filepath.Join(dir, pythonManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Package{}, false, nil
		}
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read pyproject.toml").
			WithCause(err)
	}
	var manifest pyprojectManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed pyproject.toml").
			WithCause(err)
	}
	name := shared.NormalizePipName(manifest.Project.Name)
	version := strings.TrimSpace(manifest.Project.Version)
	if name == "" || version == "" {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pyproject.toml is missing project name or version")
	}
	if _, err := pep440.Parse(version); err != nil {
		return types.Package{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("pyproject.toml version is not valid PEP 440").
			WithCause(err)
	}
	return types.Package{
		Name:      name,
		Version:   version,
		Dir:       dir,
		Private:   hasPrivateClassifier(manifest.Project.Classifiers),
		Ecosystem: types.EcosystemPypi,
		DependsOn: pipDependencyNames(manifest.Project.Dependencies),
	}, true, nil
}

func hasPrivateClassifier(classifiers []string) bool {
	for _, classifier := range classifiers {
		if strings.TrimSpace(classifier) == privateClassifier {
			return true
		}
	}
	return false
}

func pipDependencyNames(requirements []string) []string {
	names := make(map[string]string, len(requirements))
	for _, requirement := range requirements {
		name := shared.NormalizePipName(shared.RequirementName(requirement))
		if name == "" {
			continue
		}
		names[name] = ""
	}
	return mergeDependencyNames(names)
}

var _ ports.ManifestPort = PythonManifestAdapter{}
