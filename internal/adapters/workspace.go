package adapters

import (
	"io/fs"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"release-train/internal/ports"
)

type WorkspaceAdapter struct{}

func NewWorkspaceAdapter() WorkspaceAdapter {
	return WorkspaceAdapter{}
}

func (a WorkspaceAdapter) FindPackageDirs(root string, manifestName string) ([]string, error) {
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("workspace root is empty")
	}
	if manifestName == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest name is empty")
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipWorkspaceDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) == manifestName {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan workspace").
			WithCause(err)
	}
	return dirs, nil
}

func shouldSkipWorkspaceDir(name string) bool {
	switch name {
	case "node_modules", "target", "dist", "build", ".git", ".venv", "venv", "__pycache__", ".tox", ".cargo":
		return true
	default:
		return false
	}
}

var _ ports.WorkspacePort = WorkspaceAdapter{}
