package app

import (
	"time"

	"release-train/internal/adapters"
	"release-train/internal/ports"
	"release-train/internal/types"
)

type Service struct {
	Workspace  ports.WorkspacePort
	Manifests  map[types.Ecosystem]ports.ManifestPort
	TierSource ports.TierSourcePort
	Clock      func() time.Time
}

func NewService() Service {
	return Service{
		Workspace: adapters.NewWorkspaceAdapter(),
		Manifests: map[types.Ecosystem]ports.ManifestPort{
			types.EcosystemNpm:   adapters.NewNpmManifestAdapter(),
			types.EcosystemCargo: adapters.NewCargoManifestAdapter(),
			types.EcosystemPypi:  adapters.NewPythonManifestAdapter(),
		},
		TierSource: adapters.NewTiersFileAdapter(),
		Clock:      time.Now,
	}
}
