package adapters

import (
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"release-train/internal/ports"
)

// TiersFileAdapter reads a hand-maintained tier override file:
//
//	tiers:
//	  - name: foundations
//	    packages: [core, util]
//	  - packages: [cli]
type TiersFileAdapter struct{}

func NewTiersFileAdapter() TiersFileAdapter {
	return TiersFileAdapter{}
}

type tiersFile struct {
	Tiers []tierEntry `yaml:"tiers"`
}

type tierEntry struct {
	Name     string   `yaml:"name"`
	Packages []string `yaml:"packages"`
}

func (a TiersFileAdapter) ReadTiers(path string) ([][]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read tiers file").
			WithCause(err)
	}
	var file tiersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("malformed tiers file").
			WithCause(err)
	}
	if len(file.Tiers) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("tiers file declares no tiers")
	}
	tiers := make([][]string, 0, len(file.Tiers))
	for _, entry := range file.Tiers {
		var names []string
		for _, name := range entry.Packages {
			trimmed := strings.TrimSpace(name)
			if trimmed != "" {
				names = append(names, trimmed)
			}
		}
		if len(names) == 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("tiers file contains an empty tier")
		}
		tiers = append(tiers, names)
	}
	return tiers, nil
}

var _ ports.TierSourcePort = TiersFileAdapter{}
