package batch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Manifest lists runs to execute sequentially
type Manifest struct {
	Runs []Entry `yaml:"runs"`
}

// Entry is one run request in a manifest
type Entry struct {
	InstanceID       string `yaml:"instance_id"`
	ProblemStatement string `yaml:"problem_statement,omitempty"`
}

// Request converts the entry to a run request
func (e Entry) Request() domain.RunRequest {
	return domain.RunRequest{
		InstanceID:       e.InstanceID,
		ProblemStatement: e.ProblemStatement,
	}
}

// LoadManifest reads and validates a YAML manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if len(m.Runs) == 0 {
		return nil, fmt.Errorf("manifest %s contains no runs", path)
	}
	for i, entry := range m.Runs {
		if strings.TrimSpace(entry.InstanceID) == "" {
			return nil, fmt.Errorf("manifest run %d: instance_id must not be empty", i+1)
		}
	}

	return &m, nil
}
