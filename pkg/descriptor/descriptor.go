// Package descriptor persists and loads the deployment descriptor
// (mongo-manager.yml) that makes stop/restart possible from a cold
// process: the topology shape plus, per directory, the exact argv to
// re-execute.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zph/mlaunch/pkg/naming"
	"github.com/zph/mlaunch/pkg/planner"
)

// Settings is the persisted start command for one directory.
type Settings struct {
	StartCmd []string `yaml:"start_cmd"`
}

// Descriptor is the exact on-disk shape of mongo-manager.yml. Sharded is
// an integer when the deployment is sharded and a nil *int otherwise,
// which is written as `sharded: null`; the YAML literal `false` is neither
// written nor accepted on Load.
type Descriptor struct {
	Sharded *int                `yaml:"sharded"`
	Mongos  int                 `yaml:"mongos,omitempty"`
	DBDirs  []string            `yaml:"db_dirs"`
	Settings map[string]Settings `yaml:"settings"`
}

// FromPlan builds the descriptor for a freshly planned deployment. dir
// order in the result is the plan's start order; stop order is this
// reversed.
func FromPlan(p *planner.Plan) *Descriptor {
	d := &Descriptor{
		DBDirs:   make([]string, 0, len(p.Processes)),
		Settings: make(map[string]Settings, len(p.Processes)),
	}

	if p.Sharded > 0 {
		sharded := p.Sharded
		d.Sharded = &sharded
		d.Mongos = p.Mongos
	}

	for _, proc := range p.Processes {
		d.DBDirs = append(d.DBDirs, proc.Dir)
		d.Settings[proc.Dir] = Settings{StartCmd: proc.Argv}
	}

	return d
}

// IsSharded reports whether the descriptor describes a sharded deployment.
func (d *Descriptor) IsSharded() bool { return d.Sharded != nil }

// Path returns the descriptor file path for deployment root dir.
func Path(dir string) string {
	return filepath.Join(dir, naming.DescriptorFileName)
}

// Save writes the descriptor to dir atomically: encode to a temp file in
// the same directory, then rename over the final path, so a reader never
// observes a partially written descriptor.
func Save(dir string, d *Descriptor) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	finalPath := Path(dir)
	tmp, err := os.CreateTemp(dir, ".mongo-manager.yml.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp descriptor file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp descriptor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp descriptor file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename descriptor file into place: %w", err)
	}

	return nil
}

// Load reads and parses the descriptor for deployment root dir.
func Load(dir string) (*Descriptor, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	return &d, nil
}
