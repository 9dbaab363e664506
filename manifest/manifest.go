// Package manifest handles snek.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/snek/vm"
)

// FileName is the name of the configuration file.
const FileName = "snek.toml"

// Manifest represents a snek.toml configuration.
type Manifest struct {
	VM       VMConfig       `toml:"vm"`
	GC       GCConfig       `toml:"gc"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Log      LogConfig      `toml:"log"`

	// Dir is the directory containing the snek.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig sizes the heap and the root stacks.
type VMConfig struct {
	HeapCapacity       int `toml:"heap-capacity"`
	FrameStackCapacity int `toml:"frame-stack-capacity"`
	FrameCapacity      int `toml:"frame-capacity"`
	MaxObjects         int `toml:"max-objects"`
}

// GCConfig configures collection reporting.
type GCConfig struct {
	LogStats bool `toml:"log-stats"`
}

// SnapshotConfig configures the snapshot store.
type SnapshotConfig struct {
	Database string `toml:"database"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no snek.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a snek.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.applyDefaults()

	return &m, nil
}

// FindAndLoad walks up from startDir to find a snek.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"vm.heap-capacity", m.VM.HeapCapacity},
		{"vm.frame-stack-capacity", m.VM.FrameStackCapacity},
		{"vm.frame-capacity", m.VM.FrameCapacity},
		{"vm.max-objects", m.VM.MaxObjects},
	} {
		if f.v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", f.name, f.v)
		}
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	d := vm.DefaultOptions()
	if m.VM.HeapCapacity == 0 {
		m.VM.HeapCapacity = d.HeapCapacity
	}
	if m.VM.FrameStackCapacity == 0 {
		m.VM.FrameStackCapacity = d.FrameStackCapacity
	}
	if m.VM.FrameCapacity == 0 {
		m.VM.FrameCapacity = d.FrameCapacity
	}
	if m.Snapshot.Database == "" {
		m.Snapshot.Database = filepath.Join(".snek", "snapshots.db")
	}
}

// VMOptions converts the [vm] and [gc] sections to VM options.
// A max-objects of zero leaves the heap unbounded.
func (m *Manifest) VMOptions() vm.Options {
	return vm.Options{
		HeapCapacity:       m.VM.HeapCapacity,
		FrameStackCapacity: m.VM.FrameStackCapacity,
		FrameCapacity:      m.VM.FrameCapacity,
		MaxObjects:         m.VM.MaxObjects,
		LogStats:           m.GC.LogStats,
	}
}

// DatabasePath returns the snapshot database path, resolved against Dir.
func (m *Manifest) DatabasePath() string {
	if filepath.IsAbs(m.Snapshot.Database) {
		return m.Snapshot.Database
	}
	return filepath.Join(m.Dir, m.Snapshot.Database)
}
