// Package manifest handles funge.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/funge/bridge"
	"github.com/chazu/funge/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "funge.toml"

// Manifest represents a funge.toml configuration.
type Manifest struct {
	Program Program `toml:"program"`
	Bridge  Bridge  `toml:"bridge"`
	Engine  Engine  `toml:"engine"`
	Debug   Debug   `toml:"debug"`

	// Dir is the directory containing the funge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program names the default program to run.
type Program struct {
	File string `toml:"file"`
}

// Bridge configures the connection to the companion console.
type Bridge struct {
	Endpoint    string        `toml:"endpoint"`
	DialTimeout time.Duration `toml:"dial-timeout"`
	MaxFrame    int           `toml:"max-frame"`
}

// Engine configures interpreter behavior.
type Engine struct {
	Random   string `toml:"random"`
	Seed     uint64 `toml:"seed"`
	MaxSteps uint64 `toml:"max-steps"`
}

// Debug selects diagnostic output.
type Debug struct {
	Flags  []string `toml:"flags"`
	Bridge bool     `toml:"bridge"`
}

// Default returns the configuration used when no funge.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a funge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a funge.toml file,
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

func (m *Manifest) applyDefaults() {
	if m.Bridge.Endpoint == "" {
		m.Bridge.Endpoint = bridge.DefaultEndpoint
	}
	if m.Bridge.DialTimeout == 0 {
		m.Bridge.DialTimeout = 5 * time.Second
	}
	if m.Bridge.MaxFrame == 0 {
		m.Bridge.MaxFrame = bridge.DefaultMaxFrame
	}
	if m.Engine.Random == "" {
		m.Engine.Random = string(vm.RandomBridge)
	}
}

// Validate checks values that toml decoding cannot.
func (m *Manifest) Validate() error {
	if _, err := vm.ParseRandomPolicy(m.Engine.Random); err != nil {
		return err
	}
	if _, err := vm.ParseDebugFlags(m.Debug.Flags); err != nil {
		return err
	}
	if m.Bridge.MaxFrame < 0 {
		return fmt.Errorf("bridge.max-frame must not be negative")
	}
	return nil
}

// ProgramPath returns the configured program path, resolved against Dir.
// It is empty when no program is configured.
func (m *Manifest) ProgramPath() string {
	if m.Program.File == "" {
		return ""
	}
	if filepath.IsAbs(m.Program.File) || m.Dir == "" {
		return m.Program.File
	}
	return filepath.Join(m.Dir, m.Program.File)
}

// RunConfig converts the manifest into a driver configuration.
func (m *Manifest) RunConfig() (vm.Config, error) {
	policy, err := vm.ParseRandomPolicy(m.Engine.Random)
	if err != nil {
		return vm.Config{}, err
	}
	flags, err := vm.ParseDebugFlags(m.Debug.Flags)
	if err != nil {
		return vm.Config{}, err
	}
	return vm.Config{
		Endpoint:    m.Bridge.Endpoint,
		DialTimeout: m.Bridge.DialTimeout,
		MaxFrame:    m.Bridge.MaxFrame,
		Random:      policy,
		Seed:        m.Engine.Seed,
		MaxSteps:    m.Engine.MaxSteps,
		Debug:       flags,
		DebugBridge: m.Debug.Bridge,
	}, nil
}
