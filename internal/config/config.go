// Package config loads the TOML configuration controlling a run: source
// roots, exclusion patterns, the external-namespace allowlist, outputs
// and watch behavior. No process-wide state; the loaded value is passed
// into constructors.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	SourceRoots []string `toml:"source_roots"`
	Exclude     Exclude  `toml:"exclude"`
	External    External `toml:"external"`
	Output      Output   `toml:"output"`
	Watch       Watch    `toml:"watch"`
	EmitVerbs   []string `toml:"emit_verbs"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// External configures the allow-listed external namespaces. Members lists,
// per namespace, the attribute names accepted on that namespace's classes;
// anything else is rejected rather than guessed.
type External struct {
	Namespaces []string            `toml:"namespaces"`
	Members    map[string][]string `toml:"members"`
}

type Output struct {
	ReportPath  string `toml:"report"`
	CatalogPath string `toml:"catalog"`
	StorePath   string `toml:"store"`
	ProjectKey  string `toml:"project_key"`
}

type Watch struct {
	Debounce     time.Duration `toml:"debounce"`
	MetricsAddr  string        `toml:"metrics_addr"`
	RescanPerSec float64       `toml:"rescan_per_sec"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, cfg.validate()
}

func applyDefaults(cfg *Config) {
	if len(cfg.SourceRoots) == 0 {
		cfg.SourceRoots = []string{"."}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescanPerSec == 0 {
		cfg.Watch.RescanPerSec = 1
	}
	if cfg.Output.ProjectKey == "" {
		cfg.Output.ProjectKey = "default"
	}
}

// validate catches the catastrophic misconfigurations that are fatal by
// design: a members table naming a namespace outside the allowlist means
// the allowlist the members depend on is effectively empty.
func (cfg *Config) validate() error {
	allowed := make(map[string]bool, len(cfg.External.Namespaces))
	for _, ns := range cfg.External.Namespaces {
		if ns == "" {
			return fmt.Errorf("external.namespaces must not contain empty entries")
		}
		allowed[ns] = true
	}
	for ns := range cfg.External.Members {
		if !allowed[ns] {
			return fmt.Errorf("external.members names %q, which is not in external.namespaces", ns)
		}
	}
	return nil
}
