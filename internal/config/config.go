package config

import "strings"

// Default values.
const (
	DefaultEngineName       = "root"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsNamespace = "cascade"
	DefaultMetricsAddress   = ":9090"
)

// Config is the complete Cascade configuration.
type Config struct {
	// Engine holds settings shared by every engine.
	Engine EngineConfig `toml:"engine" yaml:"engine"`

	// Logging configures the process logger.
	Logging LoggingConfig `toml:"logging" yaml:"logging"`

	// Metrics configures the Prometheus exporter.
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`

	// Topology declares the engine tree.
	Topology TopologyConfig `toml:"topology" yaml:"topology"`
}

// EngineConfig holds engine defaults.
type EngineConfig struct {
	// Name is the root engine name used when no topology is declared.
	Name string `toml:"name" yaml:"name"`

	// Strict lets subscriber panics propagate out of a send.
	Strict bool `toml:"strict" yaml:"strict"`

	// DefaultPriority applies to subscribers that do not choose a priority.
	DefaultPriority int `toml:"default_priority" yaml:"default_priority"`

	// PoolCapacity pre-allocates entry records per engine.
	PoolCapacity int `toml:"pool_capacity" yaml:"pool_capacity"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace"`
	Address   string `toml:"address" yaml:"address"`
}

// TopologyConfig declares the engine tree.
type TopologyConfig struct {
	Engines []EngineSpec `toml:"engines" yaml:"engines"`
}

// EngineSpec declares one engine of the tree.
type EngineSpec struct {
	// Name identifies the engine. Names are unique within a topology.
	Name string `toml:"name" yaml:"name"`

	// Parent names the engine this one is attached to. Empty for roots.
	Parent string `toml:"parent" yaml:"parent"`

	// Priority orders the engine among its parent's subscribers.
	Priority int `toml:"priority" yaml:"priority"`

	// Strict overrides EngineConfig.Strict when set.
	Strict *bool `toml:"strict" yaml:"strict"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Name: DefaultEngineName,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
			Address:   DefaultMetricsAddress,
		},
	}
}

// Engines returns the declared engines, or a single root engine named by
// Engine.Name when the topology is empty.
func (c *Config) Engines() []EngineSpec {
	if len(c.Topology.Engines) > 0 {
		return c.Topology.Engines
	}
	return []EngineSpec{{Name: c.Engine.Name}}
}

// IsStrict resolves the strict setting of spec against the engine defaults.
func (c *Config) IsStrict(spec EngineSpec) bool {
	if spec.Strict != nil {
		return *spec.Strict
	}
	return c.Engine.Strict
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.Topology.Engines != nil {
		out.Topology.Engines = make([]EngineSpec, len(c.Topology.Engines))
		for i, spec := range c.Topology.Engines {
			if spec.Strict != nil {
				strict := *spec.Strict
				spec.Strict = &strict
			}
			out.Topology.Engines[i] = spec
		}
	}
	return &out
}

// normalize lowercases enumerated values.
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}
