package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of the environment variables read by ApplyEnv.
const EnvPrefix = "CASCADE_"

// envSetting maps one variable name (without prefix) onto the config.
type envSetting struct {
	name  string
	apply func(c *Config, value string) error
}

// envSettings lists the supported variables.
var envSettings = []envSetting{
	{"ENGINE_NAME", func(c *Config, v string) error { c.Engine.Name = v; return nil }},
	{"ENGINE_STRICT", func(c *Config, v string) error { return parseBool(v, &c.Engine.Strict) }},
	{"ENGINE_DEFAULT_PRIORITY", func(c *Config, v string) error { return parseInt(v, &c.Engine.DefaultPriority) }},
	{"ENGINE_POOL_CAPACITY", func(c *Config, v string) error { return parseInt(v, &c.Engine.PoolCapacity) }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"METRICS_ENABLED", func(c *Config, v string) error { return parseBool(v, &c.Metrics.Enabled) }},
	{"METRICS_NAMESPACE", func(c *Config, v string) error { c.Metrics.Namespace = v; return nil }},
	{"METRICS_ADDRESS", func(c *Config, v string) error { c.Metrics.Address = v; return nil }},
}

// EnvVars returns the names of the variables ApplyEnv reads for prefix.
func EnvVars(prefix string) []string {
	names := make([]string, len(envSettings))
	for i, s := range envSettings {
		names[i] = prefix + s.name
	}
	return names
}

// ApplyEnv overrides settings from environment variables named prefix
// followed by the setting, e.g. CASCADE_LOG_LEVEL. Empty values are treated
// as set.
func (c *Config) ApplyEnv(prefix string) error {
	return c.applyEnv(prefix, os.LookupEnv)
}

func (c *Config) applyEnv(prefix string, lookup func(string) (string, bool)) error {
	for _, s := range envSettings {
		name := prefix + s.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := s.apply(c, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s=%q: %w", name, v, err)
		}
	}
	c.normalize()
	return nil
}

// parseBool accepts the spellings true/false, yes/no, on/off and 1/0.
func parseBool(s string, dst *bool) error {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0":
		*dst = false
	default:
		return ErrInvalidEnv
	}
	return nil
}

func parseInt(s string, dst *int) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnv, err)
	}
	*dst = n
	return nil
}
