package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the configuration and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		add("logging.level", fmt.Sprintf("must be one of %v", logLevels), c.Logging.Level, ErrCodeInvalidEnum)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		add("logging.format", fmt.Sprintf("must be one of %v", logFormats), c.Logging.Format, ErrCodeInvalidEnum)
	}
	if c.Engine.PoolCapacity < 0 {
		add("engine.pool_capacity", "must not be negative", c.Engine.PoolCapacity, ErrCodeOutOfRange)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		add("metrics.address", "required when metrics are enabled", c.Metrics.Address, ErrCodeRequiredMissing)
	}
	if len(c.Topology.Engines) == 0 && c.Engine.Name == "" {
		add("engine.name", "required without a topology", c.Engine.Name, ErrCodeRequiredMissing)
	}

	errs = append(errs, validateTopology(c.Topology.Engines)...)
	return errors.Join(errs...)
}

// validateTopology checks names, parent references and parent cycles.
func validateTopology(specs []EngineSpec) []error {
	var errs []error
	parents := make(map[string]string, len(specs))

	for i, spec := range specs {
		path := fmt.Sprintf("topology.engines[%d]", i)
		if spec.Name == "" {
			errs = append(errs, &ValidationError{Path: path + ".name", Message: "required", Value: spec.Name, Code: ErrCodeRequiredMissing})
			continue
		}
		if _, dup := parents[spec.Name]; dup {
			errs = append(errs, &ValidationError{Path: path + ".name", Message: "duplicate engine name", Value: spec.Name, Code: ErrCodeDuplicate})
			continue
		}
		parents[spec.Name] = spec.Parent
	}

	for i, spec := range specs {
		if spec.Parent == "" {
			continue
		}
		if _, ok := parents[spec.Parent]; !ok {
			path := fmt.Sprintf("topology.engines[%d].parent", i)
			errs = append(errs, &ValidationError{Path: path, Message: "unknown engine", Value: spec.Parent, Code: ErrCodeUnknownReference})
		}
	}

	// Report each cycle once, from its first declared member.
	reported := make(map[string]bool)
	for i, spec := range specs {
		if spec.Name == "" || reported[spec.Name] {
			continue
		}
		if cycle := findCycle(parents, spec.Name); cycle != nil {
			for _, name := range cycle {
				reported[name] = true
			}
			path := fmt.Sprintf("topology.engines[%d].parent", i)
			errs = append(errs, &ValidationError{Path: path, Message: "engine is its own ancestor", Value: cycle, Code: ErrCodeCycle})
		}
	}
	return errs
}

// findCycle follows parent links from start and returns the engines of the
// cycle start belongs to, or nil.
func findCycle(parents map[string]string, start string) []string {
	seen := make(map[string]int)
	var chain []string
	for name := start; name != ""; name = parents[name] {
		if at, ok := seen[name]; ok {
			cycle := chain[at:]
			if !slices.Contains(cycle, start) {
				return nil
			}
			return cycle
		}
		if _, ok := parents[name]; !ok {
			return nil
		}
		seen[name] = len(chain)
		chain = append(chain, name)
	}
	return nil
}
