// Package config provides the configuration for Cascade engine trees.
//
// Configuration is resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← CASCADE_*, highest priority
//	├─────────────────────────────┤
//	│  2. Config File             │  ← cascade.toml or cascade.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
//
// # File Formats
//
// The decoder is chosen by extension: .toml files are read with go-toml,
// .yaml and .yml files with yaml.v3. Unknown fields are rejected. A missing
// file is not an error; the defaults apply.
//
//	[engine]
//	name = "root"
//	strict = false
//
//	[logging]
//	level = "debug"
//
//	[[topology.engines]]
//	name = "ui"
//	parent = "root"
//	priority = -10
//
// # Basic Usage
//
//	cfg, err := config.Load("cascade.toml")
//	if err != nil {
//		return err
//	}
//	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// # Sub-packages
//
//   - watcher: fsnotify-based change notification for live reload
package config
