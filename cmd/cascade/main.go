// Package main is the entry point for the cascade inspection tool.
//
// cascade builds the engine tree declared in a config file and reports on
// it: the tree itself (-list), the order in which a message sent from each
// root reaches the engines (-probe), and live Prometheus metrics
// (-metrics-addr). With -watch it keeps running and applies log level
// changes from the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/cascade/internal/bus/metrics"
	"github.com/dshills/cascade/internal/config"
	"github.com/dshills/cascade/internal/config/watcher"
	"github.com/dshills/cascade/internal/logging"
	"github.com/dshills/cascade/internal/topology"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errHelp is returned by parseFlags when usage was requested.
var errHelp = errors.New("help requested")

// options holds the command line.
type options struct {
	ConfigPath  string
	LogLevel    string
	MetricsAddr string
	List        bool
	Probe       bool
	Watch       bool
	Version     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, errHelp) {
			return 0
		}
		return 1
	}

	if opts.Version {
		fmt.Fprintf(stdout, "cascade %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var buildOpts []topology.Option
	buildOpts = append(buildOpts, topology.WithLogger(logger.WithComponent("bus")))

	var srv *metrics.Server
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		rec, err := metrics.New(reg, cfg.Metrics.Namespace)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		buildOpts = append(buildOpts, topology.WithRecorder(rec))
		srv = metrics.NewServer(cfg.Metrics.Address, reg)
	}

	tree, err := topology.Build(cfg, buildOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer tree.Close()

	if opts.List {
		if err := tree.Describe(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.Probe {
		for _, root := range tree.Roots() {
			visits, err := tree.Probe(root)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Fprintf(stdout, "%s: %s\n", root, strings.Join(visits, " -> "))
		}
	}

	if srv == nil && !opts.Watch {
		return 0
	}

	if srv != nil {
		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", "error", err)
			}
		}()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := <-errc; err != nil {
				logger.Error("metrics server failed", "error", err)
				cancel()
			}
		}()
		logger.Info("serving metrics", "address", cfg.Metrics.Address, "path", metrics.DefaultPath)
	}

	if opts.Watch && opts.ConfigPath != "" {
		w, err := watchConfig(opts, cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer w.Close()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("cascade", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&opts.List, "list", false, "Print the engine tree")
	fs.BoolVar(&opts.Probe, "probe", false, "Send a probe from each root and print the visit order")
	fs.BoolVar(&opts.Watch, "watch", false, "Keep running and apply config changes")
	fs.BoolVar(&opts.Version, "version", false, "Show version information")
	fs.BoolVar(&opts.Version, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "cascade - inspect hierarchical dispatch engine trees\n\n")
		fmt.Fprintf(stderr, "Usage: cascade [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		for _, name := range config.EnvVars(config.EnvPrefix) {
			fmt.Fprintf(stderr, "  %s\n", name)
		}
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  cascade -c cascade.toml -list          Print the tree\n")
		fmt.Fprintf(stderr, "  cascade -c cascade.toml -probe         Show dispatch order\n")
		fmt.Fprintf(stderr, "  cascade -c cascade.toml -metrics-addr :9090 -watch\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, errHelp
		}
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return opts, fmt.Errorf("unexpected arguments")
	}
	return opts, nil
}

// loadConfig resolves defaults, file, environment and flags, in that order.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(config.EnvPrefix); err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(opts.LogLevel)
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = opts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// watchConfig reloads the config file on change. The log level is applied
// live; topology changes need a restart.
func watchConfig(opts options, current *config.Config, logger *logging.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.WithLogger(logger.WithComponent("watcher")))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(opts.ConfigPath); err != nil {
		_ = w.Close()
		return nil, err
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			logger.Warn("config file removed, keeping current settings", "path", ev.Path)
			return
		}

		next, err := loadConfig(opts)
		if err != nil {
			logger.Error("config reload failed", "path", ev.Path, "error", err)
			return
		}
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			logger.Error("config reload failed", "path", ev.Path, "error", err)
			return
		}
		if !reflect.DeepEqual(next.Engines(), current.Engines()) {
			logger.Warn("topology changed, restart to apply", "path", ev.Path)
		}
	})
	w.Start()
	return w, nil
}
