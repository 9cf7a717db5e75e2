package bus

import (
	"context"
	"log/slog"
)

// DefaultPriority is the priority of subscribers that do not choose one.
const DefaultPriority = 0

// Option configures an Engine.
type Option func(*engineConfig)

// engineConfig contains configuration for an engine.
type engineConfig struct {
	name            string
	logger          *slog.Logger
	strict          bool
	failureHandler  FailureHandler
	recorder        Recorder
	poolCapacity    int
	defaultPriority int
	priority        int
}

// FailureHandler is called when a subscriber panics and the engine is not strict.
type FailureHandler func(err *SubscriberError)

// Recorder receives engine activity, typically to export metrics.
type Recorder interface {
	// Dispatched is called once per walk that visits at least one entry.
	Dispatched(engine string)

	// Delivered is called for every subscriber reaction that completed.
	// Targets an invoker skips are not reported.
	Delivered(engine string)

	// Failed is called for every subscriber reaction that panicked.
	Failed(engine string, key Key)

	// Subscribers is called with the current registration count after it changes.
	Subscribers(engine string, count int)
}

// defaultEngineConfig returns the production configuration.
func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:          slog.Default(),
		defaultPriority: DefaultPriority,
		priority:        DefaultPriority,
	}
}

// WithEngineName sets the diagnostic name of the engine.
func WithEngineName(name string) Option {
	return func(c *engineConfig) {
		c.name = name
	}
}

// WithLogger sets the logger used to report subscriber failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrict controls whether subscriber panics propagate out of Send.
// Strict engines fail fast, which is what test suites want.
func WithStrict(strict bool) Option {
	return func(c *engineConfig) {
		c.strict = strict
	}
}

// WithFailureHandler replaces the default failure handler, which logs the failure.
func WithFailureHandler(h FailureHandler) Option {
	return func(c *engineConfig) {
		if h != nil {
			c.failureHandler = h
		}
	}
}

// WithRecorder sets the activity recorder.
func WithRecorder(r Recorder) Option {
	return func(c *engineConfig) {
		c.recorder = r
	}
}

// WithPoolCapacity pre-allocates n entry records.
func WithPoolCapacity(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.poolCapacity = n
		}
	}
}

// WithDefaultPriority sets the priority of subscribers that do not choose one.
func WithDefaultPriority(p int) Option {
	return func(c *engineConfig) {
		c.defaultPriority = p
	}
}

// WithEnginePriority sets the priority the engine takes when attached as a
// child without an explicit priority.
func WithEnginePriority(p int) Option {
	return func(c *engineConfig) {
		c.priority = p
	}
}

// logFailure is the default failure handler.
func logFailure(l *slog.Logger) FailureHandler {
	return func(err *SubscriberError) {
		l.LogAttrs(context.Background(), slog.LevelError, "subscriber failed",
			slog.String("engine", err.Engine),
			slog.String("subscriber", err.Subscriber),
			slog.String("key", err.Key.String()),
			slog.Any("panic", err.Value),
		)
	}
}

// SubscribeOption configures one registration.
type SubscribeOption func(*subscribeConfig)

// subscribeConfig contains configuration for a registration.
type subscribeConfig struct {
	priority int
	name     string
}

// WithPriority sets the registration priority. Lower values run first.
func WithPriority(p int) SubscribeOption {
	return func(c *subscribeConfig) {
		c.priority = p
	}
}

// WithName sets the diagnostic name of the registration.
func WithName(name string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.name = name
	}
}

// Prioritized is implemented by owners that choose their own priority.
type Prioritized interface {
	Priority() int
}

// Named is implemented by owners that choose their own diagnostic name.
type Named interface {
	Name() string
}
