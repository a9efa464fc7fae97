package engine

import (
	"time"

	"github.com/ShayCichocki/dispatch/internal/agentexec"
	"github.com/ShayCichocki/dispatch/internal/interaction"
	"github.com/ShayCichocki/dispatch/internal/planner"
	"github.com/ShayCichocki/dispatch/internal/runstore"
	"github.com/ShayCichocki/dispatch/internal/state"
)

// RequiredConfig contains the minimal required configuration for an
// Engine. All fields are required and have no defaults.
type RequiredConfig struct {
	// Planner decides what happens each iteration.
	Planner planner.Planner
	// Runner executes delegated work.
	Runner agentexec.Runner
	// Store is the run's append-only persistence root.
	Store *runstore.Store
	// Roles maps agent role name to max concurrent instances.
	Roles map[string]int
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional configuration.
type engineOptions struct {
	maxWorkers    int
	waveTimeout   time.Duration
	unitIdle      time.Duration
	unitAbsolute  time.Duration
	maxIterations int
	compactLimit  int
	detailedLimit int
	stopOnFailure bool
	ui            interaction.UserInteraction
	db            state.StateStore
	logger        *DebugLogger
	emitterBuffer int
	now           func() time.Time
}

func defaultOptions() engineOptions {
	return engineOptions{
		maxWorkers:    4,
		waveTimeout:   30 * time.Minute,
		unitIdle:      2 * time.Minute,
		unitAbsolute:  10 * time.Minute,
		maxIterations: 24,
		logger:        NopLogger(),
		emitterBuffer: 64,
		now:           time.Now,
	}
}

// WithMaxWorkers sets the concurrent worker bound per wave.
func WithMaxWorkers(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithWaveTimeout sets the aggregate timeout for one wave.
func WithWaveTimeout(d time.Duration) Option {
	return func(o *engineOptions) { o.waveTimeout = d }
}

// WithUnitTimeouts sets the per-unit idle and absolute timeouts.
func WithUnitTimeouts(idle, absolute time.Duration) Option {
	return func(o *engineOptions) {
		o.unitIdle = idle
		o.unitAbsolute = absolute
	}
}

// WithMaxIterations sets the hard iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithTextLimits sets the compact and detailed report length ceilings.
func WithTextLimits(compact, detailed int) Option {
	return func(o *engineOptions) {
		o.compactLimit = compact
		o.detailedLimit = detailed
	}
}

// WithStopOnFailure aborts remaining waves of a batch when any unit in
// the current wave fails.
func WithStopOnFailure(b bool) Option {
	return func(o *engineOptions) { o.stopOnFailure = b }
}

// WithInteraction sets the user-interaction adapter. Without one, a
// run that needs a critical answer fails instead of blocking forever.
func WithInteraction(ui interaction.UserInteraction) Option {
	return func(o *engineOptions) { o.ui = ui }
}

// WithStateStore sets the bookkeeping database.
func WithStateStore(db state.StateStore) Option {
	return func(o *engineOptions) { o.db = db }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithEmitterBuffer sets the event channel buffer size.
func WithEmitterBuffer(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.emitterBuffer = n
		}
	}
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}
