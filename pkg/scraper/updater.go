package scraper

import (
	"context"
	"sync"
	"time"

	"snapdl/pkg/logger"
)

// State of the update loop
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// PassFunc runs one pass over all accounts
type PassFunc func(ctx context.Context) error

// UpdaterOptions configure the loop
type UpdaterOptions struct {
	// Enabled repeats passes; otherwise Run performs exactly one
	Enabled  bool
	Interval time.Duration
	// MaxPasses bounds the number of passes, 0 means unbounded
	MaxPasses int
	Clock     Clock
}

// Updater runs passes until cancelled
type Updater struct {
	pass   PassFunc
	opts   UpdaterOptions
	logger logger.Logger

	mu     sync.Mutex
	state  State
	passes int
}

// NewUpdater creates an update loop around pass
func NewUpdater(pass PassFunc, opts UpdaterOptions, log logger.Logger) *Updater {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	return &Updater{
		pass:   pass,
		opts:   opts,
		logger: log.WithField("component", "updater"),
	}
}

// State returns the current state
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Passes returns the number of passes started so far
func (u *Updater) Passes() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.passes
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// Run performs passes. Without Enabled it returns the error of the single
// pass. With Enabled pass errors are logged and the loop sleeps Interval
// before the next pass; cancellation ends it with a nil error.
func (u *Updater) Run(ctx context.Context) error {
	u.setState(StateRunning)
	defer u.setState(StateStopped)

	logger.LogComponentStart(u.logger, "updater", map[string]interface{}{
		"enabled":    u.opts.Enabled,
		"interval":   u.opts.Interval,
		"max_passes": u.opts.MaxPasses,
	})
	defer logger.LogComponentStop(u.logger, "updater", "done")

	for {
		if ctx.Err() != nil {
			return nil
		}

		u.mu.Lock()
		u.passes++
		n := u.passes
		u.mu.Unlock()

		err := u.pass(ctx)
		if !u.opts.Enabled {
			return err
		}
		if err != nil {
			u.logger.WithError(err).ErrorWithFields("pass failed", map[string]interface{}{
				"pass": n,
			})
		}
		if u.opts.MaxPasses > 0 && n >= u.opts.MaxPasses {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		u.logger.InfoWithFields("waiting for next pass", map[string]interface{}{
			"pass":     n,
			"next_at":  u.opts.Clock.Now().Add(u.opts.Interval),
			"interval": u.opts.Interval,
		})
		select {
		case <-ctx.Done():
			return nil
		case <-u.opts.Clock.After(u.opts.Interval):
		}
	}
}
