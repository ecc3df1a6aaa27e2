// Package mutation turns bursts of document insertions into debounced rescans and
// handles the tags-changed invalidation path.
package mutation

import (
	"fmt"
	"time"

	"github.com/jonathan/addrlens/internal/eventloop"
	"github.com/jonathan/addrlens/internal/logger"
)

// DefaultWindow is the quiescence window after the last insertion.
const DefaultWindow = 500 * time.Millisecond

// Options tunes the coordinator.
type Options struct {
	// Window is the trailing-edge debounce delay. Every insertion restarts it.
	Window time.Duration
	// MaxDelay, when positive, forces a rescan that long after the first insertion
	// of a burst even if insertions keep arriving. Zero disables it.
	MaxDelay time.Duration
}

// Stats counts coordinator activity.
type Stats struct {
	Observed      int `json:"observed"`
	Scans         int `json:"scans"`
	Invalidations int `json:"invalidations"`
	Failures      int `json:"failures"`
}

// Coordinator schedules rescans. It must only be used from the scheduler's loop.
type Coordinator struct {
	sched      eventloop.Scheduler
	scan       func()
	invalidate func()
	opts       Options
	log        *logger.Logger

	debounce eventloop.Timer
	deadline eventloop.Timer
	stopped  bool
	stats    Stats
}

// New creates a coordinator. scan walks the document; invalidate clears every
// annotation and marker so the next scan starts fresh.
func New(sched eventloop.Scheduler, scan, invalidate func(), opts Options, log *logger.Logger) *Coordinator {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MaxDelay < 0 {
		opts.MaxDelay = 0
	}
	return &Coordinator{
		sched:      sched,
		scan:       scan,
		invalidate: invalidate,
		opts:       opts,
		log:        logger.OrNop(log),
	}
}

// Observe records n inserted nodes and (re)starts the debounce window.
func (c *Coordinator) Observe(n int) {
	if c.stopped || n <= 0 {
		return
	}
	c.stats.Observed += n

	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = c.sched.AfterFunc(c.opts.Window, c.fire)

	if c.opts.MaxDelay > 0 && c.deadline == nil {
		c.deadline = c.sched.AfterFunc(c.opts.MaxDelay, func() {
			c.log.Debug().Dur("max_delay", c.opts.MaxDelay).Msg("insertions kept arriving, forcing rescan")
			c.fire()
		})
	}
}

// ScanNow cancels any pending rescan and scans immediately.
func (c *Coordinator) ScanNow() {
	if c.stopped {
		return
	}
	c.cancel()
	c.run("scan", c.scan)
	c.stats.Scans++
}

// TagsChanged drops every annotation and rescans the whole document. It is the only
// path that reprocesses text that was already seen.
func (c *Coordinator) TagsChanged() {
	if c.stopped {
		return
	}
	c.cancel()
	c.run("invalidate", c.invalidate)
	c.stats.Invalidations++
	c.run("scan", c.scan)
	c.stats.Scans++
}

// Pending reports whether a rescan is scheduled.
func (c *Coordinator) Pending() bool {
	return c.debounce != nil || c.deadline != nil
}

// Stats returns a copy of the counters.
func (c *Coordinator) Stats() Stats {
	return c.stats
}

// Stop cancels the pending rescan. Later calls are ignored.
func (c *Coordinator) Stop() {
	c.cancel()
	c.stopped = true
}

func (c *Coordinator) fire() {
	c.cancel()
	if c.stopped {
		return
	}
	c.run("scan", c.scan)
	c.stats.Scans++
}

func (c *Coordinator) cancel() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

// run contains a panic in fn so a bad page never takes the loop down.
func (c *Coordinator) run(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.Failures++
			c.log.Error().Str("op", op).Str("panic", fmt.Sprint(r)).Msg("rescan failed")
		}
	}()
	fn()
}
