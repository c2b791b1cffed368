package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
)

var (
	// ErrRunnerStarted indicates Run was called twice
	ErrRunnerStarted = errors.New("runner already started")

	// ErrCommandQueueFull indicates Send found no room for the command
	ErrCommandQueueFull = errors.New("command queue full")
)

// RunnerConfig controls pacing and buffering of a Runner.
type RunnerConfig struct {
	// Rate is the number of ticks per second while playing. Zero or less
	// ticks as fast as frames can be read.
	Rate float64
	// FrameQueue is the number of decoded frames held for the consumer. When
	// full, the oldest frame is dropped.
	FrameQueue int
	// CommandQueue is the number of commands buffered by Send.
	CommandQueue int
}

// Runner drives an Engine on its own goroutine and publishes copies of each
// decoded frame. While playing it ticks at the configured rate; while paused,
// or playing at the last frame, it waits for a command and ticks right after
// applying it.
type Runner struct {
	engine   *Engine
	limiter  *rate.Limiter
	commands chan Command
	frames   chan Frame
	started  atomic.Bool
	logger   logger.Logger

	// owned by the Run goroutine
	lastIndex int
	lastAtEnd bool
}

// NewRunner wraps engine. The runner does not close the engine.
func NewRunner(engine *Engine, cfg RunnerConfig, log logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNullLogger()
	}
	if cfg.FrameQueue < 1 {
		cfg.FrameQueue = 1
	}
	if cfg.CommandQueue < 1 {
		cfg.CommandQueue = 16
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Runner{
		engine:   engine,
		limiter:  rate.NewLimiter(limit, 1),
		commands: make(chan Command, cfg.CommandQueue),
		frames:   make(chan Frame, cfg.FrameQueue),
		logger:   log.WithField("component", "playback_runner"),
	}
}

// Engine returns the driven engine.
func (r *Runner) Engine() *Engine {
	return r.engine
}

// Frames returns the channel decoded frames are published on.
func (r *Runner) Frames() <-chan Frame {
	return r.frames
}

// Latest returns the next ready frame, or false when none is ready. It never
// blocks.
func (r *Runner) Latest() (Frame, bool) {
	select {
	case f := <-r.frames:
		return f, true
	default:
		return Frame{}, false
	}
}

// Send queues cmd for the run loop without blocking.
func (r *Runner) Send(cmd Command) error {
	select {
	case r.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Run publishes the current frame and then drives the engine until ctx is
// done. It returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrRunnerStarted
	}

	metrics.IncrementGoroutineCreated("playback_runner")
	defer metrics.IncrementGoroutineDestroyed("playback_runner")

	r.logger.Debug("Playback runner started")
	defer r.logger.Debug("Playback runner stopped")

	r.publish(r.engine.CopyFrame())

	for {
		if r.idle() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd := <-r.commands:
				r.apply(cmd)
			}
			continue
		}

		reservation := r.limiter.Reserve()
		timer := time.NewTimer(reservation.Delay())

		select {
		case <-ctx.Done():
			timer.Stop()
			reservation.Cancel()
			return ctx.Err()
		case cmd := <-r.commands:
			timer.Stop()
			reservation.Cancel()
			r.apply(cmd)
		case <-timer.C:
			r.tick()
		}
	}
}

// idle reports that a tick cannot load anything until a command arrives:
// playback is paused or already sits on the last frame.
func (r *Runner) idle() bool {
	return r.engine.Paused() || r.engine.AtEnd()
}

// apply handles cmd and, when it leaves the engine paused, ticks immediately
// so single steps are not throttled.
func (r *Runner) apply(cmd Command) {
	r.engine.Handle(cmd)
	if r.engine.Paused() {
		r.tick()
	}
}

// tick publishes a frame when one was loaded or when the end of the
// recording was discovered without a new frame.
func (r *Runner) tick() {
	if !r.engine.Tick() {
		head := r.engine.PollFrame()
		if head.Index == r.lastIndex && head.AtEnd == r.lastAtEnd {
			return
		}
	}
	r.publish(r.engine.CopyFrame())
}

// publish delivers f, evicting the oldest queued frame when the consumer is
// behind. Run is the only sender.
func (r *Runner) publish(f Frame) {
	r.lastIndex, r.lastAtEnd = f.Index, f.AtEnd
	for {
		select {
		case r.frames <- f:
			return
		default:
		}

		select {
		case <-r.frames:
			metrics.IncrementFramesDropped()
		default:
		}
	}
}

// State returns a snapshot of the driven engine.
func (r *Runner) State() State {
	return r.engine.State()
}
