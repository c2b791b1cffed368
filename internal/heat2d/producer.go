package heat2d

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
)

// FrameSink receives rendered frames. *rgbfile.Writer implements it.
type FrameSink interface {
	Append(frame []byte) error
}

// flusher is implemented by sinks that buffer. Flushing after every frame lets
// a viewer follow the recording while it grows.
type flusher interface {
	Flush() error
}

// Config describes one simulation run.
type Config struct {
	Size     int
	MaxTime  int
	HeatTime int
	// Interval is the number of steps between recorded frames. The last step
	// is always recorded; zero records only the last step.
	Interval int
}

// Validate rejects runs that cannot produce frames.
func (c Config) Validate() error {
	if c.Size < 3 {
		return fmt.Errorf("size must be at least 3, got %d", c.Size)
	}
	if c.MaxTime <= 0 {
		return fmt.Errorf("max_time must be positive")
	}
	if c.HeatTime < 0 || c.HeatTime > c.MaxTime {
		return fmt.Errorf("heat_time must be within [0, max_time]")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval cannot be negative")
	}
	return nil
}

// Records reports whether step t produces a frame.
func (c Config) Records(t int) bool {
	if t == c.MaxTime-1 {
		return true
	}
	return c.Interval > 0 && t%c.Interval == 0
}

// FrameCount returns how many frames a full run records.
func (c Config) FrameCount() int {
	n := 0
	for t := 0; t < c.MaxTime; t++ {
		if c.Records(t) {
			n++
		}
	}
	return n
}

// Producer runs the plate simulation and records frames.
type Producer struct {
	cfg      Config
	plate    *Plate
	colormap *Colormap
	frames   FrameSink
	text     io.Writer
	logger   logger.Logger
}

// NewProducer prepares a run writing frames to sink. text, when non-nil,
// receives a text dump at every recorded step.
func NewProducer(cfg Config, sink FrameSink, text io.Writer, log logger.Logger) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	plate, err := NewPlate(cfg.Size, cfg.HeatTime)
	if err != nil {
		return nil, err
	}
	return &Producer{
		cfg:      cfg,
		plate:    plate,
		colormap: NewColormap(SourceTemperature),
		frames:   sink,
		text:     text,
		logger:   log.WithField("component", "heat2d"),
	}, nil
}

// Plate returns the simulated plate.
func (p *Producer) Plate() *Plate {
	return p.plate
}

// Run steps the simulation to completion, checking ctx between steps. It
// returns the number of frames recorded. Recording failures are logged by
// the sink and do not stop the simulation; a rejected frame does.
func (p *Producer) Run(ctx context.Context) (int, error) {
	frame := make([]byte, p.cfg.Size*p.cfg.Size*3)
	recorded := 0
	started := time.Now()

	p.logger.WithFields(map[string]interface{}{
		"size":      p.cfg.Size,
		"max_time":  p.cfg.MaxTime,
		"heat_time": p.cfg.HeatTime,
		"interval":  p.cfg.Interval,
	}).Info("Simulation started")

	for t := 0; t < p.cfg.MaxTime; t++ {
		if err := ctx.Err(); err != nil {
			p.logger.WithField("time", t).Warn("Simulation cancelled")
			return recorded, err
		}

		stepStart := time.Now()
		p.plate.Prepare()

		if p.cfg.Records(t) {
			p.plate.Render(frame, p.colormap)
			if err := p.frames.Append(frame); err != nil {
				return recorded, err
			}
			if f, ok := p.frames.(flusher); ok {
				// The sink reports its own write failures.
				_ = f.Flush()
			}
			if p.text != nil {
				if err := p.plate.WriteText(p.text); err != nil {
					return recorded, fmt.Errorf("failed to write text dump: %w", err)
				}
			}
			recorded++
			p.logger.WithField("time", t).Debug("Frame recorded")
		}

		p.plate.Step()
		metrics.RecordSimulationStep("heat2d", time.Since(stepStart).Seconds())
	}

	p.logger.WithFields(map[string]interface{}{
		"frames":   recorded,
		"duration": time.Since(started).String(),
	}).Info("Simulation finished")

	return recorded, nil
}
