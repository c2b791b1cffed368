// Package playback turns a simviz container into an addressable frame
// sequence. An Engine reads sequentially while playing, repositions by offset
// after a seek or step, and learns the number of frames lazily: the first
// short read fixes the upper bound and pauses playback.
package playback

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/rgbfile"
)

// Frame is the most recently decoded frame. Data aliases the engine buffer
// and is only valid until the next Tick.
type Frame struct {
	Data  []byte
	Index int
	AtEnd bool
}

// Clone returns a copy of f that owns its data.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, Index: f.Index, AtEnd: f.AtEnd}
}

// State is a snapshot of the engine's position.
type State struct {
	Name       string `json:"name,omitempty"`
	Width      uint64 `json:"width"`
	Height     uint64 `json:"height"`
	FrameSize  int    `json:"frame_size"`
	Current    int    `json:"current"`
	UpperBound *int   `json:"upper_bound"`
	Paused     bool   `json:"paused"`
	AtEnd      bool   `json:"at_end"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for seeks and end-of-stream discovery.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithName labels the engine in logs and State.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// Engine is the playback state machine. All methods are safe for concurrent
// use; a Tick blocks commands for the duration of one read.
type Engine struct {
	mu sync.Mutex

	name   string
	src    io.ReadSeeker
	closer io.Closer
	header rgbfile.Header
	size   int

	// buf holds frame loaded; scratch receives reads so a short read never
	// clobbers the displayed frame.
	buf     []byte
	scratch []byte
	loaded  int

	current  int
	upper    int
	hasUpper bool
	paused   bool

	// pending is set by commands that moved current and require a read even
	// when the index did not change.
	pending bool
	// positioned reports that the stream sits at the start of frame loaded+1.
	positioned bool
	closed     bool

	logger logger.Logger
}

// Open opens the container at path, validates its header and loads frame 0.
// On failure the file is closed and the error is a format or IO AppError.
func Open(path string, opts ...Option) (*Engine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIOError(err, fmt.Sprintf("failed to open recording: %s", path))
	}

	opts = append([]Option{WithName(path)}, opts...)
	e, err := NewEngine(file, opts...)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return e, nil
}

// NewEngine reads the header from src and loads frame 0. If src is an
// io.Closer, Close releases it; on error src is left open for the caller.
func NewEngine(src io.ReadSeeker, opts ...Option) (*Engine, error) {
	e := &Engine{
		src:    src,
		logger: logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.name != "" {
		e.logger = e.logger.WithField("recording", e.name)
	}
	if c, ok := src.(io.Closer); ok {
		e.closer = c
	}

	header, err := rgbfile.ReadHeader(src)
	if err != nil {
		e.logger.WithError(err).Error("Rejected recording header")
		return nil, err
	}
	e.header = header
	e.size = header.FrameSize()
	e.buf = make([]byte, e.size)
	e.scratch = make([]byte, e.size)

	if _, err := io.ReadFull(src, e.buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.WrapFormatError(err, "recording has no complete first frame").WithDetails(map[string]interface{}{
				"frame_size": e.size,
			})
		}
		return nil, errors.WrapIOError(err, "failed to read first frame")
	}
	metrics.RecordFrameRead(e.size)
	e.positioned = true

	e.logger.WithFields(map[string]interface{}{
		"width":      header.Width,
		"height":     header.Height,
		"frame_size": e.size,
	}).Info("Recording opened")

	return e, nil
}

// Header returns the container header.
func (e *Engine) Header() rgbfile.Header {
	return e.header
}

// FrameSize returns the byte length of one frame.
func (e *Engine) FrameSize() int {
	return e.size
}

// Name returns the label given with WithName or Open.
func (e *Engine) Name() string {
	return e.name
}

// Tick advances one step of the state machine and reports whether a new frame
// was loaded. While playing the index moves forward by one, pinned at a known
// upper bound. Until the bound is known no read goes past the frame after the
// loaded one. A read that comes up short fixes the upper bound at the last
// complete frame and pauses playback; it is never reported as an error.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	target := e.current
	if !e.paused {
		target++
		if e.hasUpper && target > e.upper {
			target = e.upper
		}
	}
	if !e.hasUpper && target > e.loaded+1 {
		target = e.loaded + 1
	}

	if target == e.loaded && !e.pending {
		e.current = target
		return false
	}
	e.pending = false
	e.current = target

	start := time.Now()
	defer func() {
		metrics.ObserveTick(time.Since(start).Seconds())
	}()

	if e.paused || !e.positioned || target != e.loaded+1 {
		if err := e.seekTo(target); err != nil {
			e.endOfStream(target, err)
			return false
		}
	}

	if _, err := io.ReadFull(e.src, e.scratch); err != nil {
		e.endOfStream(target, err)
		return false
	}

	e.buf, e.scratch = e.scratch, e.buf
	e.loaded = target
	e.positioned = true
	metrics.RecordFrameRead(e.size)
	return true
}

func (e *Engine) seekTo(index int) error {
	offset := e.header.Offset(index)
	if _, err := e.src.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	metrics.IncrementSeek()
	e.logger.WithFields(map[string]interface{}{
		"index":  index,
		"offset": offset,
	}).Debug("Repositioned stream")
	return nil
}

// endOfStream handles a read of frame index that failed or came up short.
// The displayed frame is kept. Only a failure at the frame after it, with the
// bound still unknown, marks the end of the recording; anything else is an
// I/O error inside frames already seen.
func (e *Engine) endOfStream(index int, err error) {
	e.positioned = false
	e.paused = true
	e.current = e.loaded

	if e.hasUpper || index != e.loaded+1 {
		e.logger.WithError(err).WithField("index", index).Warn("Failed to read frame")
		return
	}

	e.upper = e.loaded
	e.hasUpper = true
	metrics.IncrementEndDiscovered()
	entry := e.logger.WithField("upper_bound", e.upper)
	if err != io.EOF && err != io.ErrUnexpectedEOF {
		entry = entry.WithError(err)
	}
	entry.Info("Reached end of recording")
}

// PollFrame returns the frame loaded by the last Tick without blocking on I/O.
func (e *Engine) PollFrame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Frame{
		Data:  e.buf,
		Index: e.loaded,
		AtEnd: e.hasUpper && e.loaded == e.upper,
	}
}

// CopyFrame is PollFrame with a private copy of the frame bytes.
func (e *Engine) CopyFrame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Frame{
		Data:  e.buf,
		Index: e.loaded,
		AtEnd: e.hasUpper && e.loaded == e.upper,
	}.Clone()
}

// Current returns the index the engine is positioned on.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// UpperBound returns the index of the last complete frame once a short read
// has revealed it.
func (e *Engine) UpperBound() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upper, e.hasUpper
}

// AtEnd reports whether the loaded frame is the last one in the recording.
func (e *Engine) AtEnd() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasUpper && e.loaded == e.upper
}

// Paused reports whether playback is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{
		Name:      e.name,
		Width:     e.header.Width,
		Height:    e.header.Height,
		FrameSize: e.size,
		Current:   e.current,
		Paused:    e.paused,
		AtEnd:     e.hasUpper && e.current == e.upper,
	}
	if e.hasUpper {
		upper := e.upper
		s.UpperBound = &upper
	}
	return s
}

// Handle applies cmd. Commands on a closed engine are ignored.
func (e *Engine) Handle(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	metrics.IncrementCommand(cmd.Type.String())

	switch cmd.Type {
	case CommandTogglePause:
		e.paused = !e.paused
	case CommandSetPaused:
		e.paused = cmd.Paused
	case CommandStepForward:
		e.stepForward()
	case CommandStepBackward:
		e.stepBackward()
	case CommandSeek:
		e.seek(cmd.Index)
	default:
		e.logger.WithField("command", cmd.String()).Warn("Ignoring unknown playback command")
	}
}

// TogglePause flips between playing and paused.
func (e *Engine) TogglePause() { e.Handle(TogglePause()) }

// SetPaused pauses or resumes playback.
func (e *Engine) SetPaused(paused bool) { e.Handle(SetPaused(paused)) }

// StepForward moves one frame ahead while paused.
func (e *Engine) StepForward() { e.Handle(StepForward()) }

// StepBackward moves one frame back while paused.
func (e *Engine) StepBackward() { e.Handle(StepBackward()) }

// Seek moves to index while paused, clamped to the frames known to exist.
func (e *Engine) Seek(index int) { e.Handle(Seek(index)) }

func (e *Engine) stepForward() {
	if !e.paused {
		return
	}
	if e.hasUpper && e.current >= e.upper {
		return
	}
	// With the bound unknown only the frame after the loaded one may be tried.
	if !e.hasUpper && e.current > e.loaded {
		return
	}
	e.current++
	e.pending = true
}

func (e *Engine) stepBackward() {
	if !e.paused || e.current == 0 {
		return
	}
	e.current--
	e.pending = true
}

func (e *Engine) seek(index int) {
	if !e.paused {
		return
	}
	limit := e.current
	if e.loaded > limit {
		limit = e.loaded
	}
	if e.hasUpper {
		limit = e.upper
	}
	if index > limit {
		index = limit
	}
	if index < 0 {
		index = 0
	}
	e.current = index
	e.pending = true
}

// Close releases the stream and the frame buffers. It is safe to call more
// than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.buf = nil
	e.scratch = nil

	if e.closer != nil {
		if err := e.closer.Close(); err != nil {
			return errors.WrapIOError(err, "failed to close recording")
		}
	}
	e.logger.Debug("Recording closed")
	return nil
}
