package rgbfile

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
)

// ErrFrameSizeMismatch is returned by Append for a slice that is not exactly
// one frame long. Writing it would shift every later frame off its offset.
var ErrFrameSizeMismatch = stderrors.New("frame length does not match header frame size")

// Writer appends frames to a container, one per simulation step.
//
// A Writer that failed to create its file or to write is broken: the failure
// is reported once and every later Append is a silent no-op. Producers that
// record for optional playback keep running when the recording cannot be
// made.
type Writer struct {
	mu        sync.Mutex
	header    Header
	frameSize int
	bw        *bufio.Writer
	closer    io.Closer
	frames    int
	broken    bool
	closed    bool
	logger    logger.Logger
}

// Create creates path and writes the header for a width x height simulation.
// On failure it returns the error together with a broken Writer, so callers
// may log the error and keep appending without further checks.
func Create(path string, width, height uint64, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("recording", path)

	header := NewHeader(width, height)
	if err := header.Validate(); err != nil {
		metrics.IncrementWriterError("header")
		log.WithError(err).Error("Refusing to record with invalid dimensions")
		return brokenWriter(header, log), err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		metrics.IncrementWriterError("create")
		appErr := errors.WrapIOError(err, fmt.Sprintf("failed to open file: %s", path))
		log.WithError(err).Error("Failed to open recording")
		return brokenWriter(header, log), appErr
	}

	w, err := newWriter(file, file, header, log)
	if err != nil {
		_ = file.Close()
		w.closer = nil
		return w, err
	}
	return w, nil
}

// NewWriter writes the header to dst and returns a Writer appending to it.
// If dst is an io.Closer, Close closes it.
func NewWriter(dst io.Writer, width, height uint64, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}
	header := NewHeader(width, height)
	if err := header.Validate(); err != nil {
		metrics.IncrementWriterError("header")
		return brokenWriter(header, log), err
	}
	closer, _ := dst.(io.Closer)
	return newWriter(dst, closer, header, log)
}

func newWriter(dst io.Writer, closer io.Closer, header Header, log logger.Logger) (*Writer, error) {
	w := &Writer{
		header:    header,
		frameSize: header.FrameSize(),
		bw:        bufio.NewWriterSize(dst, 64*1024),
		closer:    closer,
		logger:    log,
	}

	if err := WriteHeader(w.bw, header); err != nil {
		return w, w.fail("header", err)
	}
	// The header is flushed immediately so a reader opening the file while
	// the producer runs never sees a partial header.
	if err := w.bw.Flush(); err != nil {
		return w, w.fail("header", err)
	}

	log.WithFields(map[string]interface{}{
		"width":      header.Width,
		"height":     header.Height,
		"frame_size": w.frameSize,
	}).Debug("Recording header written")

	return w, nil
}

func brokenWriter(header Header, log logger.Logger) *Writer {
	return &Writer{header: header, broken: true, logger: log}
}

// fail marks the writer broken and converts err to an IO error.
func (w *Writer) fail(op string, err error) error {
	w.broken = true
	metrics.IncrementWriterError(op)
	w.logger.WithError(err).WithField("op", op).Error("Recording write failed, further frames are dropped")
	return errors.WrapIOError(err, fmt.Sprintf("failed to write %s", op))
}

// Header returns the container header.
func (w *Writer) Header() Header {
	return w.header
}

// FrameSize returns the byte length Append expects.
func (w *Writer) FrameSize() int {
	return w.frameSize
}

// Frames returns the number of frames appended so far.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Broken reports whether the writer has stopped recording.
func (w *Writer) Broken() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.broken
}

// Append writes frame as the next sequential frame. Payload bytes are not
// inspected. Append on a broken or closed writer is a no-op.
func (w *Writer) Append(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken || w.closed {
		return nil
	}
	if len(frame) != w.frameSize {
		return errors.Wrap(ErrFrameSizeMismatch, errors.ErrorTypeValidation, "frame rejected", http.StatusBadRequest).WithDetails(map[string]interface{}{
			"expected": w.frameSize,
			"actual":   len(frame),
		})
	}

	if _, err := w.bw.Write(frame); err != nil {
		return w.fail("frame", err)
	}
	w.frames++
	metrics.RecordFrameWritten(len(frame))
	return nil
}

// Flush pushes buffered frames to the file so concurrent readers see them.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken || w.closed {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		return w.fail("flush", err)
	}
	return nil
}

// Close flushes buffered frames and releases the file. It is safe to call
// more than once; only the first call does work.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var flushErr error
	if !w.broken && w.bw != nil {
		if err := w.bw.Flush(); err != nil {
			flushErr = w.fail("flush", err)
		}
	}

	if w.closer != nil {
		if err := w.closer.Close(); err != nil && flushErr == nil {
			return errors.WrapIOError(err, "failed to close recording")
		}
	}

	w.logger.WithField("frames", w.frames).Debug("Recording closed")
	return flushErr
}
