// Package rgbfile implements the simviz frame container: a fixed 20 byte
// little-endian header followed by back-to-back RGB frames of identical size.
//
//	offset  size  field
//	0       4     signature (0xCC10ADDE)
//	4       8     width  (u64)
//	12      8     height (u64)
//	20      ...   frame 0, frame 1, ... (width*height*3 bytes each)
//
// Frames are packed RGB triplets, row-major, without row padding. Because
// every frame has the same size, frame i is reachable in constant time at
// HeaderSize + i*FrameSize. The format carries no orientation flag: row 0 is
// the bottom scanline, so renderers flip vertically.
package rgbfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/zsiec/simviz/internal/errors"
)

const (
	// Signature identifies a simviz container.
	Signature uint32 = 0xCC10ADDE

	SignatureSize = 4
	WidthSize     = 8
	HeightSize    = 8

	// HeaderSize is the byte offset of frame 0.
	HeaderSize = SignatureSize + WidthSize + HeightSize

	// BytesPerPixel is the size of one packed RGB triplet.
	BytesPerPixel = 3
)

// maxFrameSize keeps a frame addressable as a single []byte.
const maxFrameSize = math.MaxInt32

// Header is the fixed container prefix.
type Header struct {
	Signature uint32
	Width     uint64
	Height    uint64
}

// NewHeader returns a header with the simviz signature.
func NewHeader(width, height uint64) Header {
	return Header{Signature: Signature, Width: width, Height: height}
}

// Validate reports a format error for a header no reader can play.
func (h Header) Validate() error {
	if h.Signature != Signature {
		return errors.NewFormatError("invalid file signature").WithDetails(map[string]interface{}{
			"signature": fmt.Sprintf("0x%08X", h.Signature),
			"expected":  fmt.Sprintf("0x%08X", Signature),
		})
	}
	if h.Width == 0 || h.Height == 0 {
		return errors.NewFormatError("simulation space has a zero dimension").WithDetails(map[string]interface{}{
			"width":  h.Width,
			"height": h.Height,
		})
	}
	if _, ok := frameSize(h.Width, h.Height); !ok {
		return errors.NewFormatError("frame size overflows").WithDetails(map[string]interface{}{
			"width":  h.Width,
			"height": h.Height,
		})
	}
	return nil
}

// FrameSize returns width*height*3. It returns 0 for headers that fail
// Validate.
func (h Header) FrameSize() int {
	n, ok := frameSize(h.Width, h.Height)
	if !ok {
		return 0
	}
	return n
}

// Offset returns the byte offset of frame index.
func (h Header) Offset(index int) int64 {
	return HeaderSize + int64(index)*int64(h.FrameSize())
}

func frameSize(width, height uint64) (int, bool) {
	hi, pixels := bits.Mul64(width, height)
	if hi != 0 {
		return 0, false
	}
	hi, size := bits.Mul64(pixels, BytesPerPixel)
	if hi != 0 || size > maxFrameSize {
		return 0, false
	}
	return int(size), true
}

// MarshalBinary encodes the header in its on-disk layout.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Signature)
	binary.LittleEndian.PutUint64(buf[4:12], h.Width)
	binary.LittleEndian.PutUint64(buf[12:20], h.Height)
	return buf, nil
}

// UnmarshalBinary decodes the on-disk layout without validating it.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return errors.NewFormatError("header truncated").WithDetails(map[string]interface{}{
			"bytes": len(data),
		})
	}
	h.Signature = binary.LittleEndian.Uint32(data[0:4])
	h.Width = binary.LittleEndian.Uint64(data[4:12])
	h.Height = binary.LittleEndian.Uint64(data[12:20])
	return nil
}

// WriteHeader writes h to w.
func WriteHeader(w io.Writer, h Header) error {
	buf, _ := h.MarshalBinary()
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates a header from r. A stream too short to hold
// a header is a format error, as is any header that fails Validate.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, errors.WrapFormatError(err, "header truncated")
		}
		return Header{}, errors.WrapIOError(err, "failed to read header")
	}

	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// IsFormatError reports whether err marks an unplayable container.
func IsFormatError(err error) bool {
	return errors.IsType(err, errors.ErrorTypeFormat)
}

// IsIOError reports whether err is a container create or write failure.
func IsIOError(err error) bool {
	return errors.IsType(err, errors.ErrorTypeIO)
}
