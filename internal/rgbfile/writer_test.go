package rgbfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/simviz/internal/logger"
)

func frameOf(size int, value byte) []byte {
	return bytes.Repeat([]byte{value}, size)
}

func TestCreateWritesHeaderAndFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.simviz")

	w, err := Create(path, 2, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, w.FrameSize())

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append(frameOf(12, byte(i))))
	}
	assert.Equal(t, 3, w.Frames())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, HeaderSize+3*12)

	h, err := ReadHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.Width)
	assert.Equal(t, uint64(2), h.Height)

	for i := 0; i < 3; i++ {
		off := h.Offset(i)
		assert.Equal(t, frameOf(12, byte(i)), data[off:off+12], "frame %d", i)
	}
}

func TestCreateZeroFramesIsHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.simviz")

	w, err := Create(path, 5, 7, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(HeaderSize), info.Size())
}

func TestCreateFailureIsSilentAfterReport(t *testing.T) {
	base, hook := test.NewNullLogger()
	log := logger.FromLogrus(base)

	path := filepath.Join(t.TempDir(), "missing", "dir", "out.simviz")
	w, err := Create(path, 2, 2, log)
	require.Error(t, err)
	require.NotNil(t, w)
	assert.True(t, IsIOError(err))
	assert.True(t, w.Broken())

	errorEntries := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorEntries++
		}
	}
	assert.Equal(t, 1, errorEntries)

	hook.Reset()
	for i := 0; i < 5; i++ {
		assert.NoError(t, w.Append(frameOf(12, 1)))
	}
	assert.NoError(t, w.Flush())
	assert.NoError(t, w.Close())
	assert.Equal(t, 0, w.Frames())
	assert.Empty(t, hook.AllEntries())
}

func TestCreateRejectsZeroDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.simviz")
	w, err := Create(path, 0, 2, nil)
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.True(t, w.Broken())
	assert.NoError(t, w.Append([]byte{}))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppendRejectsWrongLength(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 2, 2, nil)
	require.NoError(t, err)

	err = w.Append(frameOf(11, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameSizeMismatch))
	assert.False(t, w.Broken(), "a rejected frame does not break the writer")

	require.NoError(t, w.Append(frameOf(12, 9)))
	require.NoError(t, w.Flush())
	assert.Equal(t, HeaderSize+12, buf.Len())
}

func TestNewWriterFlushesHeaderImmediately(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, 3, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, buf.Len())
}

type closeCounter struct {
	bytes.Buffer
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestCloseIsIdempotent(t *testing.T) {
	dst := &closeCounter{}
	w, err := NewWriter(dst, 1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte{1, 2, 3}))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, dst.closes)
	assert.Equal(t, HeaderSize+3, dst.Len())

	assert.NoError(t, w.Append([]byte{4, 5, 6}), "append after close is a no-op")
	assert.Equal(t, HeaderSize+3, dst.Len())
}

type limitedWriter struct {
	remaining int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > l.remaining {
		n := l.remaining
		l.remaining = 0
		return n, io.ErrShortWrite
	}
	l.remaining -= len(p)
	return len(p), nil
}

func TestWriteFailureBreaksWriter(t *testing.T) {
	dst := &limitedWriter{remaining: HeaderSize + 3}
	w, err := NewWriter(dst, 1, 1, nil)
	require.NoError(t, err)

	require.NoError(t, w.Append([]byte{1, 2, 3}))
	require.NoError(t, w.Append([]byte{4, 5, 6}))

	err = w.Flush()
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.True(t, w.Broken())

	assert.NoError(t, w.Append([]byte{7, 8, 9}))
	assert.NoError(t, w.Close())
}
