package registry

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/rgbfile"
)

// RecordingStatus reports what is known about a recording's length.
type RecordingStatus string

const (
	// StatusGrowing means no reader has seen the end yet; a producer may still
	// be appending.
	StatusGrowing RecordingStatus = "growing"
	// StatusComplete means a reader discovered the last frame.
	StatusComplete RecordingStatus = "complete"
)

// recordingNamespace seeds the deterministic recording IDs.
var recordingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://simviz/recordings"))

// Recording describes a container file known to the registry.
type Recording struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Path      string          `json:"path"`
	Width     uint64          `json:"width"`
	Height    uint64          `json:"height"`
	FrameSize int             `json:"frame_size"`
	Frames    int             `json:"frames"`
	SizeBytes int64           `json:"size_bytes"`
	Status    RecordingStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecordingID returns the stable ID for the recording at path. Registering
// the same file twice yields the same ID.
func RecordingID(path string) string {
	return uuid.NewSHA1(recordingNamespace, []byte(filepath.Clean(path))).String()
}

// Inspect reads the header of the container at path and describes it. Frames
// counts the complete frames present now.
func Inspect(path string) (*Recording, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("recording file")
		}
		return nil, errors.WrapIOError(err, "failed to open recording")
	}
	defer file.Close()

	header, err := rgbfile.ReadHeader(file)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		return nil, errors.WrapIOError(err, "failed to stat recording")
	}

	rec := &Recording{
		ID:        RecordingID(path),
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:      path,
		Width:     header.Width,
		Height:    header.Height,
		FrameSize: header.FrameSize(),
		SizeBytes: info.Size(),
		Status:    StatusGrowing,
	}
	rec.Frames = CompleteFrames(info.Size(), rec.FrameSize)
	return rec, nil
}

// CompleteFrames returns how many whole frames fit in a file of size bytes.
func CompleteFrames(size int64, frameSize int) int {
	if frameSize <= 0 || size <= rgbfile.HeaderSize {
		return 0
	}
	return int((size - rgbfile.HeaderSize) / int64(frameSize))
}
