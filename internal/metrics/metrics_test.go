package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFrameWritten(t *testing.T) {
	initialFrames := testutil.ToFloat64(writerFramesTotal)
	initialBytes := testutil.ToFloat64(writerBytesTotal)

	RecordFrameWritten(12)
	RecordFrameWritten(12)

	assert.Equal(t, initialFrames+2, testutil.ToFloat64(writerFramesTotal))
	assert.Equal(t, initialBytes+24, testutil.ToFloat64(writerBytesTotal))
}

func TestIncrementWriterError(t *testing.T) {
	initial := testutil.ToFloat64(writerErrorsTotal.WithLabelValues("frame"))
	other := testutil.ToFloat64(writerErrorsTotal.WithLabelValues("create"))

	IncrementWriterError("frame")
	IncrementWriterError("frame")

	assert.Equal(t, initial+2, testutil.ToFloat64(writerErrorsTotal.WithLabelValues("frame")))
	assert.Equal(t, other, testutil.ToFloat64(writerErrorsTotal.WithLabelValues("create")), "labels are independent")
}

func TestPlaybackCounters(t *testing.T) {
	initialFrames := testutil.ToFloat64(playbackFramesReadTotal)
	initialBytes := testutil.ToFloat64(playbackBytesReadTotal)
	initialSeeks := testutil.ToFloat64(playbackSeeksTotal)
	initialEOF := testutil.ToFloat64(playbackEOFTotal)
	initialDropped := testutil.ToFloat64(playbackFramesDroppedTotal)
	initialCmd := testutil.ToFloat64(playbackCommandsTotal.WithLabelValues("seek"))

	RecordFrameRead(300)
	IncrementSeek()
	IncrementEndDiscovered()
	IncrementFramesDropped()
	IncrementCommand("seek")

	assert.Equal(t, initialFrames+1, testutil.ToFloat64(playbackFramesReadTotal))
	assert.Equal(t, initialBytes+300, testutil.ToFloat64(playbackBytesReadTotal))
	assert.Equal(t, initialSeeks+1, testutil.ToFloat64(playbackSeeksTotal))
	assert.Equal(t, initialEOF+1, testutil.ToFloat64(playbackEOFTotal))
	assert.Equal(t, initialDropped+1, testutil.ToFloat64(playbackFramesDroppedTotal))
	assert.Equal(t, initialCmd+1, testutil.ToFloat64(playbackCommandsTotal.WithLabelValues("seek")))
}

func TestObserveTick(t *testing.T) {
	var before dto.Metric
	require.NoError(t, playbackTickDuration.Write(&before))

	ObserveTick(0.001)
	ObserveTick(0.002)

	var after dto.Metric
	require.NoError(t, playbackTickDuration.Write(&after))
	assert.Equal(t, before.Histogram.GetSampleCount()+2, after.Histogram.GetSampleCount())
}

func TestGauges(t *testing.T) {
	for _, count := range []int{0, 5, 2, 0} {
		SetActiveSessions(count)
		assert.Equal(t, float64(count), testutil.ToFloat64(sessionsActive))

		SetRegisteredRecordings(count)
		assert.Equal(t, float64(count), testutil.ToFloat64(recordingsRegistered))
	}
}

func TestRecordSimulationStep(t *testing.T) {
	initial := testutil.ToFloat64(simulationStepsTotal.WithLabelValues("heat2d"))

	durations := []float64{0.0001, 0.0002, 0.0003}
	for _, d := range durations {
		RecordSimulationStep("heat2d", d)
	}

	assert.Equal(t, initial+3, testutil.ToFloat64(simulationStepsTotal.WithLabelValues("heat2d")))

	histogram := simulationStepDuration.WithLabelValues("heat2d").(prometheus.Histogram)
	var m dto.Metric
	require.NoError(t, histogram.Write(&m))
	assert.GreaterOrEqual(t, m.Histogram.GetSampleCount(), uint64(len(durations)))
}

func TestGoroutineTracking(t *testing.T) {
	component := "test_runner"

	initialCreated := testutil.ToFloat64(goroutinesCreated.WithLabelValues(component))
	initialActive := testutil.ToFloat64(activeGoroutines.WithLabelValues(component))

	IncrementGoroutineCreated(component)
	IncrementGoroutineCreated(component)
	IncrementGoroutineDestroyed(component)

	assert.Equal(t, initialCreated+2, testutil.ToFloat64(goroutinesCreated.WithLabelValues(component)))
	assert.Equal(t, initialActive+1, testutil.ToFloat64(activeGoroutines.WithLabelValues(component)))
}

func TestConcurrentMetricsUpdates(t *testing.T) {
	initialFrames := testutil.ToFloat64(playbackFramesReadTotal)
	initialSeeks := testutil.ToFloat64(playbackSeeksTotal)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordFrameRead(3)
				IncrementSeek()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, initialFrames+1000, testutil.ToFloat64(playbackFramesReadTotal))
	assert.Equal(t, initialSeeks+1000, testutil.ToFloat64(playbackSeeksTotal))
}
