package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	writerFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_writer_frames_total",
		Help: "Total frames appended to recordings",
	})

	writerBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_writer_bytes_total",
		Help: "Total frame bytes appended to recordings",
	})

	writerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simviz_writer_errors_total",
		Help: "Recording failures by operation",
	}, []string{"op"})

	// Playback metrics
	playbackFramesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_playback_frames_read_total",
		Help: "Total frames decoded by playback engines",
	})

	playbackBytesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_playback_bytes_read_total",
		Help: "Total frame bytes decoded by playback engines",
	})

	playbackSeeksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_playback_seeks_total",
		Help: "Total repositionings of the frame stream",
	})

	playbackEOFTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_playback_end_discovered_total",
		Help: "Times a playback engine discovered the last frame by a short read",
	})

	playbackCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simviz_playback_commands_total",
		Help: "Playback commands handled by kind",
	}, []string{"command"})

	playbackFramesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simviz_playback_frames_dropped_total",
		Help: "Decoded frames discarded because the consumer fell behind",
	})

	playbackTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simviz_playback_tick_duration_seconds",
		Help:    "Time spent positioning and decoding one frame",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
	})

	// Session metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simviz_sessions_active",
		Help: "Number of open playback sessions",
	})

	recordingsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simviz_recordings_registered",
		Help: "Number of recordings known to the registry",
	})

	// Producer metrics
	simulationStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simviz_simulation_steps_total",
		Help: "Total simulation steps computed",
	}, []string{"simulation"})

	simulationStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simviz_simulation_step_duration_seconds",
		Help:    "Time spent computing one simulation step",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs to ~4s
	}, []string{"simulation"})

	// Debug metrics
	goroutinesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_goroutines_created_total",
		Help: "Total number of goroutines created",
	}, []string{"component"})

	goroutinesDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "debug_goroutines_destroyed_total",
		Help: "Total number of goroutines destroyed",
	}, []string{"component"})

	activeGoroutines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "debug_goroutines_active",
		Help: "Number of active goroutines",
	}, []string{"component"})
)

// RecordFrameWritten counts one appended frame of the given size
func RecordFrameWritten(bytes int) {
	writerFramesTotal.Inc()
	writerBytesTotal.Add(float64(bytes))
}

// IncrementWriterError counts a recording failure during op
func IncrementWriterError(op string) {
	writerErrorsTotal.WithLabelValues(op).Inc()
}

// RecordFrameRead counts one decoded frame of the given size
func RecordFrameRead(bytes int) {
	playbackFramesReadTotal.Inc()
	playbackBytesReadTotal.Add(float64(bytes))
}

// IncrementSeek counts a stream repositioning
func IncrementSeek() {
	playbackSeeksTotal.Inc()
}

// IncrementEndDiscovered counts a short read that fixed an upper bound
func IncrementEndDiscovered() {
	playbackEOFTotal.Inc()
}

// IncrementCommand counts a handled playback command
func IncrementCommand(command string) {
	playbackCommandsTotal.WithLabelValues(command).Inc()
}

// IncrementFramesDropped counts frames evicted from a full frame queue
func IncrementFramesDropped() {
	playbackFramesDroppedTotal.Inc()
}

// ObserveTick records how long one tick took, in seconds
func ObserveTick(seconds float64) {
	playbackTickDuration.Observe(seconds)
}

// SetActiveSessions sets the number of open sessions
func SetActiveSessions(count int) {
	sessionsActive.Set(float64(count))
}

// SetRegisteredRecordings sets the number of registered recordings
func SetRegisteredRecordings(count int) {
	recordingsRegistered.Set(float64(count))
}

// RecordSimulationStep counts one step of simulation and its duration
func RecordSimulationStep(simulation string, seconds float64) {
	simulationStepsTotal.WithLabelValues(simulation).Inc()
	simulationStepDuration.WithLabelValues(simulation).Observe(seconds)
}

// Debug metrics functions

// IncrementGoroutineCreated increments the goroutine creation counter
func IncrementGoroutineCreated(component string) {
	goroutinesCreated.WithLabelValues(component).Inc()
	activeGoroutines.WithLabelValues(component).Inc()
}

// IncrementGoroutineDestroyed increments the goroutine destruction counter
func IncrementGoroutineDestroyed(component string) {
	goroutinesDestroyed.WithLabelValues(component).Inc()
	activeGoroutines.WithLabelValues(component).Dec()
}
