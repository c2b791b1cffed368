package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsiec/simviz/internal/config"
	"github.com/zsiec/simviz/internal/heat2d"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/rgbfile"
	"github.com/zsiec/simviz/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		textPath    string
		showVersion bool
		size        int
		maxTime     int
		heatTime    int
		interval    int
		output      string
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.IntVar(&size, "size", 0, "Cells per side (overrides config)")
	flag.IntVar(&maxTime, "max-time", 0, "Simulation steps (overrides config)")
	flag.IntVar(&heatTime, "heat-time", -1, "Steps the heat source stays on (overrides config)")
	flag.IntVar(&interval, "interval", -1, "Steps between recorded frames (overrides config)")
	flag.StringVar(&output, "o", "", "Recording path (overrides config)")
	flag.StringVar(&textPath, "text", "", "Also write a text dump of each recorded step, - for stdout")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if size > 0 {
		cfg.Heat2D.Size = size
	}
	if maxTime > 0 {
		cfg.Heat2D.MaxTime = maxTime
	}
	if heatTime >= 0 {
		cfg.Heat2D.HeatTime = heatTime
	}
	if interval >= 0 {
		cfg.Heat2D.Interval = interval
	}
	if output != "" {
		cfg.Heat2D.Output = output
	}
	if err := cfg.Heat2D.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid simulation settings: %v\n", err)
		return 1
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	base := logger.FromLogrus(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		go func() {
			_ = metrics.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, base)
		}()
	}

	side := uint64(cfg.Heat2D.Size)
	// A recording that cannot be created is logged by the writer; the
	// simulation still runs.
	writer, _ := rgbfile.Create(cfg.Heat2D.Output, side, side, base)
	defer writer.Close()

	text, closeText, err := openText(textPath)
	if err != nil {
		log.WithError(err).Error("Failed to open text dump")
		return 1
	}
	defer closeText()

	producer, err := heat2d.NewProducer(heat2d.Config{
		Size:     cfg.Heat2D.Size,
		MaxTime:  cfg.Heat2D.MaxTime,
		HeatTime: cfg.Heat2D.HeatTime,
		Interval: cfg.Heat2D.Interval,
	}, writer, text, base)
	if err != nil {
		log.WithError(err).Error("Failed to prepare simulation")
		return 1
	}

	frames, err := producer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Simulation failed")
		return 1
	}

	if err := writer.Close(); err != nil {
		log.WithError(err).Error("Failed to finish recording")
		return 1
	}

	log.WithFields(logger.Fields{
		"output":  cfg.Heat2D.Output,
		"frames":  frames,
		"written": !writer.Broken(),
	}).Info("Recording finished")
	return 0
}

// openText returns the text dump writer for path, or nil when path is empty.
func openText(path string) (io.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		bw := bufio.NewWriter(os.Stdout)
		return bw, func() { _ = bw.Flush() }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	bw := bufio.NewWriter(file)
	return bw, func() {
		_ = bw.Flush()
		_ = file.Close()
	}, nil
}
