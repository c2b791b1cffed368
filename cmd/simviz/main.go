package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/simviz/internal/config"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/playback"
	"github.com/zsiec/simviz/internal/rgbfile"
	"github.com/zsiec/simviz/internal/tui"
	"github.com/zsiec/simviz/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logPath     string
		rate        float64
		paused      bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&logPath, "log", "", "Write logs to this file (logs to the terminal are discarded while viewing)")
	flag.Float64Var(&rate, "rate", 0, "Playback rate in frames per second (overrides config)")
	flag.BoolVar(&paused, "paused", false, "Start paused")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <recording>\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Keys: space pause, left/right step, home/end seek, q quit")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		return 0
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	path := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if logPath != "" {
		cfg.Logging.Output = logPath
	}
	if rate > 0 {
		cfg.Playback.Rate = rate
	}
	if paused {
		cfg.Playback.StartPaused = true
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	toTerminal := cfg.Logging.Output == "stdout" || cfg.Logging.Output == "stderr"
	base := logger.FromLogrus(log)

	engine, err := playback.Open(path, playback.WithLogger(base))
	if err != nil {
		if rgbfile.IsFormatError(err) {
			fmt.Fprintf(os.Stderr, "%s is not a playable recording: %v\n", path, err)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", path, err)
		}
		return 1
	}
	defer engine.Close()

	if cfg.Playback.StartPaused {
		engine.SetPaused(true)
	}

	// The viewer owns the terminal from here on.
	if toTerminal {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		go func() {
			_ = metrics.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, base)
		}()
	}

	runner := playback.NewRunner(engine, playback.RunnerConfig{
		Rate:       cfg.Playback.Rate,
		FrameQueue: cfg.Playback.FrameQueue,
	}, base)

	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(ctx) }()

	program := tea.NewProgram(tui.NewModel(runner), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()

	cancel()
	<-runDone

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Viewer error: %v\n", err)
		return 1
	}

	log.WithField("frame", engine.Current()).Info("Viewer closed")
	return 0
}
