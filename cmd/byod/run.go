package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/byod/internal/display"
	"github.com/tinytelemetry/byod/internal/display/window"
	"github.com/tinytelemetry/byod/internal/duckdb"
	"github.com/tinytelemetry/byod/internal/httpserver"
	"github.com/tinytelemetry/byod/internal/imagechan"
	"github.com/tinytelemetry/byod/internal/interrupt"
	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/orchestrator"
	"github.com/tinytelemetry/byod/internal/poller"
	"github.com/tinytelemetry/byod/internal/render"
	"github.com/tinytelemetry/byod/internal/trmnl"
	"github.com/tinytelemetry/byod/internal/tui"
)

// frontend is a display surface that also owns an event loop. Run must be
// called from the main goroutine.
type frontend interface {
	render.Surface
	render.InputSource
	Run(ctx context.Context) error
}

func runClient(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.Surface == surfaceTerminal)
	defer cleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go watchSignals(sigCh, cancel, shutdownGrace, os.Exit)

	var (
		recorder model.CycleRecorder
		history  model.HistoryReader
	)
	if cfg.HistoryEnabled {
		store, err := duckdb.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()

		buffer := duckdb.NewHistoryBuffer(store)
		defer buffer.Stop()

		if cleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			Retention: cfg.HistoryRetention,
		}); cleaner != nil {
			defer cleaner.Stop()
		}

		recorder, history = buffer, store
	}

	overflow, err := imagechan.ParseOverflow(cfg.QueueOverflow)
	if err != nil {
		return err
	}
	success, err := poller.ParseSuccessMode(cfg.SuccessMode, cfg.ServerErrorStatus)
	if err != nil {
		return err
	}

	frames := imagechan.New(cfg.ImageQueueSize, overflow)
	wake := interrupt.New()

	var opts []poller.Option
	if recorder != nil {
		opts = append(opts, poller.WithRecorder(recorder))
	}
	p, err := poller.New(poller.Config{
		API: trmnl.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RequestTimeout,
		},
		DefaultInterval: cfg.DefaultRefresh,
		Success:         success,
	}, frames, wake, opts...)
	if err != nil {
		return err
	}

	var fe frontend
	var term *tui.Terminal
	switch cfg.Surface {
	case surfaceTerminal:
		term = tui.New(cfg.Width, cfg.Height, cfg.RefreshKeys)
		fe = term
	case surfaceHeadless:
		fe = display.NewHeadless(cfg.Width, cfg.Height, cfg.SnapshotPath)
	default:
		fe = window.New(cfg.Width, cfg.Height, cfg.Scale)
	}

	r, err := render.New(render.Config{
		Tick:        cfg.TickInterval,
		RefreshKeys: cfg.RefreshKeys,
	}, fe, fe, frames, wake)
	if err != nil {
		return err
	}

	if term != nil {
		term.Attach(tui.Sources{Poller: p, Renderer: r, History: history})
	}

	if cfg.APIEnabled {
		srv := httpserver.NewServer(cfg.APIAddr, httpserver.Deps{
			Poller:    p,
			Renderer:  r,
			History:   history,
			Refresher: wake,
		})
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP API: %w", err)
		}
		defer srv.Stop()
	}

	if cfg.Surface != surfaceTerminal {
		printStartupBanner(cfg)
	}

	uiCtx, stopUI := context.WithCancel(ctx)
	defer stopUI()

	done := make(chan error, 1)
	go func() {
		defer stopUI()
		done <- orchestrator.Run(ctx,
			orchestrator.Loop{Name: "poller", Run: p.Run},
			orchestrator.Loop{Name: "renderer", Run: r.Run, Release: frames.Close},
		)
	}()

	uiErr := fe.Run(uiCtx)
	cancel()
	runErr := <-done

	if runErr != nil {
		return runErr
	}
	if uiErr != nil {
		return uiErr
	}
	return nil
}

const shutdownGrace = 10 * time.Second

// watchSignals cancels on the first signal without any output. A second
// signal, or a shutdown that outlives grace, forces exit(1).
func watchSignals(sigCh <-chan os.Signal, cancel context.CancelFunc, grace time.Duration, exit func(int)) {
	<-sigCh
	cancel()

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	select {
	case <-sigCh:
		log.Printf("byod: second signal, forcing exit")
	case <-deadline.C:
		log.Printf("byod: shutdown timed out, forcing exit")
	}
	exit(1)
}

// configureRuntimeLogger sends the standard logger to a file when the
// terminal surface owns stdout, and to stderr otherwise.
func configureRuntimeLogger(toFile bool) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)
	if !toFile {
		return func() {}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "byod")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return func() {}
	}

	logPath := filepath.Join(logDir, "byod.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗ ╦ ╦╔═╗╔╦╗
    ╠╩╗╚╦╝║ ║ ║║
    ╚═╝ ╩ ╚═╝═╩╝`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Device"), "")
	lines = append(lines, fmt.Sprintf("    %s  Server         %s", check, cyan.Render(cfg.BaseURL)))
	lines = append(lines, fmt.Sprintf("    %s  Surface        %s", check, dim.Render(fmt.Sprintf("%s %dx%d", cfg.Surface, cfg.Width, cfg.Height))))
	lines = append(lines, fmt.Sprintf("    %s  Refresh keys   %s", check, dim.Render(strings.Join(cfg.RefreshKeys, " "))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if cfg.HistoryEnabled {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  History        %s", dot, dim.Render("disabled")))
	}
	if cfg.SnapshotPath != "" && cfg.Surface == surfaceHeadless {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", check, dim.Render(shortenPath(cfg.SnapshotPath))))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
