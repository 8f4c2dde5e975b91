package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"epdday/internal/app"
	"epdday/internal/battery"
	"epdday/internal/clock"
	"epdday/internal/config"
	"epdday/internal/display"
	"epdday/internal/epd"
	"epdday/internal/icsimport"
	appLog "epdday/internal/log"
	"epdday/internal/sleep"
	"epdday/internal/syncstate"
	"epdday/internal/timesync"
	"epdday/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	daemon     bool
	setup      bool
	renderOnly bool
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("epdday starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"lookahead_days", conf.LookaheadDays,
		"ntp_server", conf.NTP.Server,
		"event_count", len(conf.Events),
		"ics_sources", len(conf.ICSImport),
		"once", flags.once,
		"daemon", flags.daemon,
		"render_only", flags.renderOnly,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	clk := clock.System{}
	store := syncstate.NewFileStore(conf.StateDir)
	policy := timesync.New(
		clk,
		store,
		timesync.Nop{},
		timesync.NTPProvider{Server: conf.NTP.Server},
		conf.NTP.Attempts,
		time.Duration(conf.NTP.TimeoutSec)*time.Second,
	)

	server, err := web.NewServer(conf, flags.configPath, clk, battery.DefaultReader())
	if err != nil {
		appLog.Error("failed to build web server", err)
		os.Exit(1)
	}
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Serve(ctx) }()

	renderer := &display.PanelRenderer{
		BaseURL:  "http://" + conf.Listen,
		StateDir: conf.StateDir,
		Panel:    openPanel(ctx, flags.renderOnly, conf.StateDir),
	}
	defer renderer.Panel.Close()

	deps := app.Deps{
		Conf:     server,
		Clock:    clk,
		Policy:   policy,
		Renderer: renderer,
		Importer: icsimport.NewFetcher(filepath.Join(conf.StateDir, "ics-cache")),
	}

	switch {
	case flags.setup:
		runSetupMode(ctx, conf, renderer, serverErr)

	case flags.once:
		out := app.RunCycle(ctx, deps)
		appLog.Info("cycle complete",
			"rendered", out.Rendered,
			"slots", len(out.Selection),
			"retry", out.Retry,
			"next_wake_in", out.SleepFor.String(),
		)
		// Deep sleep itself belongs to the power hardware: the PiSugar RTC
		// alarm must be armed with next_wake_in by the caller (systemd unit
		// or pisugar-server hook).
		if out.Retry {
			os.Exit(2)
		}

	default:
		if err := app.Daemon(ctx, deps, conf.RefreshCron, sleep.ProcessSleeper{}); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("daemon exited", err)
			os.Exit(1)
		}
	}

	// Give pending HTTP shutdown a moment.
	cancel()
	select {
	case <-serverErr:
	case <-time.After(time.Second):
	}
	appLog.Info("epdday exiting")
}

// runSetupMode paints the setup screen on the panel and keeps the web UI up
// until interrupted.
func runSetupMode(ctx context.Context, conf *config.Config, renderer display.Renderer, serverErr <-chan error) {
	if err := renderer.RenderSetupScreen(ctx, "wifi", "http://"+conf.Listen); err != nil {
		appLog.Error("failed to render setup screen", err)
	}
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			appLog.Error("web server failed", err)
		}
	}
}

// openPanel returns the SPI panel when present, otherwise the file-dump
// panel so rendering stays observable on development hosts.
func openPanel(ctx context.Context, renderOnly bool, stateDir string) epd.Panel {
	if renderOnly {
		return epd.DumpPanel{Dir: stateDir}
	}
	panel, err := epd.Open(ctx)
	if err != nil {
		appLog.Warn("e-paper panel unavailable, dumping planes instead", "err", err, "dir", stateDir)
		return epd.DumpPanel{Dir: stateDir}
	}
	return panel
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/epdday/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one wake cycle and exit (device deep-sleep operation)")
	flag.BoolVar(&cfg.daemon, "daemon", false, "Run continuously on the refresh schedule (default)")
	flag.BoolVar(&cfg.setup, "setup", false, "Show the setup screen and serve the config UI")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Render to plane dumps; do not touch display hardware")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
