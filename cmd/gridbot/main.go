package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alejandrodnm/gridbot/config"
	"github.com/alejandrodnm/gridbot/internal/adapters/binance"
	"github.com/alejandrodnm/gridbot/internal/adapters/metrics"
	"github.com/alejandrodnm/gridbot/internal/adapters/notify"
	"github.com/alejandrodnm/gridbot/internal/adapters/paper"
	"github.com/alejandrodnm/gridbot/internal/adapters/storage"
	"github.com/alejandrodnm/gridbot/internal/application/engine/grid"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	report := flag.Bool("report", false, "print the profit report, send it to Telegram and exit")
	dryRun := flag.Bool("dry-run", false, "force simulation mode (overrides MODO_SIMULACAO)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *dryRun {
		sim := true
		cfg.Simulation.Enabled = &sim
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("gridbot starting",
		"config", *configPath,
		"symbol", cfg.Grid.Symbol,
		"range", fmt.Sprintf("%.2f-%.2f", cfg.Grid.LowerPrice, cfg.Grid.UpperPrice),
		"levels", cfg.Grid.Levels,
		"amount_per_grid", cfg.Grid.AmountPerGrid,
		"simulation", cfg.Simulated(),
		"report", *report,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		// El reporte ya se imprime como tabla: la consola no lo repite.
		if err := runReport(ctx, store, buildNotifier(cfg.Telegram, false), cfg.Grid.Symbol); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	client := binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.BaseURL)
	var gateway ports.OrderGateway = client
	if cfg.Simulated() {
		slog.Info("=== SIMULATION MODE: orders are never sent to the exchange ===",
			"virtual_balances", cfg.Simulation.Balances)
		gateway = paper.NewGateway(client, cfg.Simulation.Balances)
	} else if !confirmLive(ctx) {
		return
	}

	notifier := buildNotifier(cfg.Telegram, true)

	var recorder ports.Metrics = metrics.Nop{}
	if cfg.Metrics.Addr != "" {
		r := metrics.NewRecorder()
		r.Registry().MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		go serveMetrics(ctx, cfg.Metrics.Addr, r.Handler())
		recorder = r
	}

	eng := grid.New(gateway, store, notifier, recorder, grid.Config{
		Symbol:             cfg.Grid.Symbol,
		LowerPrice:         cfg.Grid.LowerPrice,
		UpperPrice:         cfg.Grid.UpperPrice,
		Levels:             cfg.Grid.Levels,
		InvestmentPerLevel: cfg.Grid.AmountPerGrid,
		StaleAfter:         cfg.StaleAfter(),
		PollInterval:       cfg.PollInterval(),
		ErrorBackoff:       cfg.ErrorBackoff(),
		ExpiryEvery:        cfg.ExpiryEvery(),
		StopFile:           cfg.Grid.StopFile,
	})

	if err := eng.Run(ctx); err != nil {
		slog.Error("grid exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("gridbot stopped cleanly")
}

// buildNotifier devuelve consola + Telegram si hay token. Si Telegram no
// responde al arrancar se sigue solo con consola.
func buildNotifier(cfg config.TelegramConfig, console bool) ports.Notifier {
	var targets notify.Multi
	if console {
		targets = append(targets, notify.NewConsole())
	}
	if cfg.Token == "" {
		slog.Info("telegram disabled (no TELEGRAM_TOKEN)")
		return targets
	}
	tg, err := notify.NewTelegram(cfg.Token, cfg.ChatID)
	if err != nil {
		slog.Warn("telegram unavailable, notifications go to console only", "err", err)
		return targets
	}
	return append(targets, tg)
}

// confirmLive deja 5 segundos para abortar antes de operar con dinero real.
func confirmLive(ctx context.Context) bool {
	fmt.Printf("\n⚠️  LIVE TRADING MODE: REAL ORDERS WILL BE SENT TO BINANCE\n")
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	defer abortTimer.Stop()
	select {
	case <-abortTimer.C:
		slog.Info("=== LIVE TRADING MODE ===")
		return true
	case <-ctx.Done():
		slog.Info("live trading aborted by user")
		return false
	}
}

func serveMetrics(ctx context.Context, addr string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics: server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
