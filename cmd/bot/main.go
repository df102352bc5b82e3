package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"club-events/internal/config"
	"club-events/internal/core"
	"club-events/internal/metrics"
	"club-events/internal/payments"
	"club-events/internal/server"
	"club-events/internal/sheets"
	"club-events/internal/store"
	"club-events/internal/store/memstore"
	"club-events/internal/store/sqlitestore"
	"club-events/internal/tgbot"
	"club-events/internal/weather"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	metrics.Register(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store_open_failed", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	var source weather.Source
	if cfg.WeatherConfigured() {
		source = weather.NewKMASource(weather.KMAOptions{
			BaseURL:    cfg.Weather.BaseURL,
			ServiceKey: cfg.Weather.ServiceKey,
			NX:         cfg.Weather.NX,
			NY:         cfg.Weather.NY,
			Timeout:    cfg.Weather.Timeout,
		})
	} else {
		slog.Warn("weather_not_configured", "fallback", true)
	}

	svc := core.New(st, core.Options{WeatherSource: source, WeatherCache: weather.NewMemoryCache()})
	if err := svc.Load(ctx); err != nil {
		slog.Error("core_load_failed", "err", err)
		os.Exit(1)
	}

	payProvider, err := payments.NewProvider(cfg)
	if err != nil {
		slog.Error("payments_init_failed", "err", err)
		os.Exit(1)
	}

	var notifier server.Notifier
	if cfg.TelegramToken != "" {
		botApp, err := tgbot.New(cfg, svc, payProvider)
		if err != nil {
			slog.Error("telegram_init_failed", "err", err)
			os.Exit(1)
		}
		notifier = botApp

		// Start Telegram
		go func() {
			if err := botApp.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("bot_stopped", "err", err)
				cancel()
			}
		}()
	} else {
		slog.Warn("telegram_disabled", "reason", "TELEGRAM_BOT_TOKEN is empty")
	}

	httpSrv := server.New(cfg, svc, payProvider, notifier)

	// Start HTTP server
	go func() {
		slog.Info("http_listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http_server_failed", "err", err)
			cancel()
		}
	}()

	go refreshWeather(ctx, svc, cfg.Weather.RefreshInterval)

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	slog.Info("shutting_down")

	cancel()
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)

	slog.Info("bye")
}

func openStore(ctx context.Context, cfg config.Config) (store.DocumentStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSheets:
		c, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			return nil, nil, err
		}
		if err := c.EnsureSheets(ctx); err != nil {
			return nil, nil, err
		}
		return sheets.NewStore(c), func() {}, nil
	case config.BackendMemory:
		return memstore.New(), func() {}, nil
	default:
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

// refreshWeather keeps upcoming events' forecasts within their freshness
// window.
func refreshWeather(ctx context.Context, svc *core.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n := svc.Weather.RefreshUpcoming(ctx)
		slog.Debug("weather_sweep", "refreshed", n)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
