// Estimabot - Telegram estimate and media bot
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashureev/estimabot/internal/api"
	"github.com/ashureev/estimabot/internal/bot"
	"github.com/ashureev/estimabot/internal/config"
	"github.com/ashureev/estimabot/internal/convlog"
	"github.com/ashureev/estimabot/internal/estimate"
	"github.com/ashureev/estimabot/internal/llm"
	"github.com/ashureev/estimabot/internal/media"
	"github.com/ashureev/estimabot/internal/messages"
	"github.com/ashureev/estimabot/internal/metrics"
	"github.com/ashureev/estimabot/internal/render"
	"github.com/ashureev/estimabot/internal/session"
	"github.com/ashureev/estimabot/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server",
		"port", cfg.Port,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"media_backend", cfg.Media.Backend,
		"webhook", cfg.UsesWebhook())

	catalog, err := messages.Load(cfg.MessagesFile)
	if err != nil {
		return err
	}

	sessions := session.New(session.Policy{TTL: cfg.Session.TTL, MaxUsers: cfg.Session.MaxUsers})
	recorder := metrics.NewRecorder()

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return err
	}

	renderer := render.NewPDFRenderer(cfg.Render.ChromePath, cfg.Render.Timeout)
	defer renderer.Close()

	acquirer, closeAcquirer, err := newAcquirer(cfg)
	if err != nil {
		return err
	}
	defer closeAcquirer()
	slog.Info("Media acquirer initialized", "backend", acquirer.Name())

	if err := os.MkdirAll(cfg.Media.DownloadDir, 0o750); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if n, err := media.Sweep(cfg.Media.DownloadDir, 0, time.Now()); err != nil {
		slog.Warn("Startup download sweep failed", "error", err)
	} else if n > 0 {
		slog.Info("Removed leftover downloads", "count", n)
	}
	if err := media.StartJanitor(ctx, cfg.Media.DownloadDir, cfg.Media.JanitorInterval, cfg.Media.JanitorMaxAge); err != nil {
		return err
	}
	slog.Info("Download janitor started", "interval", cfg.Media.JanitorInterval, "max_age", cfg.Media.JanitorMaxAge)

	convLogger, err := convlog.New(convlog.Config{
		Enabled:   cfg.ConvLog.Enabled,
		Dir:       cfg.ConvLog.Dir,
		QueueSize: cfg.ConvLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := convLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	client, err := telegram.New(cfg.TelegramToken, telegram.Options{
		ConnectTimeout: cfg.Upload.ConnectTimeout,
		UploadTimeout:  cfg.Upload.Timeout,
	})
	if err != nil {
		return err
	}

	estimates := estimate.NewPipeline(sessions, completer, renderer, catalog, estimate.Options{
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
		Metrics:   recorder,
	})
	downloads := media.NewPipeline(sessions, acquirer, client, catalog, media.Options{
		DownloadDir:    cfg.Media.DownloadDir,
		AcquireTimeout: cfg.Media.AcquireTimeout,
		MaxVideoBytes:  cfg.Media.MaxVideoBytes,
		Metrics:        recorder,
	})
	controller := bot.NewController(client, estimates, downloads, catalog, recorder, convLogger)

	// Handlers keep running on their own context so queued work can finish
	// after the signal arrives.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	dispatcher := bot.NewDispatcher(workCtx, controller)

	routes := api.Routes{
		Health:  api.NewHandler(completer.Model(), acquirer.Name(), sessions),
		Metrics: recorder.Handler(),
	}
	if cfg.UsesWebhook() {
		routes.Webhook = telegram.WebhookHandler(dispatcher.Dispatch)
		routes.WebhookSecret = cfg.WebhookSecret
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(routes),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 2)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.UsesWebhook() {
		hook := strings.TrimRight(cfg.WebhookURL, "/") + "/telegram/" + cfg.WebhookSecret
		if err := client.SetWebhook(hook); err != nil {
			return err
		}
	} else {
		go func() {
			if err := client.Poll(ctx, dispatcher.Dispatch); err != nil {
				serverErr <- err
			}
		}()
	}

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Media.AcquireTimeout)
	defer cancelDrain()
	if err := dispatcher.Wait(drainCtx); err != nil {
		slog.Warn("In-flight events abandoned", "error", err)
	}
	cancelWork()
	return nil
}

func newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg.CompletionAPIKey(), cfg.LLM.Model)
	default:
		return llm.NewOpenAIClient(cfg.CompletionAPIKey(), cfg.LLM.Model), nil
	}
}

// newAcquirer builds the configured backend and returns a release func for
// any resources it holds.
func newAcquirer(cfg *config.Config) (media.Acquirer, func(), error) {
	switch cfg.Media.Backend {
	case config.BackendYtdlp:
		return media.NewYtdlpAcquirer(cfg.Media.YtdlpPath, cfg.ProxyURL), func() {}, nil
	case config.BackendDocker:
		runner, err := media.NewDockerRunner()
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := runner.Close(); err != nil {
				slog.Error("Failed to close docker client", "error", err)
			}
		}
		return media.NewDockerAcquirer(cfg.Media.YtdlpImage, cfg.ProxyURL, runner), release, nil
	default:
		return media.NewLibraryAcquirer(cfg.ProxyURL), func() {}, nil
	}
}
