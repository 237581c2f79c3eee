package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"golang.org/x/sync/errgroup"

	"github.com/vanishmail/vanishmail-backend/internal/api"
	"github.com/vanishmail/vanishmail-backend/internal/config"
	"github.com/vanishmail/vanishmail-backend/internal/database"
	"github.com/vanishmail/vanishmail-backend/internal/logger"
	"github.com/vanishmail/vanishmail-backend/internal/ratelimit"
	"github.com/vanishmail/vanishmail-backend/internal/repository"
	"github.com/vanishmail/vanishmail-backend/internal/services"
	"github.com/vanishmail/vanishmail-backend/internal/smtp"
	"github.com/vanishmail/vanishmail-backend/internal/websocket"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(log)

	cfg, err := config.LoadWithValidation()
	if err != nil {
		log.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.LogConfig(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	secLog := logger.NewSecurityLogger()

	// Service stack
	kv := repository.NewKVRepository(db)
	limiter := ratelimit.NewLimiter(kv, log)
	stats := services.NewStatsRecorder(kv, log)
	allocator := services.NewDomainAllocator(kv, cfg.MailboxDomains, cfg.DomainRepeatFactor, log)
	sessions := services.NewSessionService(kv, allocator, cfg, log)
	messages := services.NewMessageService(kv, sessions, stats, cfg, log)
	admin := services.NewAdminService(kv, log)

	// Live inbox push
	hub := websocket.NewHub(log)
	go hub.Run()
	messages.SetNotifier(hub)

	e := api.NewRouter(&api.RouterConfig{
		DB:       db,
		Sessions: sessions,
		Messages: messages,
		Admin:    admin,
		Stats:    stats,
		Limiter:  limiter,
		Hub:      hub,
		Config:   cfg,
		Logger:   log,
		SecLog:   secLog,
	})

	smtpBackend := smtp.NewBackend(&smtp.BackendConfig{
		Sessions: sessions,
		Messages: messages,
		Config:   cfg,
		Logger:   log,
	})
	smtpServer := smtp.NewSecureServer(smtpBackend, &smtp.ServerConfig{
		Addr:   fmt.Sprintf(":%d", cfg.SMTPPort),
		Domain: cfg.SMTPDomain,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("starting HTTP server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting SMTP server",
			slog.Int("port", cfg.SMTPPort),
			slog.String("domain", cfg.SMTPDomain))
		if err := smtpServer.ListenAndServe(); err != nil && err != gosmtp.ErrServerClosed {
			return fmt.Errorf("smtp server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown error", slog.Any("error", err))
		}
		if err := smtpServer.Close(); err != nil {
			log.Error("smtp shutdown error", slog.Any("error", err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
