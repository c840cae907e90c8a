package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"project-tracker-api/internal"
	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"
	"project-tracker-api/internal/notify"
	"project-tracker-api/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}

	metrics := internal.NewMetrics()
	sender, cleanup, err := newSender(ctx, cfg, log)
	if err != nil {
		st.Close(context.Background())
		return err
	}
	defer cleanup()

	opts := []internal.Option{internal.WithMetrics(metrics), internal.WithLogger(log)}
	var dispatcher *notify.Dispatcher
	if sender != nil {
		dispatcher = notify.NewDispatcher(sender, log, notify.OnFailure(metrics.NotificationFailed))
		opts = append(opts, internal.WithNotifier(dispatcher))
	}

	srv, err := internal.NewServer(cfg, st, opts...)
	if err != nil {
		st.Close(context.Background())
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"store":        cfg.StoreDriver,
		"notify":       cfg.Notify.Driver,
		"transitions":  cfg.StatusTransitions,
		"jwt_issuer":   cfg.JWTIssuer,
		"jwt_audience": cfg.JWTAudience,
		"jwt_expiry":   cfg.JWTExpiry.String(),
	}).Info("starting project tracker API")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			srv.Close(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	// Pending notifications reference stored projects, so drain them before
	// the store goes away.
	if dispatcher != nil {
		dispatcher.Close()
	}
	if err := srv.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("store close failed")
	}
	log.Info("server stopped")
	return nil
}

// newSender returns nil when notifications are disabled. The cleanup func
// is always safe to call.
func newSender(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (notify.Sender, func(), error) {
	n := cfg.Notify
	switch n.Driver {
	case "smtp":
		return notify.NewEmailSender(notify.SMTPConfig{
			Host:     n.SMTPHost,
			Port:     n.SMTPPort,
			Username: n.SMTPUser,
			Password: n.SMTPPass,
			Secure:   n.SMTPSecure,
			From:     n.SMTPFrom,
			To:       n.ManagementEmail,
		}), func() {}, nil
	case "redis":
		client, err := notify.NewRedisClient(ctx, n.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return notify.NewRedisPublisher(client, n.RedisChannel), func() { client.Close() }, nil
	case "log":
		return notify.LogSender{Log: log}, func() {}, nil
	}
	return nil, func() {}, nil
}
