package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wirebridge/internal/cache"
	"wirebridge/internal/config"
	"wirebridge/internal/engine"
	"wirebridge/internal/transport"
	"wirebridge/pkg/wirebridge"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the feed and keep the cache synchronized",
	Long: "Open an authenticated session, route every feed event through the\n" +
		"cache handlers, and print user-facing notifications until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager := buildRuntime(cfg, logger, stop)
		if err := manager.SetAuthenticated(ctx, cfg.AccessToken); err != nil {
			return err
		}

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return manager.SetUnauthenticated(shutdownCtx)
	},
}

// buildRuntime wires the cache, router, and connection manager. stop ends the
// watch loop on forced logout so a revoked session does not linger.
func buildRuntime(cfg config.Config, logger *slog.Logger, stop func()) *transport.Manager {
	store := cache.New(cache.WithRefetchHook(func(key wirebridge.Key) {
		logger.Debug("cache entry stale", "key", key.String())
	}))
	session := engine.NewSession()
	typing := engine.NewTypingSet()

	router := engine.New(store, session, typing,
		engine.WithLogger(logger),
		engine.WithNotifier(consoleNotifier{}),
		engine.WithForcedLogout(func(reason string) {
			logger.Warn("session revoked, stopping", "reason", reason)
			stop()
		}),
	)

	factory := func(token string, onState func(transport.State)) wirebridge.Transport {
		return transport.NewClient(transport.Config{
			URL:                  cfg.ServerURL,
			Token:                token,
			HeartbeatInterval:    cfg.HeartbeatInterval,
			ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
			ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			OnStateChange:        onState,
			Logger:               logger,
		})
	}

	return transport.NewManager(factory, router,
		transport.WithManagerLogger(logger),
		transport.WithOnIdentity(session.SetUser),
		transport.WithOnTeardown(func() {
			session.Clear()
			typing.Reset()
			store.Clear()
		}),
	)
}

// consoleNotifier prints user-facing notifications to stdout, keeping them
// apart from the structured log stream on stderr.
type consoleNotifier struct{}

func (consoleNotifier) Notify(_ context.Context, notification wirebridge.Notification) {
	if notification.Body == "" {
		fmt.Printf("[%s] %s\n", notification.Level, notification.Title)

		return
	}
	fmt.Printf("[%s] %s: %s\n", notification.Level, notification.Title, notification.Body)
}

var _ wirebridge.Notifier = consoleNotifier{}
