package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"wirebridge/internal/cache"
	"wirebridge/internal/config"
	"wirebridge/internal/engine"
	"wirebridge/internal/transport"
	"wirebridge/pkg/wirebridge"
)

var (
	sendConversationFlag string
	sendMediaFlag        string
	sendReplyToFlag      string
	sendTimeoutFlag      time.Duration
)

func init() {
	sendCmd.Flags().StringVar(&sendConversationFlag, "conversation", "", "conversation id (omit to start a new conversation)")
	sendCmd.Flags().StringVar(&sendMediaFlag, "media", "", "media id for a media message")
	sendCmd.Flags().StringVar(&sendReplyToFlag, "reply-to", "", "message id this message replies to")
	sendCmd.Flags().DurationVar(&sendTimeoutFlag, "timeout", 15*time.Second, "how long to wait for the server confirmation")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send [content...]",
	Short: "Send one message and wait for the confirmation",
	Long: "Open a short-lived session, file the message optimistically, submit\n" +
		"it, and wait for the message:sent confirmation to reconcile it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(strings.Join(args, " "))
		if content == "" && sendMediaFlag == "" {
			return fmt.Errorf("message content or --media is required")
		}

		cfg, err := config.Load(configFlag)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeoutFlag)
		defer cancel()

		return runSend(ctx, cfg, logger, engine.Draft{
			ConversationID: sendConversationFlag,
			Content:        content,
			MediaID:        sendMediaFlag,
			ReplyToID:      sendReplyToFlag,
		})
	},
}

func runSend(ctx context.Context, cfg config.Config, logger *slog.Logger, draft engine.Draft) error {
	user, err := transport.IdentityFromToken(cfg.AccessToken, time.Now())
	if err != nil {
		return err
	}
	if draft.MediaID != "" {
		draft.Type = wirebridge.MessageTypeMedia
	}

	store := cache.New()
	session := engine.NewSession()
	session.SetUser(user)
	typing := engine.NewTypingSet()
	router := engine.New(store, session, typing, engine.WithLogger(logger))

	connected := make(chan struct{})
	var once sync.Once
	client := transport.NewClient(transport.Config{
		URL:                  cfg.ServerURL,
		Token:                cfg.AccessToken,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
		MaxReconnectAttempts: 1,
		Logger:               logger,
		OnStateChange: func(state transport.State) {
			if state == transport.StateConnected {
				once.Do(func() { close(connected) })
			}
		},
	})

	transportDone := make(chan error, 1)
	go func() {
		transportDone <- client.Start(ctx, router)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = client.Shutdown(shutdownCtx)
		<-transportDone
	}()

	select {
	case <-connected:
	case err := <-transportDone:
		transportDone <- err

		return fmt.Errorf("connect: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("connect: %w", ctx.Err())
	}

	sender := engine.NewSender(store, session, client, engine.WithSenderLogger(logger))
	provisional, err := sender.SendMessage(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Printf("sent with temp id %s, waiting for confirmation...\n", provisional.TempID)

	confirmed, err := awaitConfirmation(ctx, store, draft.ConversationID, provisional.TempID)
	if err != nil {
		return err
	}
	if confirmed.ID == "" {
		fmt.Println("confirmed")

		return nil
	}
	fmt.Printf("confirmed as %s in conversation %s\n", confirmed.ID, confirmed.ConversationID)

	return nil
}

// awaitConfirmation polls the cache until the provisional record has been
// reconciled away, then returns the confirmed message when it is findable.
// For a brand-new conversation the confirmed record lands under a key this
// one-shot command cannot predict, so pending-slot drainage alone counts.
func awaitConfirmation(
	ctx context.Context,
	store *cache.Store,
	conversationID string,
	tempID string,
) (wirebridge.Message, error) {
	key := wirebridge.MessagesKey(conversationID)
	if conversationID == "" {
		key = wirebridge.PendingMessagesKey()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return wirebridge.Message{}, fmt.Errorf("await confirmation of %s: %w", tempID, ctx.Err())
		case <-ticker.C:
		}

		value, exists := store.Get(key)
		if !exists {
			continue
		}
		list, ok := value.(wirebridge.PagedList[wirebridge.Message])
		if !ok {
			continue
		}

		if provisional, found := wirebridge.Find(list, func(message wirebridge.Message) bool {
			return message.TempID == tempID
		}); found {
			if provisional.Status == wirebridge.MessageStatusFailed {
				return wirebridge.Message{}, fmt.Errorf("message %s failed to send", tempID)
			}
			if provisional.Confirmed() {
				return provisional, nil
			}

			continue
		}

		// The provisional record is gone: reconciled in place or moved out of
		// the pending slot.
		if confirmed, found := wirebridge.Find(list, func(message wirebridge.Message) bool {
			return message.Confirmed()
		}); found && conversationID != "" {
			return confirmed, nil
		}

		return wirebridge.Message{}, nil
	}
}
