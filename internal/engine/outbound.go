package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wirebridge/internal/cache"
	"wirebridge/pkg/wirebridge"
)

// Draft is a locally composed message before it is given a temp id.
// ConversationID is empty when this is the first message of a brand-new
// conversation, whose server-side id does not exist yet.
type Draft struct {
	ConversationID string
	Type           wirebridge.MessageType
	Content        string
	MediaID        string
	ReplyToID      string
}

// SenderOption mutates sender configuration.
type SenderOption func(*Sender)

// WithSenderLogger injects a structured logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(sender *Sender) {
		if logger != nil {
			sender.logger = logger
		}
	}
}

// WithSenderClock injects a time source, used by tests.
func WithSenderClock(clock func() time.Time) SenderOption {
	return func(sender *Sender) {
		if clock != nil {
			sender.clock = clock
		}
	}
}

// WithTempID injects the temp id generator, used by tests.
func WithTempID(generate func() string) SenderOption {
	return func(sender *Sender) {
		if generate != nil {
			sender.newTempID = generate
		}
	}
}

// Sender is the optimistic outbound path: it files a provisional message in
// the cache before the network round-trip completes, then fires the command.
// The message:sent acknowledgement later reconciles the provisional record.
type Sender struct {
	store     *cache.Store
	session   *Session
	transport wirebridge.Transport
	logger    *slog.Logger
	clock     func() time.Time
	newTempID func() string
}

// NewSender creates a sender over the shared cache and transport.
func NewSender(
	store *cache.Store,
	session *Session,
	transport wirebridge.Transport,
	options ...SenderOption,
) *Sender {
	sender := &Sender{
		store:     store,
		session:   session,
		transport: transport,
		logger:    slog.Default(),
		clock:     time.Now,
		newTempID: uuid.NewString,
	}
	for _, option := range options {
		option(sender)
	}

	return sender
}

// SendMessage files a provisional message under a fresh temp id — at the
// known conversation key, or the pending key when the conversation does not
// exist client-side yet — and submits the send command. When submission
// fails the provisional record is flagged FAILED in place.
func (s *Sender) SendMessage(ctx context.Context, draft Draft) (wirebridge.Message, error) {
	current, authenticated := s.session.User()
	if !authenticated {
		return wirebridge.Message{}, fmt.Errorf("send message: no authenticated user")
	}

	messageType := draft.Type
	if messageType == "" {
		messageType = wirebridge.MessageTypeText
	}

	provisional := wirebridge.Message{
		TempID:         s.newTempID(),
		ConversationID: draft.ConversationID,
		SenderID:       current.ID,
		Type:           messageType,
		Content:        draft.Content,
		MediaID:        draft.MediaID,
		ReplyToID:      draft.ReplyToID,
		Status:         wirebridge.MessageStatusSent,
		CreatedAt:      s.clock().UTC(),
	}

	key := wirebridge.MessagesKey(draft.ConversationID)
	if draft.ConversationID == "" {
		key = wirebridge.PendingMessagesKey()
	}
	s.store.Update(key, func(value any, exists bool) (any, bool) {
		list := wirebridge.PagedList[wirebridge.Message]{}
		if exists {
			typed, ok := value.(wirebridge.PagedList[wirebridge.Message])
			if !ok {
				return value, false
			}
			list = typed
		}
		next := wirebridge.AppendNewest(list, provisional, func(item wirebridge.Message) bool {
			return item.TempID == provisional.TempID
		})

		// The optimistic write must land even when no list was fetched yet.
		return next, true
	})

	command := wirebridge.Command{
		Type: wirebridge.CommandSendMessage,
		SendMessage: &wirebridge.SendMessageCommand{
			ConversationID: draft.ConversationID,
			Type:           messageType,
			Content:        draft.Content,
			MediaID:        draft.MediaID,
			TempID:         provisional.TempID,
			ReplyToID:      draft.ReplyToID,
		},
	}
	if err := s.transport.Send(ctx, command); err != nil {
		s.logger.Warn("send command failed, flagging provisional message",
			"temp_id", provisional.TempID, "error", err)
		s.markFailed(key, provisional.TempID)

		return provisional, fmt.Errorf("send message %s: %w", provisional.TempID, err)
	}

	return provisional, nil
}

// markFailed flags the provisional record FAILED so the UI can offer retry.
func (s *Sender) markFailed(key wirebridge.Key, tempID string) {
	s.store.Update(key, func(value any, exists bool) (any, bool) {
		if !exists {
			return value, false
		}
		list, ok := value.(wirebridge.PagedList[wirebridge.Message])
		if !ok {
			return value, false
		}

		return wirebridge.MutateByID(list, func(message wirebridge.Message) bool {
			return message.TempID == tempID
		}, func(message wirebridge.Message) wirebridge.Message {
			message.Status = wirebridge.MessageStatusFailed

			return message
		})
	})
}

// React submits a reaction toggle for one message.
func (s *Sender) React(ctx context.Context, messageID, emoji string) error {
	command := wirebridge.Command{
		Type:  wirebridge.CommandReact,
		React: &wirebridge.ReactCommand{MessageID: messageID, Emoji: emoji},
	}
	if err := s.transport.Send(ctx, command); err != nil {
		return fmt.Errorf("react to message %s: %w", messageID, err)
	}

	return nil
}

// MarkRead asks the server to mark the conversation read. The authoritative
// messages:read event updates the cache on the way back.
func (s *Sender) MarkRead(ctx context.Context, conversationID string) error {
	command := wirebridge.Command{
		Type:     wirebridge.CommandMarkRead,
		MarkRead: &wirebridge.MarkReadCommand{ConversationID: conversationID},
	}
	if err := s.transport.Send(ctx, command); err != nil {
		return fmt.Errorf("mark read %s: %w", conversationID, err)
	}

	return nil
}

// StartTyping signals the current user started typing.
func (s *Sender) StartTyping(ctx context.Context, conversationID string) error {
	return s.sendTyping(ctx, wirebridge.CommandTypingStart, conversationID)
}

// StopTyping signals the current user stopped typing.
func (s *Sender) StopTyping(ctx context.Context, conversationID string) error {
	return s.sendTyping(ctx, wirebridge.CommandTypingStop, conversationID)
}

func (s *Sender) sendTyping(ctx context.Context, commandType wirebridge.CommandType, conversationID string) error {
	command := wirebridge.Command{
		Type:   commandType,
		Typing: &wirebridge.TypingCommand{ConversationID: conversationID},
	}
	if err := s.transport.Send(ctx, command); err != nil {
		return fmt.Errorf("%s %s: %w", commandType, conversationID, err)
	}

	return nil
}
