package wirebridge

import (
	"context"
	"fmt"
)

// EventSink accepts typed events decoded from the server feed. The event
// router implements this contract; the transport is its only caller.
type EventSink interface {
	// Publish submits one event for dispatch. Delivery order is preserved;
	// causal order is not guaranteed, so consumers must be order-tolerant.
	Publish(ctx context.Context, event *Event) error
}

// Transport owns the server connection. Implementations handle
// reconnection transparently; the sink is bound once per session and is
// never re-attached on reconnect.
type Transport interface {
	// Start consumes the server feed and publishes typed events into sink.
	// It returns only after context cancellation or a fatal transport error.
	Start(ctx context.Context, sink EventSink) error
	// Send delivers one client command over the active connection.
	Send(ctx context.Context, command Command) error
	// Shutdown closes the connection and releases transport resources.
	Shutdown(ctx context.Context) error
}

// CommandType identifies one client-to-server command.
type CommandType string

const (
	// CommandSendMessage submits a new message.
	CommandSendMessage CommandType = "message:send"
	// CommandReact toggles an emoji reaction on a message.
	CommandReact CommandType = "message:react"
	// CommandMarkRead marks a conversation's messages as read.
	CommandMarkRead CommandType = "messages:mark_read"
	// CommandTypingStart signals that the current user started typing.
	CommandTypingStart CommandType = "typing:start"
	// CommandTypingStop signals that the current user stopped typing.
	CommandTypingStop CommandType = "typing:stop"
)

// Command is the typed client-to-server envelope. Type selects exactly one
// payload branch.
type Command struct {
	Type        CommandType
	SendMessage *SendMessageCommand
	React       *ReactCommand
	MarkRead    *MarkReadCommand
	Typing      *TypingCommand
}

// SendMessageCommand submits a message under a client-generated temp id.
// ConversationID is empty for the first message of a brand-new conversation.
type SendMessageCommand struct {
	ConversationID string
	Type           MessageType
	Content        string
	MediaID        string
	TempID         string
	ReplyToID      string
}

// ReactCommand toggles one emoji reaction.
type ReactCommand struct {
	MessageID string
	Emoji     string
}

// MarkReadCommand marks a conversation read.
type MarkReadCommand struct {
	ConversationID string
}

// TypingCommand scopes a typing signal to one conversation.
type TypingCommand struct {
	ConversationID string
}

// Validate checks command envelope and payload coherence.
func (c Command) Validate() error {
	switch c.Type {
	case CommandSendMessage:
		if c.SendMessage == nil || c.SendMessage.TempID == "" {
			return fmt.Errorf("%w: %s requires temp id", ErrInvalidCommand, c.Type)
		}
		if c.SendMessage.Content == "" && c.SendMessage.MediaID == "" {
			return fmt.Errorf("%w: %s requires content or media", ErrInvalidCommand, c.Type)
		}
	case CommandReact:
		if c.React == nil || c.React.MessageID == "" || c.React.Emoji == "" {
			return fmt.Errorf("%w: %s requires message id and emoji", ErrInvalidCommand, c.Type)
		}
	case CommandMarkRead:
		if c.MarkRead == nil || c.MarkRead.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidCommand, c.Type)
		}
	case CommandTypingStart, CommandTypingStop:
		if c.Typing == nil || c.Typing.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidCommand, c.Type)
		}
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidCommand, c.Type)
	}

	return nil
}

// NotificationLevel grades a user-facing notification.
type NotificationLevel string

const (
	// NotificationInfo is an informational banner.
	NotificationInfo NotificationLevel = "info"
	// NotificationWarning is a warning banner.
	NotificationWarning NotificationLevel = "warning"
	// NotificationError is an error banner.
	NotificationError NotificationLevel = "error"
)

// Notification is a user-facing toast or banner.
type Notification struct {
	Level NotificationLevel
	Title string
	Body  string
}

// Notifier surfaces notifications to the UI layer. Implementations must not
// block: handlers run on the event dispatch path.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}
