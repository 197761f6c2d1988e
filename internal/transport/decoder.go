package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"wirebridge/pkg/wirebridge"
)

// wireEnvelope is the framing for every feed message and client command.
type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wire spellings that do not map one-to-one onto an EventKind.
const (
	wireTypeReaction = "message:reaction"

	reactionActionAdd    = "add"
	reactionActionRemove = "remove"
)

type wireMessagePayload struct {
	Message wirebridge.Message `json:"message"`
}

type wireSentPayload struct {
	TempID  string             `json:"tempId"`
	Message wirebridge.Message `json:"message"`
}

type wireDeletedPayload struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeletedAt      time.Time `json:"deletedAt"`
}

type wireReadPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageIDs     []string  `json:"messageIds"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}

// wireReactionPayload carries either a full reaction record (add) or just
// the identifying pair (remove); the action field discriminates.
type wireReactionPayload struct {
	MessageID string              `json:"messageId"`
	Action    string              `json:"action"`
	Reaction  wirebridge.Reaction `json:"reaction"`
}

type wireConversationPayload struct {
	ConversationID   string     `json:"conversationId"`
	UnreadCount      *int       `json:"unreadCount"`
	AdminUnreadCount *int       `json:"adminUnreadCount"`
	LastMessage      *string    `json:"lastMessage"`
	LastMessageAt    *time.Time `json:"lastMessageAt"`
}

type wireUserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type wireMediaPermissionPayload struct {
	UserID          string `json:"userId"`
	MediaPermission bool   `json:"mediaPermission"`
}

type wireAnnouncementPayload struct {
	Announcement *wirebridge.Announcement `json:"announcement"`
}

type wireInvalidatePayload struct {
	Keys []string `json:"keys"`
}

type wireSessionRevokedPayload struct {
	Reason string `json:"reason"`
}

type wireAuthErrorPayload struct {
	Message string `json:"message"`
}

type wireTypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
}

// decodeEvent maps one feed frame to a typed event. Unknown frame types are
// an error the read loop logs and skips; they are never fatal.
func decodeEvent(data []byte, receivedAt time.Time) (*wirebridge.Event, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	event := &wirebridge.Event{OccurredAt: receivedAt}

	switch envelope.Type {
	case string(wirebridge.EventKindMessageNew):
		var payload wireMessagePayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindMessageNew
		event.Message = &payload.Message
	case string(wirebridge.EventKindMessageSent):
		var payload wireSentPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindMessageSent
		event.Sent = &wirebridge.SentConfirmation{TempID: payload.TempID, Message: payload.Message}
	case string(wirebridge.EventKindMessageDeleted):
		var payload wireDeletedPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindMessageDeleted
		event.Deleted = &wirebridge.MessageDeleted{
			MessageID:      payload.MessageID,
			ConversationID: payload.ConversationID,
			DeletedAt:      payload.DeletedAt,
		}
	case string(wirebridge.EventKindMessagesRead):
		var payload wireReadPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindMessagesRead
		event.Read = &wirebridge.MessagesRead{
			ConversationID: payload.ConversationID,
			MessageIDs:     payload.MessageIDs,
			ReadBy:         payload.ReadBy,
			ReadAt:         payload.ReadAt,
		}
	case wireTypeReaction:
		var payload wireReactionPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		switch payload.Action {
		case reactionActionAdd:
			event.Kind = wirebridge.EventKindReactionAdded
			event.ReactionAdded = &wirebridge.ReactionAdded{
				MessageID: payload.MessageID,
				Reaction:  payload.Reaction,
			}
		case reactionActionRemove:
			event.Kind = wirebridge.EventKindReactionRemoved
			event.ReactionRemoved = &wirebridge.ReactionRemoved{
				MessageID: payload.MessageID,
				UserID:    payload.Reaction.UserID,
				Emoji:     payload.Reaction.Emoji,
			}
		default:
			return nil, fmt.Errorf("decode %s: unknown action %q", envelope.Type, payload.Action)
		}
	case string(wirebridge.EventKindConversationUpdated):
		var payload wireConversationPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindConversationUpdated
		event.ConversationUpdate = &wirebridge.ConversationUpdate{
			ConversationID:   payload.ConversationID,
			UnreadCount:      payload.UnreadCount,
			AdminUnreadCount: payload.AdminUnreadCount,
			LastMessage:      payload.LastMessage,
			LastMessageAt:    payload.LastMessageAt,
		}
	case string(wirebridge.EventKindUserStatusChanged):
		var payload wireUserStatusPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindUserStatusChanged
		event.UserStatus = &wirebridge.UserStatusChange{
			UserID: payload.UserID,
			Status: wirebridge.UserStatus(payload.Status),
			Reason: payload.Reason,
		}
	case string(wirebridge.EventKindMediaPermissionChanged):
		var payload wireMediaPermissionPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindMediaPermissionChanged
		event.MediaPermission = &wirebridge.MediaPermissionChange{
			UserID:          payload.UserID,
			MediaPermission: payload.MediaPermission,
		}
	case string(wirebridge.EventKindAnnouncementNew):
		var payload wireAnnouncementPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		if payload.Announcement == nil {
			return nil, fmt.Errorf("decode %s: missing announcement", envelope.Type)
		}
		event.Kind = wirebridge.EventKindAnnouncementNew
		event.Announcement = payload.Announcement
	case string(wirebridge.EventKindAnnouncementUpdated):
		var payload wireAnnouncementPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindAnnouncementUpdated
		event.AnnouncementUpdate = &wirebridge.AnnouncementUpdate{Announcement: payload.Announcement}
	case string(wirebridge.EventKindCacheInvalidate):
		var payload wireInvalidatePayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		keys := make([]wirebridge.Key, 0, len(payload.Keys))
		for _, raw := range payload.Keys {
			key, err := wirebridge.ParseKey(raw)
			if err != nil {
				// Unknown keys cannot be marked stale; skip rather than
				// reject the whole batch.
				continue
			}
			keys = append(keys, key)
		}
		event.Kind = wirebridge.EventKindCacheInvalidate
		event.Invalidate = &wirebridge.CacheInvalidate{Keys: keys}
	case string(wirebridge.EventKindSessionRevoked):
		var payload wireSessionRevokedPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindSessionRevoked
		event.SessionRevoked = &wirebridge.SessionRevoked{Reason: payload.Reason}
	case string(wirebridge.EventKindAuthError):
		var payload wireAuthErrorPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKindAuthError
		event.AuthError = &wirebridge.AuthError{Message: payload.Message}
	case string(wirebridge.EventKindTypingStarted), string(wirebridge.EventKindTypingStopped):
		var payload wireTypingPayload
		if err := unmarshalPayload(envelope, &payload); err != nil {
			return nil, err
		}
		event.Kind = wirebridge.EventKind(envelope.Type)
		event.Typing = &wirebridge.TypingChange{
			ConversationID: payload.ConversationID,
			UserID:         payload.UserID,
			DisplayName:    payload.DisplayName,
		}
	default:
		return nil, fmt.Errorf("decode: unknown event type %q", envelope.Type)
	}

	return event, nil
}

func unmarshalPayload(envelope wireEnvelope, target any) error {
	if err := json.Unmarshal(envelope.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.Type, err)
	}

	return nil
}

type wireSendMessageCommand struct {
	ConversationID string `json:"conversationId,omitempty"`
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	MediaID        string `json:"mediaId,omitempty"`
	TempID         string `json:"tempId"`
	ReplyToID      string `json:"replyToId,omitempty"`
}

type wireReactCommand struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type wireConversationCommand struct {
	ConversationID string `json:"conversationId"`
}

// encodeCommand frames one validated client command for the wire.
func encodeCommand(command wirebridge.Command) ([]byte, error) {
	if err := command.Validate(); err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	var payload any
	switch command.Type {
	case wirebridge.CommandSendMessage:
		payload = wireSendMessageCommand{
			ConversationID: command.SendMessage.ConversationID,
			Type:           string(command.SendMessage.Type),
			Content:        command.SendMessage.Content,
			MediaID:        command.SendMessage.MediaID,
			TempID:         command.SendMessage.TempID,
			ReplyToID:      command.SendMessage.ReplyToID,
		}
	case wirebridge.CommandReact:
		payload = wireReactCommand{
			MessageID: command.React.MessageID,
			Emoji:     command.React.Emoji,
		}
	case wirebridge.CommandMarkRead:
		payload = wireConversationCommand{ConversationID: command.MarkRead.ConversationID}
	case wirebridge.CommandTypingStart, wirebridge.CommandTypingStop:
		payload = wireConversationCommand{ConversationID: command.Typing.ConversationID}
	default:
		return nil, fmt.Errorf("encode command: unsupported type %q", command.Type)
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", command.Type, err)
	}

	framed, err := json.Marshal(wireEnvelope{Type: string(command.Type), Payload: rawPayload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", command.Type, err)
	}

	return framed, nil
}
