package wirebridge

import (
	"fmt"
	"time"
)

// EventKind identifies one server-pushed event type. The set is closed:
// dispatch switches over it exhaustively.
type EventKind string

const (
	// EventKindMessageNew is pushed when a new message arrives in a conversation.
	EventKindMessageNew EventKind = "message:new"
	// EventKindMessageSent acknowledges a locally initiated send.
	EventKindMessageSent EventKind = "message:sent"
	// EventKindMessageDeleted is pushed when a message is soft-deleted.
	EventKindMessageDeleted EventKind = "message:deleted"
	// EventKindMessagesRead is pushed when messages are marked read.
	EventKindMessagesRead EventKind = "messages:read"
	// EventKindReactionAdded is pushed when a reaction is added to a message.
	EventKindReactionAdded EventKind = "reaction:added"
	// EventKindReactionRemoved is pushed when a reaction is removed from a message.
	EventKindReactionRemoved EventKind = "reaction:removed"
	// EventKindConversationUpdated carries authoritative conversation summary fields.
	EventKindConversationUpdated EventKind = "conversation:updated"
	// EventKindUserStatusChanged is pushed when an account status changes.
	EventKindUserStatusChanged EventKind = "user:status_changed"
	// EventKindMediaPermissionChanged is pushed when media upload permission changes.
	EventKindMediaPermissionChanged EventKind = "user:media_permission_changed"
	// EventKindAnnouncementNew is pushed when an announcement is created.
	EventKindAnnouncementNew EventKind = "announcement:new"
	// EventKindAnnouncementUpdated is pushed when an announcement changes or disappears.
	EventKindAnnouncementUpdated EventKind = "announcement:updated"
	// EventKindCacheInvalidate names cache keys that must be refetched.
	EventKindCacheInvalidate EventKind = "cache:invalidate"
	// EventKindSessionRevoked is pushed when the session is terminated server-side.
	EventKindSessionRevoked EventKind = "session:revoked"
	// EventKindAuthError is pushed on an authentication failure.
	EventKindAuthError EventKind = "auth_error"
	// EventKindTypingStarted is pushed when another participant starts typing.
	EventKindTypingStarted EventKind = "typing:started"
	// EventKindTypingStopped is pushed when another participant stops typing.
	EventKindTypingStopped EventKind = "typing:stopped"
)

// Event is the typed envelope delivered by the transport. Kind selects
// exactly one payload branch; all other branches are nil.
type Event struct {
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the server timestamp when known, else receive time.
	OccurredAt time.Time
	// Message carries the new message for message:new events.
	Message *Message
	// Sent carries the send acknowledgement for message:sent events.
	Sent *SentConfirmation
	// Deleted carries the soft-delete marker for message:deleted events.
	Deleted *MessageDeleted
	// Read carries read-receipt scope for messages:read events.
	Read *MessagesRead
	// ReactionAdded carries the full reaction record being added.
	ReactionAdded *ReactionAdded
	// ReactionRemoved identifies the (user, emoji) pair being removed.
	ReactionRemoved *ReactionRemoved
	// ConversationUpdate carries partial conversation summary fields.
	ConversationUpdate *ConversationUpdate
	// UserStatus carries an account status transition.
	UserStatus *UserStatusChange
	// MediaPermission carries a media permission change.
	MediaPermission *MediaPermissionChange
	// Announcement carries the created record for announcement:new events.
	Announcement *Announcement
	// AnnouncementUpdate carries the updated record for announcement:updated events.
	AnnouncementUpdate *AnnouncementUpdate
	// Invalidate lists cache keys to mark stale.
	Invalidate *CacheInvalidate
	// SessionRevoked carries the server-side termination reason.
	SessionRevoked *SessionRevoked
	// AuthError carries the authentication failure message.
	AuthError *AuthError
	// Typing identifies the participant for typing events.
	Typing *TypingChange
}

// SentConfirmation matches a provisional local message to its authoritative
// server record. TempID may be empty for sends the client did not originate.
type SentConfirmation struct {
	TempID  string
	Message Message
}

// MessageDeleted marks one message as soft-deleted.
type MessageDeleted struct {
	MessageID      string
	ConversationID string
	DeletedAt      time.Time
}

// MessagesRead scopes a read receipt. An empty MessageIDs slice means every
// SENT message in the conversation.
type MessagesRead struct {
	ConversationID string
	MessageIDs     []string
	ReadBy         string
	ReadAt         time.Time
}

// ReactionAdded carries the full reaction record for the add action.
type ReactionAdded struct {
	MessageID string
	Reaction  Reaction
}

// ReactionRemoved carries only the identifying pair for the remove action.
type ReactionRemoved struct {
	MessageID string
	UserID    string
	Emoji     string
}

// ConversationUpdate patches conversation summary fields. Nil fields mean
// "leave unchanged", not "reset".
type ConversationUpdate struct {
	ConversationID   string
	UnreadCount      *int
	AdminUnreadCount *int
	LastMessage      *string
	LastMessageAt    *time.Time
}

// UserStatusChange carries an account status transition.
type UserStatusChange struct {
	UserID string
	Status UserStatus
	Reason string
}

// MediaPermissionChange carries a media permission change. An empty UserID
// targets the current user.
type MediaPermissionChange struct {
	UserID          string
	MediaPermission bool
}

// AnnouncementUpdate carries the updated announcement. A nil Announcement
// means the record is no longer available server-side.
type AnnouncementUpdate struct {
	Announcement *Announcement
}

// CacheInvalidate is the generic escape hatch for server-side state changes
// with no dedicated handler.
type CacheInvalidate struct {
	Keys []Key
}

// SessionRevoked carries the server-side termination reason.
type SessionRevoked struct {
	Reason string
}

// AuthError carries an authentication failure message.
type AuthError struct {
	Message string
}

// TypingChange identifies the typing participant in one conversation.
type TypingChange struct {
	ConversationID string
	UserID         string
	DisplayName    string
}

// Validate checks envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}

	return validatePayloadByKind(e)
}

// validatePayloadByKind enforces payload branch requirements per event kind.
func validatePayloadByKind(e *Event) error {
	switch e.Kind {
	case EventKindMessageNew:
		if e.Message == nil {
			return fmt.Errorf("%w: %s requires message payload", ErrInvalidEvent, e.Kind)
		}
		if e.Message.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidEvent, e.Kind)
		}
	case EventKindMessageSent:
		if e.Sent == nil {
			return fmt.Errorf("%w: %s requires confirmation payload", ErrInvalidEvent, e.Kind)
		}
		if !e.Sent.Message.Confirmed() {
			return fmt.Errorf("%w: %s requires a confirmed message id", ErrInvalidEvent, e.Kind)
		}
		if e.Sent.Message.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidEvent, e.Kind)
		}
	case EventKindMessageDeleted:
		if e.Deleted == nil || e.Deleted.MessageID == "" || e.Deleted.ConversationID == "" {
			return fmt.Errorf("%w: %s requires message and conversation ids", ErrInvalidEvent, e.Kind)
		}
	case EventKindMessagesRead:
		if e.Read == nil || e.Read.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidEvent, e.Kind)
		}
	case EventKindReactionAdded:
		if e.ReactionAdded == nil || e.ReactionAdded.MessageID == "" {
			return fmt.Errorf("%w: %s requires message id", ErrInvalidEvent, e.Kind)
		}
		if e.ReactionAdded.Reaction.UserID == "" || e.ReactionAdded.Reaction.Emoji == "" {
			return fmt.Errorf("%w: %s requires user id and emoji", ErrInvalidEvent, e.Kind)
		}
	case EventKindReactionRemoved:
		if e.ReactionRemoved == nil || e.ReactionRemoved.MessageID == "" {
			return fmt.Errorf("%w: %s requires message id", ErrInvalidEvent, e.Kind)
		}
		if e.ReactionRemoved.UserID == "" || e.ReactionRemoved.Emoji == "" {
			return fmt.Errorf("%w: %s requires user id and emoji", ErrInvalidEvent, e.Kind)
		}
	case EventKindConversationUpdated:
		if e.ConversationUpdate == nil || e.ConversationUpdate.ConversationID == "" {
			return fmt.Errorf("%w: %s requires conversation id", ErrInvalidEvent, e.Kind)
		}
	case EventKindUserStatusChanged:
		if e.UserStatus == nil || e.UserStatus.UserID == "" {
			return fmt.Errorf("%w: %s requires user id", ErrInvalidEvent, e.Kind)
		}
	case EventKindMediaPermissionChanged:
		if e.MediaPermission == nil {
			return fmt.Errorf("%w: %s requires permission payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindAnnouncementNew:
		if e.Announcement == nil || e.Announcement.ID == "" {
			return fmt.Errorf("%w: %s requires announcement payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindAnnouncementUpdated:
		if e.AnnouncementUpdate == nil {
			return fmt.Errorf("%w: %s requires update payload", ErrInvalidEvent, e.Kind)
		}
		if e.AnnouncementUpdate.Announcement != nil && e.AnnouncementUpdate.Announcement.ID == "" {
			return fmt.Errorf("%w: %s requires announcement id", ErrInvalidEvent, e.Kind)
		}
	case EventKindCacheInvalidate:
		if e.Invalidate == nil {
			return fmt.Errorf("%w: %s requires key list", ErrInvalidEvent, e.Kind)
		}
	case EventKindSessionRevoked:
		if e.SessionRevoked == nil {
			return fmt.Errorf("%w: %s requires payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindAuthError:
		if e.AuthError == nil {
			return fmt.Errorf("%w: %s requires payload", ErrInvalidEvent, e.Kind)
		}
	case EventKindTypingStarted, EventKindTypingStopped:
		if e.Typing == nil || e.Typing.ConversationID == "" || e.Typing.UserID == "" {
			return fmt.Errorf("%w: %s requires conversation and user ids", ErrInvalidEvent, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
