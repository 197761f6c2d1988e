package wirebridge

import "time"

// Role identifies which side of a conversation a user belongs to.
type Role string

const (
	// RoleCustomer is the non-staff party of a conversation.
	RoleCustomer Role = "customer"
	// RoleStaff is a support agent.
	RoleStaff Role = "staff"
	// RoleAdmin is a staff member with administrative privileges.
	RoleAdmin Role = "admin"
)

// MessageStatus tracks server-side delivery state of a message.
type MessageStatus string

const (
	// MessageStatusSent means the message has been delivered but not read.
	MessageStatusSent MessageStatus = "SENT"
	// MessageStatusRead means the recipient has read the message.
	MessageStatusRead MessageStatus = "READ"
	// MessageStatusFailed means the message could not be delivered.
	MessageStatusFailed MessageStatus = "FAILED"
)

// UserStatus tracks the lifecycle of an account.
type UserStatus string

const (
	// UserStatusPending means the account awaits staff approval.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive means the account is approved and usable.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended means the account has been suspended by staff.
	UserStatusSuspended UserStatus = "suspended"
)

// MessageType identifies the content shape of a message.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeMedia is a message referencing an uploaded media object.
	MessageTypeMedia MessageType = "media"
)

// Reaction is one emoji reaction on a message.
//
// Within a message, no two reactions share both UserID and Emoji.
type Reaction struct {
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Message is one chat message as cached on the client.
//
// A message is provisional while it carries only a TempID; it becomes
// confirmed exactly once, when the server assigns its ID. A confirmed message
// replaces its provisional counterpart in place, never alongside it.
type Message struct {
	// ID is the server-assigned identity; empty while provisional.
	ID string `json:"id,omitempty"`
	// TempID is the client-assigned identity used before confirmation.
	TempID         string        `json:"tempId,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	SenderID       string        `json:"senderId,omitempty"`
	Type           MessageType   `json:"type,omitempty"`
	Content        string        `json:"content,omitempty"`
	MediaID        string        `json:"mediaId,omitempty"`
	ReplyToID      string        `json:"replyToId,omitempty"`
	Status         MessageStatus `json:"status,omitempty"`
	Reactions      []Reaction    `json:"reactions,omitempty"`
	// DeletedAt marks a soft delete; content is retained but hidden in UI.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitzero"`
}

// Confirmed reports whether the message carries a server-assigned identity.
func (m Message) Confirmed() bool {
	return m.ID != ""
}

// Is reports whether other refers to the same message, matching on the
// server id first and falling back to the client temp id.
func (m Message) Is(other Message) bool {
	if m.ID != "" && other.ID != "" {
		return m.ID == other.ID
	}

	return m.TempID != "" && m.TempID == other.TempID
}

// HasReaction reports whether a (userID, emoji) pair is already present.
func (m Message) HasReaction(userID, emoji string) bool {
	for _, reaction := range m.Reactions {
		if reaction.UserID == userID && reaction.Emoji == emoji {
			return true
		}
	}

	return false
}

// Conversation is the summary record shown in conversation lists.
//
// LastMessage and LastMessageAt always reflect the most recently observed
// authoritative event, never a provisional local message.
type Conversation struct {
	ID               string    `json:"id"`
	CustomerID       string    `json:"customerId,omitempty"`
	UnreadCount      int       `json:"unreadCount"`
	AdminUnreadCount int       `json:"adminUnreadCount"`
	LastMessage      string    `json:"lastMessage,omitempty"`
	LastMessageAt    time.Time `json:"lastMessageAt,omitzero"`
}

// Announcement is a broadcast record shown to matching roles.
type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Body      string     `json:"body,omitempty"`
	IsActive  bool       `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	// Audience lists the roles the announcement targets; empty means everyone.
	Audience  []Role    `json:"audience,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// VisibleTo applies the fetch-time visibility rule: active, not expired,
// and role-targeted or untargeted.
func (a Announcement) VisibleTo(role Role, now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !now.Before(*a.ExpiresAt) {
		return false
	}
	if len(a.Audience) == 0 {
		return true
	}
	for _, audience := range a.Audience {
		if audience == role {
			return true
		}
	}

	return false
}

// User is the process-wide current-user record.
type User struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName,omitempty"`
	Role            Role       `json:"role"`
	Status          UserStatus `json:"status,omitempty"`
	MediaPermission bool       `json:"mediaPermission"`
}

// Privileged reports whether the user sees staff-only records such as
// inactive announcements.
func (u User) Privileged() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}
