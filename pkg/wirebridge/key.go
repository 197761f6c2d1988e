package wirebridge

import (
	"fmt"
	"strings"
)

// Namespace is the leading segment of a cache key. Prefix invalidation
// matches on the namespace alone.
type Namespace string

const (
	// NamespaceMessages holds per-conversation paged message lists.
	NamespaceMessages Namespace = "messages"
	// NamespaceConversations holds the paged conversation list.
	NamespaceConversations Namespace = "conversations"
	// NamespaceConversation holds the current user's own conversation record.
	NamespaceConversation Namespace = "conversation"
	// NamespaceAnnouncements holds paged announcement lists.
	NamespaceAnnouncements Namespace = "announcements"
	// NamespaceAnnouncement holds single-announcement detail records.
	NamespaceAnnouncement Namespace = "announcement"
	// NamespaceAdminUsers holds the admin user listing.
	NamespaceAdminUsers Namespace = "admin:users"
	// NamespaceAdminAuditLogs holds the admin audit log listing.
	NamespaceAdminAuditLogs Namespace = "admin:audit-logs"
)

// pendingSegment is the wire spelling of the pending message key id.
const pendingSegment = "unknown"

// Key identifies one query cache entry. Keys are compared structurally.
//
// Pending marks the distinguished unknown-conversation variant of the
// messages key, used for optimistic sends filed before the server has
// assigned a conversation id. A pending key never carries an ID.
type Key struct {
	Namespace Namespace
	ID        string
	Pending   bool
}

// MessagesKey addresses the paged message list of one conversation.
func MessagesKey(conversationID string) Key {
	return Key{Namespace: NamespaceMessages, ID: conversationID}
}

// PendingMessagesKey addresses the message list of a conversation whose
// server-side id is not yet known.
func PendingMessagesKey() Key {
	return Key{Namespace: NamespaceMessages, Pending: true}
}

// ConversationsKey addresses the paged conversation list.
func ConversationsKey() Key {
	return Key{Namespace: NamespaceConversations}
}

// ConversationKey addresses the current user's own conversation record.
func ConversationKey() Key {
	return Key{Namespace: NamespaceConversation}
}

// AnnouncementsKey addresses the paged announcement list.
func AnnouncementsKey() Key {
	return Key{Namespace: NamespaceAnnouncements}
}

// AnnouncementKey addresses one announcement detail record.
func AnnouncementKey(id string) Key {
	return Key{Namespace: NamespaceAnnouncement, ID: id}
}

// InNamespace reports whether the key belongs to the given namespace.
func (k Key) InNamespace(namespace Namespace) bool {
	return k.Namespace == namespace
}

// String renders the key in its wire spelling, e.g. "messages:c1".
func (k Key) String() string {
	switch {
	case k.Pending:
		return string(k.Namespace) + ":" + pendingSegment
	case k.ID != "":
		return string(k.Namespace) + ":" + k.ID
	default:
		return string(k.Namespace)
	}
}

// knownNamespaces is ordered so namespaces containing a separator are
// matched before shorter ones.
var knownNamespaces = []Namespace{
	NamespaceAdminAuditLogs,
	NamespaceAdminUsers,
	NamespaceMessages,
	NamespaceConversations,
	NamespaceConversation,
	NamespaceAnnouncements,
	NamespaceAnnouncement,
}

// ParseKey parses the wire spelling used by cache:invalidate events.
func ParseKey(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Key{}, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	for _, namespace := range knownNamespaces {
		prefix := string(namespace)
		if trimmed == prefix {
			return Key{Namespace: namespace}, nil
		}
		if !strings.HasPrefix(trimmed, prefix+":") {
			continue
		}
		id := trimmed[len(prefix)+1:]
		if id == "" {
			return Key{}, fmt.Errorf("%w: %q has empty id segment", ErrInvalidKey, raw)
		}
		if namespace == NamespaceMessages && id == pendingSegment {
			return PendingMessagesKey(), nil
		}

		return Key{Namespace: namespace, ID: id}, nil
	}

	return Key{}, fmt.Errorf("%w: unknown namespace in %q", ErrInvalidKey, raw)
}
