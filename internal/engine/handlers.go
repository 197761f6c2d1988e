package engine

import (
	"context"

	"wirebridge/pkg/wirebridge"
)

// handleMessageNew appends an arriving message to its conversation's cached
// list, duplicate-safe, and optimistically bumps the unread counter for the
// non-staff party before the authoritative summary event arrives.
func (r *Router) handleMessageNew(ctx context.Context, event *wirebridge.Event) error {
	message := *event.Message

	current, authenticated := r.session.User()
	if authenticated && current.Role == wirebridge.RoleCustomer && message.SenderID != current.ID {
		r.bumpUnread(message.ConversationID)
	}

	r.updateMessages(wirebridge.MessagesKey(message.ConversationID), func(
		list wirebridge.PagedList[wirebridge.Message],
		exists bool,
	) (wirebridge.PagedList[wirebridge.Message], bool) {
		if !exists {
			return list, false
		}
		next := wirebridge.AppendNewest(list, message, func(item wirebridge.Message) bool {
			return item.ID == message.ID
		})

		return next, true
	})

	return nil
}

// bumpUnread optimistically increments the unread counter and last-activity
// timestamp on the cached conversation records. The authoritative values
// arrive later with conversation:updated.
func (r *Router) bumpUnread(conversationID string) {
	now := r.now()
	patch := func(conversation wirebridge.Conversation) wirebridge.Conversation {
		conversation.UnreadCount++
		conversation.LastMessageAt = now

		return conversation
	}

	r.updateConversations(func(
		list wirebridge.PagedList[wirebridge.Conversation],
	) (wirebridge.PagedList[wirebridge.Conversation], bool) {
		return wirebridge.MutateByID(list, func(conversation wirebridge.Conversation) bool {
			return conversation.ID == conversationID
		}, patch)
	})

	r.store.Update(wirebridge.ConversationKey(), func(value any, exists bool) (any, bool) {
		if !exists {
			return value, false
		}
		conversation, ok := value.(wirebridge.Conversation)
		if !ok || conversation.ID != conversationID {
			return value, false
		}

		return patch(conversation), true
	})
}

// handleMessageSent confirms a locally initiated send. Without a temp id
// there is nothing to match, so the conversation's list is invalidated to
// guarantee eventual consistency.
func (r *Router) handleMessageSent(ctx context.Context, event *wirebridge.Event) error {
	sent := event.Sent
	if sent.TempID == "" {
		r.logger.DebugContext(ctx, "send confirmation without temp id, invalidating",
			"conversation_id", sent.Message.ConversationID,
		)
		r.store.InvalidateKey(wirebridge.MessagesKey(sent.Message.ConversationID))

		return nil
	}

	r.reconcile(ctx, sent.TempID, sent.Message)

	return nil
}

// handleMessageDeleted flags the message as deleted in place. Content is
// retained for audit; only DeletedAt is set.
func (r *Router) handleMessageDeleted(ctx context.Context, event *wirebridge.Event) error {
	deleted := event.Deleted
	deletedAt := deleted.DeletedAt
	if deletedAt.IsZero() {
		deletedAt = r.now()
	}

	r.updateMessages(wirebridge.MessagesKey(deleted.ConversationID), func(
		list wirebridge.PagedList[wirebridge.Message],
		exists bool,
	) (wirebridge.PagedList[wirebridge.Message], bool) {
		if !exists {
			return list, false
		}

		return wirebridge.MutateByID(list, func(message wirebridge.Message) bool {
			return message.ID == deleted.MessageID
		}, func(message wirebridge.Message) wirebridge.Message {
			stamped := deletedAt
			message.DeletedAt = &stamped

			return message
		})
	})

	return nil
}

// handleMessagesRead marks an explicit id set read, or every SENT message
// when the set is absent. A receipt from the current user also clears the
// conversation's own unread counter locally.
func (r *Router) handleMessagesRead(ctx context.Context, event *wirebridge.Event) error {
	read := event.Read
	readAt := read.ReadAt
	if readAt.IsZero() {
		readAt = r.now()
	}

	explicit := make(map[string]struct{}, len(read.MessageIDs))
	for _, id := range read.MessageIDs {
		explicit[id] = struct{}{}
	}

	r.updateMessages(wirebridge.MessagesKey(read.ConversationID), func(
		list wirebridge.PagedList[wirebridge.Message],
		exists bool,
	) (wirebridge.PagedList[wirebridge.Message], bool) {
		if !exists {
			return list, false
		}

		return wirebridge.MutateByID(list, func(message wirebridge.Message) bool {
			if len(explicit) > 0 {
				_, listed := explicit[message.ID]
				return listed
			}

			return message.Status == wirebridge.MessageStatusSent
		}, func(message wirebridge.Message) wirebridge.Message {
			message.Status = wirebridge.MessageStatusRead
			stamped := readAt
			message.ReadAt = &stamped

			return message
		})
	})

	if current, authenticated := r.session.User(); authenticated && read.ReadBy == current.ID {
		r.updateConversations(func(
			list wirebridge.PagedList[wirebridge.Conversation],
		) (wirebridge.PagedList[wirebridge.Conversation], bool) {
			return wirebridge.MutateByID(list, func(conversation wirebridge.Conversation) bool {
				return conversation.ID == read.ConversationID
			}, func(conversation wirebridge.Conversation) wirebridge.Conversation {
				conversation.UnreadCount = 0

				return conversation
			})
		})
	}

	return nil
}

// handleReactionAdded appends the reaction to the target message across
// every cached message-list key, unique by (userID, emoji). A message may be
// visible in more than one paginated query, including the pending key.
func (r *Router) handleReactionAdded(ctx context.Context, event *wirebridge.Event) error {
	added := event.ReactionAdded
	r.applyToMessageEverywhere(added.MessageID, func(message wirebridge.Message) wirebridge.Message {
		if message.HasReaction(added.Reaction.UserID, added.Reaction.Emoji) {
			return message
		}
		reactions := append([]wirebridge.Reaction(nil), message.Reactions...)
		message.Reactions = append(reactions, added.Reaction)

		return message
	})

	return nil
}

// handleReactionRemoved filters the (userID, emoji) pair out of the target
// message across every cached message-list key.
func (r *Router) handleReactionRemoved(ctx context.Context, event *wirebridge.Event) error {
	removed := event.ReactionRemoved
	r.applyToMessageEverywhere(removed.MessageID, func(message wirebridge.Message) wirebridge.Message {
		kept := make([]wirebridge.Reaction, 0, len(message.Reactions))
		for _, reaction := range message.Reactions {
			if reaction.UserID == removed.UserID && reaction.Emoji == removed.Emoji {
				continue
			}
			kept = append(kept, reaction)
		}
		message.Reactions = kept

		return message
	})

	return nil
}

// applyToMessageEverywhere patches the message wherever it is cached.
func (r *Router) applyToMessageEverywhere(messageID string, patch func(wirebridge.Message) wirebridge.Message) {
	for _, key := range r.store.Keys(wirebridge.NamespaceMessages) {
		r.updateMessages(key, func(
			list wirebridge.PagedList[wirebridge.Message],
			exists bool,
		) (wirebridge.PagedList[wirebridge.Message], bool) {
			if !exists {
				return list, false
			}

			return wirebridge.MutateByID(list, func(message wirebridge.Message) bool {
				return message.ID == messageID
			}, patch)
		})
	}
}

// handleConversationUpdated patches summary fields unconditionally. A
// conversation id missing from the cached list cannot be synthesized
// client-side (related entities are absent), so the list is invalidated.
func (r *Router) handleConversationUpdated(ctx context.Context, event *wirebridge.Event) error {
	update := event.ConversationUpdate
	patch := func(conversation wirebridge.Conversation) wirebridge.Conversation {
		if update.UnreadCount != nil {
			conversation.UnreadCount = *update.UnreadCount
		}
		if update.AdminUnreadCount != nil {
			conversation.AdminUnreadCount = *update.AdminUnreadCount
		}
		if update.LastMessage != nil {
			conversation.LastMessage = *update.LastMessage
		}
		if update.LastMessageAt != nil {
			conversation.LastMessageAt = *update.LastMessageAt
		}

		return conversation
	}

	_, listCached := r.store.Get(wirebridge.ConversationsKey())
	patched := r.updateConversations(func(
		list wirebridge.PagedList[wirebridge.Conversation],
	) (wirebridge.PagedList[wirebridge.Conversation], bool) {
		return wirebridge.MutateByID(list, func(conversation wirebridge.Conversation) bool {
			return conversation.ID == update.ConversationID
		}, patch)
	})
	if listCached && !patched {
		r.logger.DebugContext(ctx, "summary for unseen conversation, invalidating list",
			"conversation_id", update.ConversationID,
		)
		r.store.Invalidate(wirebridge.NamespaceConversations)
	}

	r.store.Update(wirebridge.ConversationKey(), func(value any, exists bool) (any, bool) {
		if !exists {
			return value, false
		}
		conversation, ok := value.(wirebridge.Conversation)
		if !ok || conversation.ID != update.ConversationID {
			return value, false
		}

		return patch(conversation), true
	})

	return nil
}

// handleUserStatusChanged patches the current-user record when targeted and
// surfaces suspension/approval transitions as notifications.
func (r *Router) handleUserStatusChanged(ctx context.Context, event *wirebridge.Event) error {
	change := event.UserStatus
	current, authenticated := r.session.User()
	if !authenticated || current.ID != change.UserID {
		return nil
	}

	previous, _ := r.session.Patch(func(user wirebridge.User) wirebridge.User {
		user.Status = change.Status

		return user
	})
	if previous.Status == change.Status {
		return nil
	}

	switch change.Status {
	case wirebridge.UserStatusSuspended:
		r.notify(ctx, wirebridge.Notification{
			Level: wirebridge.NotificationWarning,
			Title: "Account suspended",
			Body:  change.Reason,
		})
	case wirebridge.UserStatusActive:
		if previous.Status == wirebridge.UserStatusPending {
			r.notify(ctx, wirebridge.Notification{
				Level: wirebridge.NotificationInfo,
				Title: "Account approved",
			})
		}
	case wirebridge.UserStatusPending:
	}

	return nil
}

// handleMediaPermissionChanged patches the current-user media permission.
// An absent user id targets the current user.
func (r *Router) handleMediaPermissionChanged(ctx context.Context, event *wirebridge.Event) error {
	change := event.MediaPermission
	current, authenticated := r.session.User()
	if !authenticated {
		return nil
	}
	if change.UserID != "" && change.UserID != current.ID {
		return nil
	}

	r.session.Patch(func(user wirebridge.User) wirebridge.User {
		user.MediaPermission = change.MediaPermission

		return user
	})

	return nil
}

// handleAnnouncementNew prepends the record to every cached announcement
// list, falling back to invalidation when none is cached yet.
func (r *Router) handleAnnouncementNew(ctx context.Context, event *wirebridge.Event) error {
	announcement := *event.Announcement

	keys := r.store.Keys(wirebridge.NamespaceAnnouncements)
	if len(keys) == 0 {
		r.store.Invalidate(wirebridge.NamespaceAnnouncements)

		return nil
	}

	for _, key := range keys {
		r.updateAnnouncements(key, func(
			list wirebridge.PagedList[wirebridge.Announcement],
		) (wirebridge.PagedList[wirebridge.Announcement], bool) {
			next := wirebridge.PrependNewest(list, announcement, func(item wirebridge.Announcement) bool {
				return item.ID == announcement.ID
			})

			return next, true
		})
	}

	return nil
}

// handleAnnouncementUpdated replaces the record in place for privileged
// viewers; for unprivileged viewers it re-applies the fetch-time visibility
// rule and removes the record when it is no longer visible. The standalone
// detail key follows the same decision.
func (r *Router) handleAnnouncementUpdated(ctx context.Context, event *wirebridge.Event) error {
	update := event.AnnouncementUpdate
	if update.Announcement == nil {
		// Nothing identifiable to patch or remove; refetch instead.
		r.store.Invalidate(wirebridge.NamespaceAnnouncements)

		return nil
	}

	announcement := *update.Announcement
	current, authenticated := r.session.User()
	visible := authenticated && current.Privileged()
	if !visible {
		role := wirebridge.RoleCustomer
		if authenticated {
			role = current.Role
		}
		visible = announcement.VisibleTo(role, r.now())
	}

	replaced := false
	for _, key := range r.store.Keys(wirebridge.NamespaceAnnouncements) {
		r.updateAnnouncements(key, func(
			list wirebridge.PagedList[wirebridge.Announcement],
		) (wirebridge.PagedList[wirebridge.Announcement], bool) {
			match := func(item wirebridge.Announcement) bool {
				return item.ID == announcement.ID
			}
			if !visible {
				return wirebridge.RemoveWhere(list, match)
			}
			next, ok := wirebridge.MutateByID(list, match, func(wirebridge.Announcement) wirebridge.Announcement {
				return announcement
			})
			replaced = replaced || ok

			return next, ok
		})
	}
	if visible && !replaced && len(r.store.Keys(wirebridge.NamespaceAnnouncements)) > 0 {
		// Newly visible record the cached lists never held; refetch.
		r.store.Invalidate(wirebridge.NamespaceAnnouncements)
	}

	detailKey := wirebridge.AnnouncementKey(announcement.ID)
	if _, cached := r.store.Get(detailKey); cached {
		if visible {
			r.store.Set(detailKey, announcement)
		} else {
			r.store.InvalidateKey(detailKey)
		}
	}

	return nil
}

// handleCacheInvalidate is the generic escape hatch: mark every named key
// stale regardless of type.
func (r *Router) handleCacheInvalidate(ctx context.Context, event *wirebridge.Event) error {
	r.store.InvalidateAll(event.Invalidate.Keys)

	return nil
}

// handleForcedLogout ends the session. The cache is not repaired; without a
// session it is meaningless.
func (r *Router) handleForcedLogout(ctx context.Context, reason string) error {
	r.typing.Reset()
	r.notify(ctx, wirebridge.Notification{
		Level: wirebridge.NotificationError,
		Title: "Session ended",
		Body:  reason,
	})
	if r.onForcedLogout != nil {
		r.onForcedLogout(reason)
	}

	return nil
}
