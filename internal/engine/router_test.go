package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"wirebridge/internal/cache"
	"wirebridge/pkg/wirebridge"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type captureNotifier struct {
	notifications []wirebridge.Notification
}

func (c *captureNotifier) Notify(_ context.Context, notification wirebridge.Notification) {
	c.notifications = append(c.notifications, notification)
}

type fixture struct {
	store         *cache.Store
	session       *Session
	typing        *TypingSet
	notifier      *captureNotifier
	router        *Router
	logoutReasons []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    cache.New(cache.WithClock(func() time.Time { return fixedNow })),
		session:  NewSession(),
		typing:   NewTypingSet(),
		notifier: &captureNotifier{},
	}
	f.router = New(f.store, f.session, f.typing,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return fixedNow }),
		WithForcedLogout(func(reason string) {
			f.logoutReasons = append(f.logoutReasons, reason)
		}),
	)

	return f
}

func (f *fixture) publish(t *testing.T, event *wirebridge.Event) {
	t.Helper()

	if err := f.router.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish %s: %v", event.Kind, err)
	}
}

func (f *fixture) seedMessages(t *testing.T, key wirebridge.Key, messages ...wirebridge.Message) {
	t.Helper()

	f.store.Set(key, wirebridge.PagedList[wirebridge.Message]{
		Pages: []wirebridge.Page[wirebridge.Message]{{Items: messages}},
	})
}

func (f *fixture) messages(t *testing.T, key wirebridge.Key) []wirebridge.Message {
	t.Helper()

	value, exists := f.store.Get(key)
	if !exists {
		t.Fatalf("no entry for %s", key)
	}
	list, ok := value.(wirebridge.PagedList[wirebridge.Message])
	if !ok {
		t.Fatalf("entry for %s is %T", key, value)
	}

	return wirebridge.Items(list)
}

func (f *fixture) seedConversations(t *testing.T, conversations ...wirebridge.Conversation) {
	t.Helper()

	f.store.Set(wirebridge.ConversationsKey(), wirebridge.PagedList[wirebridge.Conversation]{
		Pages: []wirebridge.Page[wirebridge.Conversation]{{Items: conversations}},
	})
}

func (f *fixture) conversation(t *testing.T, conversationID string) wirebridge.Conversation {
	t.Helper()

	value, exists := f.store.Get(wirebridge.ConversationsKey())
	if !exists {
		t.Fatal("no conversation list cached")
	}
	list := value.(wirebridge.PagedList[wirebridge.Conversation])
	conversation, found := wirebridge.Find(list, func(c wirebridge.Conversation) bool {
		return c.ID == conversationID
	})
	if !found {
		t.Fatalf("conversation %s not in list", conversationID)
	}

	return conversation
}

func (f *fixture) seedAnnouncements(t *testing.T, announcements ...wirebridge.Announcement) {
	t.Helper()

	f.store.Set(wirebridge.AnnouncementsKey(), wirebridge.PagedList[wirebridge.Announcement]{
		Pages: []wirebridge.Page[wirebridge.Announcement]{{Items: announcements}},
	})
}

func (f *fixture) announcements(t *testing.T) []wirebridge.Announcement {
	t.Helper()

	value, exists := f.store.Get(wirebridge.AnnouncementsKey())
	if !exists {
		t.Fatal("no announcement list cached")
	}

	return wirebridge.Items(value.(wirebridge.PagedList[wirebridge.Announcement]))
}

func TestPublishRejectsMalformedEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.router.Publish(context.Background(), &wirebridge.Event{Kind: wirebridge.EventKindMessageNew})
	if !errors.Is(err, wirebridge.ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestHandleMessageNewAppendsIdempotently(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	key := wirebridge.MessagesKey("c1")
	f.seedMessages(t, key, wirebridge.Message{ID: "m1", ConversationID: "c1"})

	event := &wirebridge.Event{
		Kind:    wirebridge.EventKindMessageNew,
		Message: &wirebridge.Message{ID: "m2", ConversationID: "c1", SenderID: "u2"},
	}
	f.publish(t, event)
	f.publish(t, event)

	messages := f.messages(t, key)
	if len(messages) != 2 {
		t.Fatalf("message count = %d, want 2", len(messages))
	}
	if messages[1].ID != "m2" {
		t.Fatalf("appended id = %s, want m2", messages[1].ID)
	}
}

func TestHandleMessageNewAbsentListIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publish(t, &wirebridge.Event{
		Kind:    wirebridge.EventKindMessageNew,
		Message: &wirebridge.Message{ID: "m1", ConversationID: "c1"},
	})

	if _, exists := f.store.Get(wirebridge.MessagesKey("c1")); exists {
		t.Fatal("handler created a list it should not have")
	}
}

func TestHandleMessageNewUnreadBump(t *testing.T) {
	tests := []struct {
		name       string
		user       wirebridge.User
		senderID   string
		wantUnread int
	}{
		{
			name:       "customer receiving foreign message bumps",
			user:       wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer},
			senderID:   "u2",
			wantUnread: 4,
		},
		{
			name:       "customer's own message does not bump",
			user:       wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer},
			senderID:   "u1",
			wantUnread: 3,
		},
		{
			name:       "staff does not bump locally",
			user:       wirebridge.User{ID: "s1", Role: wirebridge.RoleStaff},
			senderID:   "u2",
			wantUnread: 3,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.session.SetUser(testCase.user)
			f.seedConversations(t, wirebridge.Conversation{ID: "c1", UnreadCount: 3})
			f.store.Set(wirebridge.ConversationKey(), wirebridge.Conversation{ID: "c1", UnreadCount: 3})
			f.seedMessages(t, wirebridge.MessagesKey("c1"))

			f.publish(t, &wirebridge.Event{
				Kind:    wirebridge.EventKindMessageNew,
				Message: &wirebridge.Message{ID: "m9", ConversationID: "c1", SenderID: testCase.senderID},
			})

			if got := f.conversation(t, "c1").UnreadCount; got != testCase.wantUnread {
				t.Fatalf("list unread = %d, want %d", got, testCase.wantUnread)
			}
			value, _ := f.store.Get(wirebridge.ConversationKey())
			if got := value.(wirebridge.Conversation).UnreadCount; got != testCase.wantUnread {
				t.Fatalf("own record unread = %d, want %d", got, testCase.wantUnread)
			}
		})
	}
}

func TestHandleMessageDeletedIsNonDestructive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	key := wirebridge.MessagesKey("c1")
	f.seedMessages(t, key,
		wirebridge.Message{ID: "m1", ConversationID: "c1", Content: "keep me"},
		wirebridge.Message{ID: "m2", ConversationID: "c1"},
	)

	f.publish(t, &wirebridge.Event{
		Kind:    wirebridge.EventKindMessageDeleted,
		Deleted: &wirebridge.MessageDeleted{MessageID: "m1", ConversationID: "c1"},
	})

	messages := f.messages(t, key)
	if len(messages) != 2 {
		t.Fatalf("message count = %d, want 2", len(messages))
	}
	if messages[0].DeletedAt == nil || !messages[0].DeletedAt.Equal(fixedNow) {
		t.Fatalf("DeletedAt = %v, want %v", messages[0].DeletedAt, fixedNow)
	}
	if messages[0].Content != "keep me" {
		t.Fatal("content was destroyed on delete")
	}
	if messages[1].DeletedAt != nil {
		t.Fatal("other message marked deleted")
	}
}

func TestHandleMessagesRead(t *testing.T) {
	tests := []struct {
		name       string
		messageIDs []string
		wantRead   map[string]bool
	}{
		{
			name:       "explicit set marks only the listed ids",
			messageIDs: []string{"m1"},
			wantRead:   map[string]bool{"m1": true, "m2": false, "m3": false},
		},
		{
			name:     "absent set marks every SENT message",
			wantRead: map[string]bool{"m1": true, "m2": true, "m3": false},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			key := wirebridge.MessagesKey("c1")
			f.seedMessages(t, key,
				wirebridge.Message{ID: "m1", ConversationID: "c1", Status: wirebridge.MessageStatusSent},
				wirebridge.Message{ID: "m2", ConversationID: "c1", Status: wirebridge.MessageStatusSent},
				wirebridge.Message{ID: "m3", ConversationID: "c1", Status: wirebridge.MessageStatusFailed},
			)

			f.publish(t, &wirebridge.Event{
				Kind: wirebridge.EventKindMessagesRead,
				Read: &wirebridge.MessagesRead{
					ConversationID: "c1",
					MessageIDs:     testCase.messageIDs,
					ReadBy:         "u2",
					ReadAt:         fixedNow,
				},
			})

			for _, message := range f.messages(t, key) {
				wantRead := testCase.wantRead[message.ID]
				isRead := message.Status == wirebridge.MessageStatusRead
				if isRead != wantRead {
					t.Fatalf("message %s read = %v, want %v", message.ID, isRead, wantRead)
				}
				if wantRead && (message.ReadAt == nil || !message.ReadAt.Equal(fixedNow)) {
					t.Fatalf("message %s ReadAt = %v", message.ID, message.ReadAt)
				}
			}
		})
	}
}

func TestHandleMessagesReadByCurrentUserClearsUnread(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.session.SetUser(wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer})
	f.seedConversations(t, wirebridge.Conversation{ID: "c1", UnreadCount: 5})
	f.seedMessages(t, wirebridge.MessagesKey("c1"))

	f.publish(t, &wirebridge.Event{
		Kind: wirebridge.EventKindMessagesRead,
		Read: &wirebridge.MessagesRead{ConversationID: "c1", ReadBy: "u1"},
	})

	if got := f.conversation(t, "c1").UnreadCount; got != 0 {
		t.Fatalf("unread = %d, want 0", got)
	}
}

func TestHandleReactionsAcrossCachedLists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	knownKey := wirebridge.MessagesKey("c1")
	pendingKey := wirebridge.PendingMessagesKey()
	f.seedMessages(t, knownKey, wirebridge.Message{ID: "m1", ConversationID: "c1"})
	f.seedMessages(t, pendingKey, wirebridge.Message{ID: "m1"})

	added := &wirebridge.Event{
		Kind: wirebridge.EventKindReactionAdded,
		ReactionAdded: &wirebridge.ReactionAdded{
			MessageID: "m1",
			Reaction:  wirebridge.Reaction{UserID: "u1", Emoji: "👍", CreatedAt: fixedNow},
		},
	}
	f.publish(t, added)
	f.publish(t, added)

	for _, key := range []wirebridge.Key{knownKey, pendingKey} {
		messages := f.messages(t, key)
		if len(messages[0].Reactions) != 1 {
			t.Fatalf("reactions at %s = %d, want 1", key, len(messages[0].Reactions))
		}
	}

	f.publish(t, &wirebridge.Event{
		Kind: wirebridge.EventKindReactionRemoved,
		ReactionRemoved: &wirebridge.ReactionRemoved{
			MessageID: "m1", UserID: "u1", Emoji: "👍",
		},
	})

	for _, key := range []wirebridge.Key{knownKey, pendingKey} {
		messages := f.messages(t, key)
		if len(messages[0].Reactions) != 0 {
			t.Fatalf("reactions at %s = %d, want 0", key, len(messages[0].Reactions))
		}
	}
}

func TestHandleConversationUpdated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedConversations(t,
		wirebridge.Conversation{ID: "c1", UnreadCount: 1, LastMessage: "old"},
		wirebridge.Conversation{ID: "c2", UnreadCount: 7},
	)
	f.store.Set(wirebridge.ConversationKey(), wirebridge.Conversation{ID: "c1", UnreadCount: 1})

	unread := 0
	last := "hello"
	f.publish(t, &wirebridge.Event{
		Kind: wirebridge.EventKindConversationUpdated,
		ConversationUpdate: &wirebridge.ConversationUpdate{
			ConversationID: "c1",
			UnreadCount:    &unread,
			LastMessage:    &last,
		},
	})

	got := f.conversation(t, "c1")
	if got.UnreadCount != 0 || got.LastMessage != "hello" {
		t.Fatalf("patched conversation = %+v", got)
	}
	if f.conversation(t, "c2").UnreadCount != 7 {
		t.Fatal("unrelated conversation was patched")
	}
	value, _ := f.store.Get(wirebridge.ConversationKey())
	if value.(wirebridge.Conversation).UnreadCount != 0 {
		t.Fatal("own record not patched")
	}
}

func TestHandleConversationUpdatedUnseenIdInvalidatesList(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedConversations(t, wirebridge.Conversation{ID: "c1"})

	f.publish(t, &wirebridge.Event{
		Kind:               wirebridge.EventKindConversationUpdated,
		ConversationUpdate: &wirebridge.ConversationUpdate{ConversationID: "c-unseen"},
	})

	if !f.store.Stale(wirebridge.ConversationsKey()) {
		t.Fatal("list not invalidated for unseen conversation")
	}
}

func TestHandleUserStatusChanged(t *testing.T) {
	tests := []struct {
		name       string
		user       wirebridge.User
		change     wirebridge.UserStatusChange
		wantStatus wirebridge.UserStatus
		wantLevel  wirebridge.NotificationLevel
		wantTitle  string
	}{
		{
			name:       "suspension warns",
			user:       wirebridge.User{ID: "u1", Status: wirebridge.UserStatusActive},
			change:     wirebridge.UserStatusChange{UserID: "u1", Status: wirebridge.UserStatusSuspended, Reason: "abuse"},
			wantStatus: wirebridge.UserStatusSuspended,
			wantLevel:  wirebridge.NotificationWarning,
			wantTitle:  "Account suspended",
		},
		{
			name:       "approval informs",
			user:       wirebridge.User{ID: "u1", Status: wirebridge.UserStatusPending},
			change:     wirebridge.UserStatusChange{UserID: "u1", Status: wirebridge.UserStatusActive},
			wantStatus: wirebridge.UserStatusActive,
			wantLevel:  wirebridge.NotificationInfo,
			wantTitle:  "Account approved",
		},
		{
			name:       "other user's change is ignored",
			user:       wirebridge.User{ID: "u1", Status: wirebridge.UserStatusActive},
			change:     wirebridge.UserStatusChange{UserID: "u2", Status: wirebridge.UserStatusSuspended},
			wantStatus: wirebridge.UserStatusActive,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.session.SetUser(testCase.user)

			f.publish(t, &wirebridge.Event{
				Kind:       wirebridge.EventKindUserStatusChanged,
				UserStatus: &testCase.change,
			})

			user, _ := f.session.User()
			if user.Status != testCase.wantStatus {
				t.Fatalf("status = %s, want %s", user.Status, testCase.wantStatus)
			}
			if testCase.wantTitle == "" {
				if len(f.notifier.notifications) != 0 {
					t.Fatalf("unexpected notifications: %+v", f.notifier.notifications)
				}
				return
			}
			if len(f.notifier.notifications) != 1 {
				t.Fatalf("notification count = %d, want 1", len(f.notifier.notifications))
			}
			got := f.notifier.notifications[0]
			if got.Level != testCase.wantLevel || got.Title != testCase.wantTitle {
				t.Fatalf("notification = %+v", got)
			}
		})
	}
}

func TestHandleMediaPermissionChanged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.session.SetUser(wirebridge.User{ID: "u1"})

	// An absent user id targets the current user.
	f.publish(t, &wirebridge.Event{
		Kind:            wirebridge.EventKindMediaPermissionChanged,
		MediaPermission: &wirebridge.MediaPermissionChange{MediaPermission: true},
	})
	if user, _ := f.session.User(); !user.MediaPermission {
		t.Fatal("permission not granted")
	}

	f.publish(t, &wirebridge.Event{
		Kind:            wirebridge.EventKindMediaPermissionChanged,
		MediaPermission: &wirebridge.MediaPermissionChange{UserID: "u2", MediaPermission: false},
	})
	if user, _ := f.session.User(); !user.MediaPermission {
		t.Fatal("another user's change was applied")
	}
}

func TestHandleAnnouncementNewPrepends(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedAnnouncements(t, wirebridge.Announcement{ID: "a1", IsActive: true})

	event := &wirebridge.Event{
		Kind:         wirebridge.EventKindAnnouncementNew,
		Announcement: &wirebridge.Announcement{ID: "a2", IsActive: true},
	}
	f.publish(t, event)
	f.publish(t, event)

	announcements := f.announcements(t)
	if len(announcements) != 2 {
		t.Fatalf("announcement count = %d, want 2", len(announcements))
	}
	if announcements[0].ID != "a2" {
		t.Fatalf("head id = %s, want a2", announcements[0].ID)
	}
}

func TestHandleAnnouncementUpdated(t *testing.T) {
	tests := []struct {
		name     string
		user     wirebridge.User
		update   wirebridge.Announcement
		wantKept bool
	}{
		{
			name:     "privileged viewer keeps inactive record",
			user:     wirebridge.User{ID: "s1", Role: wirebridge.RoleAdmin},
			update:   wirebridge.Announcement{ID: "a1", IsActive: false, Title: "edited"},
			wantKept: true,
		},
		{
			name:     "customer keeps visible record",
			user:     wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer},
			update:   wirebridge.Announcement{ID: "a1", IsActive: true, Title: "edited"},
			wantKept: true,
		},
		{
			name:     "customer loses deactivated record",
			user:     wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer},
			update:   wirebridge.Announcement{ID: "a1", IsActive: false},
			wantKept: false,
		},
		{
			name:     "customer loses record retargeted to staff",
			user:     wirebridge.User{ID: "u1", Role: wirebridge.RoleCustomer},
			update:   wirebridge.Announcement{ID: "a1", IsActive: true, Audience: []wirebridge.Role{wirebridge.RoleStaff}},
			wantKept: false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.session.SetUser(testCase.user)
			f.seedAnnouncements(t, wirebridge.Announcement{ID: "a1", IsActive: true, Title: "original"})
			f.store.Set(wirebridge.AnnouncementKey("a1"), wirebridge.Announcement{ID: "a1", IsActive: true})

			f.publish(t, &wirebridge.Event{
				Kind:               wirebridge.EventKindAnnouncementUpdated,
				AnnouncementUpdate: &wirebridge.AnnouncementUpdate{Announcement: &testCase.update},
			})

			announcements := f.announcements(t)
			if testCase.wantKept {
				if len(announcements) != 1 || announcements[0].Title != testCase.update.Title {
					t.Fatalf("announcements = %+v", announcements)
				}
				if f.store.Stale(wirebridge.AnnouncementKey("a1")) {
					t.Fatal("detail key went stale for a visible record")
				}
				return
			}
			if len(announcements) != 0 {
				t.Fatalf("record still listed: %+v", announcements)
			}
			if !f.store.Stale(wirebridge.AnnouncementKey("a1")) {
				t.Fatal("detail key not invalidated for a hidden record")
			}
		})
	}
}

func TestHandleAnnouncementUpdatedNilRecordInvalidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedAnnouncements(t, wirebridge.Announcement{ID: "a1", IsActive: true})

	f.publish(t, &wirebridge.Event{
		Kind:               wirebridge.EventKindAnnouncementUpdated,
		AnnouncementUpdate: &wirebridge.AnnouncementUpdate{},
	})

	if !f.store.Stale(wirebridge.AnnouncementsKey()) {
		t.Fatal("list not invalidated for unidentifiable update")
	}
}

func TestHandleCacheInvalidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedMessages(t, wirebridge.MessagesKey("c1"))
	f.seedConversations(t)

	f.publish(t, &wirebridge.Event{
		Kind: wirebridge.EventKindCacheInvalidate,
		Invalidate: &wirebridge.CacheInvalidate{Keys: []wirebridge.Key{
			wirebridge.MessagesKey("c1"),
			wirebridge.ConversationsKey(),
		}},
	})

	if !f.store.Stale(wirebridge.MessagesKey("c1")) || !f.store.Stale(wirebridge.ConversationsKey()) {
		t.Fatal("named keys not stale")
	}
}

func TestHandleForcedLogout(t *testing.T) {
	tests := []struct {
		name  string
		event *wirebridge.Event
		want  string
	}{
		{
			name: "session revoked",
			event: &wirebridge.Event{
				Kind:           wirebridge.EventKindSessionRevoked,
				SessionRevoked: &wirebridge.SessionRevoked{Reason: "logged in elsewhere"},
			},
			want: "logged in elsewhere",
		},
		{
			name: "auth error",
			event: &wirebridge.Event{
				Kind:      wirebridge.EventKindAuthError,
				AuthError: &wirebridge.AuthError{Message: "token expired"},
			},
			want: "token expired",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.typing.Start("c1", "u2", "Sam")

			f.publish(t, testCase.event)

			if len(f.logoutReasons) != 1 || f.logoutReasons[0] != testCase.want {
				t.Fatalf("logout reasons = %v, want [%s]", f.logoutReasons, testCase.want)
			}
			if len(f.typing.Active("c1")) != 0 {
				t.Fatal("typing set not reset")
			}
			if len(f.notifier.notifications) != 1 || f.notifier.notifications[0].Level != wirebridge.NotificationError {
				t.Fatalf("notifications = %+v", f.notifier.notifications)
			}
		})
	}
}

func TestHandleTypingEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publish(t, &wirebridge.Event{
		Kind:   wirebridge.EventKindTypingStarted,
		Typing: &wirebridge.TypingChange{ConversationID: "c1", UserID: "u2", DisplayName: "Sam"},
	})
	if active := f.typing.Active("c1"); active["u2"] != "Sam" {
		t.Fatalf("active = %v", active)
	}

	f.publish(t, &wirebridge.Event{
		Kind:   wirebridge.EventKindTypingStopped,
		Typing: &wirebridge.TypingChange{ConversationID: "c1", UserID: "u2"},
	})
	if len(f.typing.Active("c1")) != 0 {
		t.Fatal("member not removed")
	}
}

func TestRunSafely(t *testing.T) {
	t.Parallel()

	if err := runSafely("scope", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantErr := errors.New("boom")
	if err := runSafely("scope", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}

	err := runSafely("scope", func() error { panic("handler bug") })
	if err == nil {
		t.Fatal("panic not converted to error")
	}
}
