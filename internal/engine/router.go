// Package engine implements the cache synchronization engine: a typed event
// router whose handlers reconcile the query cache with the server feed, plus
// the optimistic outbound path that files provisional messages before the
// server confirms them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wirebridge/internal/cache"
	"wirebridge/pkg/wirebridge"
)

// ForcedLogoutFunc is invoked when the session is revoked or authentication
// fails. The cache is not repaired afterwards; it is meaningless without a
// session.
type ForcedLogoutFunc func(reason string)

// Option mutates router configuration.
type Option func(*Router)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(router *Router) {
		if logger != nil {
			router.logger = logger
		}
	}
}

// WithNotifier injects the user-facing notification sink.
func WithNotifier(notifier wirebridge.Notifier) Option {
	return func(router *Router) {
		router.notifier = notifier
	}
}

// WithForcedLogout registers the forced-logout side effect.
func WithForcedLogout(fn ForcedLogoutFunc) Option {
	return func(router *Router) {
		router.onForcedLogout = fn
	}
}

// WithClock injects a time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(router *Router) {
		if clock != nil {
			router.clock = clock
		}
	}
}

// Router dispatches each server event to exactly one handler. Dispatch is
// strictly sequential: the transport read loop is the only caller, so
// handlers never preempt one another and the cache has a single writer.
//
// Handlers must be short, non-blocking, and order-tolerant: delivery order
// does not match server-side causal order, so every append is guarded by an
// existence check.
type Router struct {
	store          *cache.Store
	session        *Session
	typing         *TypingSet
	notifier       wirebridge.Notifier
	logger         *slog.Logger
	clock          func() time.Time
	onForcedLogout ForcedLogoutFunc
}

// New creates a router over the given cache and session.
func New(store *cache.Store, session *Session, typing *TypingSet, options ...Option) *Router {
	router := &Router{
		store:   store,
		session: session,
		typing:  typing,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, option := range options {
		option(router)
	}

	return router
}

// Publish implements wirebridge.EventSink. Malformed events are rejected;
// handler failures never cross the dispatch boundary — recovery is always
// via invalidation, so failures are logged and swallowed.
func (r *Router) Publish(ctx context.Context, event *wirebridge.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	if err := runSafely(fmt.Sprintf("handle %s", event.Kind), func() error {
		return r.dispatch(ctx, event)
	}); err != nil {
		r.logger.ErrorContext(ctx, "event handler failed",
			"kind", event.Kind,
			"error", err,
		)
	}

	return nil
}

// dispatch routes one validated event. The switch is exhaustive over the
// closed event set; Validate has already rejected unknown kinds.
func (r *Router) dispatch(ctx context.Context, event *wirebridge.Event) error {
	switch event.Kind {
	case wirebridge.EventKindMessageNew:
		return r.handleMessageNew(ctx, event)
	case wirebridge.EventKindMessageSent:
		return r.handleMessageSent(ctx, event)
	case wirebridge.EventKindMessageDeleted:
		return r.handleMessageDeleted(ctx, event)
	case wirebridge.EventKindMessagesRead:
		return r.handleMessagesRead(ctx, event)
	case wirebridge.EventKindReactionAdded:
		return r.handleReactionAdded(ctx, event)
	case wirebridge.EventKindReactionRemoved:
		return r.handleReactionRemoved(ctx, event)
	case wirebridge.EventKindConversationUpdated:
		return r.handleConversationUpdated(ctx, event)
	case wirebridge.EventKindUserStatusChanged:
		return r.handleUserStatusChanged(ctx, event)
	case wirebridge.EventKindMediaPermissionChanged:
		return r.handleMediaPermissionChanged(ctx, event)
	case wirebridge.EventKindAnnouncementNew:
		return r.handleAnnouncementNew(ctx, event)
	case wirebridge.EventKindAnnouncementUpdated:
		return r.handleAnnouncementUpdated(ctx, event)
	case wirebridge.EventKindCacheInvalidate:
		return r.handleCacheInvalidate(ctx, event)
	case wirebridge.EventKindSessionRevoked:
		return r.handleForcedLogout(ctx, event.SessionRevoked.Reason)
	case wirebridge.EventKindAuthError:
		return r.handleForcedLogout(ctx, event.AuthError.Message)
	case wirebridge.EventKindTypingStarted:
		r.typing.Start(event.Typing.ConversationID, event.Typing.UserID, event.Typing.DisplayName)
		return nil
	case wirebridge.EventKindTypingStopped:
		r.typing.Stop(event.Typing.ConversationID, event.Typing.UserID)
		return nil
	default:
		return fmt.Errorf("dispatch: unsupported kind %q", event.Kind)
	}
}

// notify forwards a notification when a sink is configured.
func (r *Router) notify(ctx context.Context, notification wirebridge.Notification) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, notification)
}

// now returns the injected clock time in UTC.
func (r *Router) now() time.Time {
	return r.clock().UTC()
}

// runSafely runs one handler and turns a panic into a returned error tagged
// with scope. Publish relies on it: a faulty handler must not take down the
// dispatch loop shared by every event kind.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}

// updateMessages is the typed read-modify-write over one message list key.
// fn receives the current list (zero value when absent) and decides whether
// to write, per the cache's absent-key no-op rule.
func (r *Router) updateMessages(
	key wirebridge.Key,
	fn func(list wirebridge.PagedList[wirebridge.Message], exists bool) (wirebridge.PagedList[wirebridge.Message], bool),
) bool {
	return r.store.Update(key, func(value any, exists bool) (any, bool) {
		list := wirebridge.PagedList[wirebridge.Message]{}
		if exists {
			typed, ok := value.(wirebridge.PagedList[wirebridge.Message])
			if !ok {
				return value, false
			}
			list = typed
		}
		next, write := fn(list, exists)

		return next, write
	})
}

// updateConversations is the typed read-modify-write over the conversation
// list key.
func (r *Router) updateConversations(
	fn func(list wirebridge.PagedList[wirebridge.Conversation]) (wirebridge.PagedList[wirebridge.Conversation], bool),
) bool {
	return r.store.Update(wirebridge.ConversationsKey(), func(value any, exists bool) (any, bool) {
		if !exists {
			return value, false
		}
		list, ok := value.(wirebridge.PagedList[wirebridge.Conversation])
		if !ok {
			return value, false
		}
		next, write := fn(list)

		return next, write
	})
}

// updateAnnouncements is the typed read-modify-write over one announcement
// list key.
func (r *Router) updateAnnouncements(
	key wirebridge.Key,
	fn func(list wirebridge.PagedList[wirebridge.Announcement]) (wirebridge.PagedList[wirebridge.Announcement], bool),
) bool {
	return r.store.Update(key, func(value any, exists bool) (any, bool) {
		if !exists {
			return value, false
		}
		list, ok := value.(wirebridge.PagedList[wirebridge.Announcement])
		if !ok {
			return value, false
		}
		next, write := fn(list)

		return next, write
	})
}

var _ wirebridge.EventSink = (*Router)(nil)
