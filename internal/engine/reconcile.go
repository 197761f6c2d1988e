package engine

import (
	"context"

	"wirebridge/pkg/wirebridge"
)

// reconcile matches a provisional message, identified by its client temp id,
// to the authoritative record the server returned.
//
// Two confirmation paths exist. The common case replaces the provisional
// item in place in the known conversation's list. The degenerate case covers
// first-contact conversations: the provisional message was filed under the
// pending key before the server had assigned a conversation id, so it is
// removed there and appended to the now-known conversation's list. A miss in
// both locations falls back to invalidation — the event is never dropped.
func (r *Router) reconcile(ctx context.Context, tempID string, confirmed wirebridge.Message) {
	matchTemp := func(message wirebridge.Message) bool {
		return message.TempID == tempID
	}

	// Common case: provisional item sits in the known conversation's list.
	// The confirmed record takes its slot; position and list length are
	// preserved and the temp id is retired.
	knownKey := wirebridge.MessagesKey(confirmed.ConversationID)
	replaced := r.updateMessages(knownKey, func(
		list wirebridge.PagedList[wirebridge.Message],
		exists bool,
	) (wirebridge.PagedList[wirebridge.Message], bool) {
		if !exists {
			return list, false
		}

		// message:new for the same message may land before the ack; the
		// confirmed id is then already in the list, and the provisional is
		// dropped rather than replaced so exactly one entry carries the id.
		if confirmed.ID != "" {
			if _, present := wirebridge.Find(list, func(item wirebridge.Message) bool {
				return item.ID == confirmed.ID
			}); present {
				return wirebridge.RemoveWhere(list, matchTemp)
			}
		}

		return wirebridge.MutateByID(list, matchTemp, func(wirebridge.Message) wirebridge.Message {
			return confirmed
		})
	})
	if replaced {
		return
	}

	// Degenerate case: the message was filed under the pending key before
	// the conversation id existed client-side. Filter it out there — that
	// slot is never read again once the true id is known — and append the
	// confirmed record to the known key, creating the list when absent.
	movedFromPending := r.updateMessages(wirebridge.PendingMessagesKey(), func(
		list wirebridge.PagedList[wirebridge.Message],
		exists bool,
	) (wirebridge.PagedList[wirebridge.Message], bool) {
		if !exists {
			return list, false
		}

		return wirebridge.RemoveWhere(list, matchTemp)
	})
	if movedFromPending {
		r.updateMessages(knownKey, func(
			list wirebridge.PagedList[wirebridge.Message],
			exists bool,
		) (wirebridge.PagedList[wirebridge.Message], bool) {
			next := wirebridge.AppendNewest(list, confirmed, func(item wirebridge.Message) bool {
				return item.ID == confirmed.ID
			})

			// Write even when the key was absent: the confirmed message
			// must land somewhere readable.
			return next, true
		})

		return
	}

	// Miss in both locations: a resend or a confirmation the client never
	// originated. Recover via refetch, never by dropping the event.
	r.logger.DebugContext(ctx, "reconciliation miss, invalidating",
		"temp_id", tempID,
		"conversation_id", confirmed.ConversationID,
	)
	r.store.InvalidateKey(knownKey)
}
