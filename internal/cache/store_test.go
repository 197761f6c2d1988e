package cache

import (
	"testing"
	"time"

	"wirebridge/pkg/wirebridge"
)

func TestStoreSetAndGet(t *testing.T) {
	t.Parallel()

	store := New()
	key := wirebridge.MessagesKey("c1")

	if _, exists := store.Get(key); exists {
		t.Fatal("empty store returned an entry")
	}

	store.Set(key, "value")
	value, exists := store.Get(key)
	if !exists || value != "value" {
		t.Fatalf("Get = %v, %v", value, exists)
	}
	if store.Stale(key) {
		t.Fatal("fresh entry reported stale")
	}
}

func TestStoreUpdateAbsentKey(t *testing.T) {
	tests := []struct {
		name      string
		write     bool
		wantExist bool
	}{
		{name: "absent key without opt-in stays absent", write: false, wantExist: false},
		{name: "absent key with opt-in is created", write: true, wantExist: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := New()
			key := wirebridge.MessagesKey("c1")

			wrote := store.Update(key, func(value any, exists bool) (any, bool) {
				if exists {
					t.Fatal("exists should be false for an absent key")
				}

				return "created", testCase.write
			})
			if wrote != testCase.write {
				t.Fatalf("Update returned %v, want %v", wrote, testCase.write)
			}
			if _, exists := store.Get(key); exists != testCase.wantExist {
				t.Fatalf("entry exists = %v, want %v", exists, testCase.wantExist)
			}
		})
	}
}

func TestStoreUpdatePreservesFetchedAt(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := New(WithClock(func() time.Time { return current }))
	key := wirebridge.MessagesKey("c1")

	store.Set(key, "v1")
	fetchedAt, _ := store.FetchedAt(key)

	current = current.Add(time.Minute)
	store.Update(key, func(value any, exists bool) (any, bool) {
		return "v2", true
	})

	after, _ := store.FetchedAt(key)
	if !after.Equal(fetchedAt) {
		t.Fatalf("FetchedAt changed on Update: %v -> %v", fetchedAt, after)
	}

	current = current.Add(time.Minute)
	store.Set(key, "v3")
	reset, _ := store.FetchedAt(key)
	if !reset.Equal(current) {
		t.Fatalf("FetchedAt after Set = %v, want %v", reset, current)
	}
}

func TestStoreInvalidateMarksStaleWithoutDeleting(t *testing.T) {
	t.Parallel()

	var refetched []wirebridge.Key
	store := New(WithRefetchHook(func(key wirebridge.Key) {
		refetched = append(refetched, key)
	}))
	key := wirebridge.MessagesKey("c1")
	store.Set(key, "value")

	store.InvalidateKey(key)

	if !store.Stale(key) {
		t.Fatal("entry not marked stale")
	}
	if value, exists := store.Get(key); !exists || value != "value" {
		t.Fatal("stale entry no longer readable")
	}
	if len(refetched) != 1 || refetched[0] != key {
		t.Fatalf("refetch hook calls = %v", refetched)
	}

	// Already-stale and missing keys do not re-fire the hook.
	store.InvalidateKey(key)
	store.InvalidateKey(wirebridge.MessagesKey("missing"))
	if len(refetched) != 1 {
		t.Fatalf("refetch hook re-fired: %v", refetched)
	}

	store.Set(key, "fresh")
	if store.Stale(key) {
		t.Fatal("Set did not clear staleness")
	}
}

func TestStoreInvalidateNamespace(t *testing.T) {
	t.Parallel()

	store := New()
	store.Set(wirebridge.MessagesKey("c1"), "a")
	store.Set(wirebridge.MessagesKey("c2"), "b")
	store.Set(wirebridge.PendingMessagesKey(), "c")
	store.Set(wirebridge.ConversationsKey(), "d")

	store.Invalidate(wirebridge.NamespaceMessages)

	for _, key := range []wirebridge.Key{
		wirebridge.MessagesKey("c1"),
		wirebridge.MessagesKey("c2"),
		wirebridge.PendingMessagesKey(),
	} {
		if !store.Stale(key) {
			t.Fatalf("key %s not stale", key)
		}
	}
	if store.Stale(wirebridge.ConversationsKey()) {
		t.Fatal("other namespace was invalidated")
	}
}

func TestStoreKeys(t *testing.T) {
	t.Parallel()

	store := New()
	store.Set(wirebridge.MessagesKey("c1"), "a")
	store.Set(wirebridge.PendingMessagesKey(), "b")
	store.Set(wirebridge.AnnouncementsKey(), "c")

	keys := store.Keys(wirebridge.NamespaceMessages)
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 message keys", keys)
	}
	for _, key := range keys {
		if !key.InNamespace(wirebridge.NamespaceMessages) {
			t.Fatalf("key %s outside namespace", key)
		}
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	store := New()
	store.Set(wirebridge.MessagesKey("c1"), "a")
	store.Set(wirebridge.ConversationsKey(), "b")

	store.Clear()

	if _, exists := store.Get(wirebridge.MessagesKey("c1")); exists {
		t.Fatal("entry survived Clear")
	}
	if len(store.Keys(wirebridge.NamespaceConversations)) != 0 {
		t.Fatal("keys survived Clear")
	}
}

func TestStoreInvalidateAll(t *testing.T) {
	t.Parallel()

	store := New()
	store.Set(wirebridge.MessagesKey("c1"), "a")
	store.Set(wirebridge.AnnouncementsKey(), "b")

	store.InvalidateAll([]wirebridge.Key{
		wirebridge.MessagesKey("c1"),
		wirebridge.AnnouncementsKey(),
		wirebridge.ConversationsKey(),
	})

	if !store.Stale(wirebridge.MessagesKey("c1")) || !store.Stale(wirebridge.AnnouncementsKey()) {
		t.Fatal("named keys not stale")
	}
	if store.Stale(wirebridge.ConversationsKey()) {
		t.Fatal("missing key became stale")
	}
}
