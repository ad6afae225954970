package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rollcall/pkg/domain"
	audit "rollcall/pkg/platform/audit"
	"rollcall/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	staffID := id.StaffID(uuid.New())
	event := audit.Event{
		StaffID: staffID,
		Action:  audit.EventMailingListExported,
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := store.ListByStaff(context.Background(), staffID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventMailingListExported, events[0].Action)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	staffID := id.StaffID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		StaffID: staffID,
		Action:  audit.EventContactsMerged,
	})
	require.NoError(t, err)

	// Wait for async processing
	require.Eventually(t, func() bool {
		events, err := store.ListByStaff(context.Background(), staffID)
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	staffID := id.StaffID(uuid.New())
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			StaffID: staffID,
			Action:  audit.EventMailingListExported,
		})
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListByStaff(context.Background(), staffID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_MissingActorSkippedSilently(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Action: audit.EventMailingListExported,
	})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events, "events without an actor must not be recorded")
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("store down")
}

func TestPublisher_StoreFailureSwallowed(t *testing.T) {
	pub := NewPublisher(failingStore{})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		StaffID: id.StaffID(uuid.New()),
		Action:  audit.EventMailingListExported,
	})
	assert.NoError(t, err, "audit failures must never surface to the caller")
}

func TestFanout_AttemptsEveryStore(t *testing.T) {
	good := memory.NewInMemoryStore()
	fanout := audit.Fanout{failingStore{}, good}

	event := audit.Event{
		StaffID: id.StaffID(uuid.New()),
		Action:  audit.EventContactsMerged,
	}
	err := fanout.Append(context.Background(), event)
	require.Error(t, err)

	events, listErr := good.ListAll(context.Background())
	require.NoError(t, listErr)
	assert.Len(t, events, 1, "healthy sinks still receive the event")
}
