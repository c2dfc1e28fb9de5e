package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/logging"
	"github.com/denborg/chatsync/internal/wire"
)

func newTestStore() *Store {
	return NewStore(domain.RoomContext("r1"), logging.Nop())
}

func TestStoreAppliesAndNotifies(t *testing.T) {
	s := newTestStore()

	var got []domain.Message
	unsub := s.Subscribe(func(msgs []domain.Message) { got = msgs })
	defer unsub()

	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})

	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Len(t, s.Messages(), 1)
}

func TestStoreNoNotifyOnNoop(t *testing.T) {
	s := newTestStore()
	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})

	calls := 0
	unsub := s.Subscribe(func([]domain.Message) { calls++ })
	defer unsub()

	s.Apply(wire.ReactionsChanged{ID: "ghost", Reactions: domain.Reactions{"👍": {"u1"}}})
	assert.Zero(t, calls)
}

func TestStoreUnsubscribe(t *testing.T) {
	s := newTestStore()
	calls := 0
	unsub := s.Subscribe(func([]domain.Message) { calls++ })
	unsub()

	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})
	assert.Zero(t, calls)
}

func TestStoreDeletedEchoNeverReinserted(t *testing.T) {
	s := newTestStore()
	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})
	s.Apply(wire.Deleted{ID: "m1"})

	// late echo of the deleted message
	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})

	assert.Empty(t, s.Messages())
}

func TestStoreSnapshotClearsTombstones(t *testing.T) {
	s := newTestStore()
	s.Apply(wire.Deleted{ID: "m1"})

	// the server's fresh baseline is authoritative
	s.Apply(wire.Snapshot{Messages: []domain.Message{msg("m1", "u1", "hi", 0)}})
	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})

	assert.Len(t, s.Messages(), 1)
}

func TestStorePendingLifecycle(t *testing.T) {
	s := newTestStore()

	s.InsertPending(msg("p1", "u1", "sending", 0))
	require.True(t, s.Messages()[0].Pending)

	s.RemovePending("p1")
	assert.Empty(t, s.Messages())
}

func TestStoreMarkUploadFailed(t *testing.T) {
	s := newTestStore()
	s.InsertPending(msg("p1", "u1", "files", 0))

	s.MarkUploadFailed("p1")

	got := s.Messages()
	require.Len(t, got, 1)
	assert.True(t, got[0].UploadFailed)
	assert.False(t, got[0].Pending)
}

func TestStoreMessagesReturnsCopy(t *testing.T) {
	s := newTestStore()
	s.Apply(wire.Created{Message: msg("m1", "u1", "hi", 0)})

	got := s.Messages()
	got[0].Body = "mutated"

	assert.Equal(t, "hi", s.Messages()[0].Body)
}

func TestStoreSendEchoSingleEntry(t *testing.T) {
	// optimistic insert followed by the server echo: exactly one entry
	s := newTestStore()
	s.InsertPending(domain.Message{
		ID: "local-1", SenderID: "u1", Body: "hello", CreatedAt: t0, Pending: true,
	})

	s.Apply(wire.Created{Message: msg("srv-1", "u1", "hello", time.Second)})

	got := s.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "srv-1", got[0].ID)
	assert.False(t, got[0].Pending)
}
