package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/wire"
)

var t0 = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func msg(id, sender, body string, offset time.Duration) domain.Message {
	return domain.Message{
		ID:        id,
		SenderID:  sender,
		Body:      body,
		CreatedAt: t0.Add(offset),
	}
}

func pending(id, sender, body string, offset time.Duration) domain.Message {
	m := msg(id, sender, body, offset)
	m.Pending = true
	return m
}

func assertOrdered(t *testing.T, list []domain.Message) {
	t.Helper()
	var prev time.Time
	for _, m := range list {
		if m.Pending {
			continue
		}
		require.False(t, m.CreatedAt.Before(prev), "createdAt decreased at %s", m.ID)
		prev = m.CreatedAt
	}
}

func TestSnapshotReplacesAndSorts(t *testing.T) {
	list := []domain.Message{msg("old", "u1", "gone", 0)}

	next := Apply(list, wire.Snapshot{Messages: []domain.Message{
		msg("m2", "u1", "second", 2*time.Minute),
		msg("m1", "u1", "first", time.Minute),
	}})

	require.Len(t, next, 2)
	assert.Equal(t, "m1", next[0].ID)
	assert.Equal(t, "m2", next[1].ID)
	assertOrdered(t, next)
}

func TestCreatedAppends(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0)}

	next := Apply(list, wire.Created{Message: msg("m2", "u2", "b", time.Minute)})

	require.Len(t, next, 2)
	assert.Equal(t, "m2", next[1].ID)
	// input untouched
	assert.Len(t, list, 1)
}

func TestCreatedReconcilesByID(t *testing.T) {
	list := []domain.Message{
		msg("m1", "u1", "a", 0),
		pending("p1", "u2", "hello", time.Minute),
	}
	confirmed := msg("p1", "u2", "hello", time.Minute)

	next := Apply(list, wire.Created{Message: confirmed})

	require.Len(t, next, 2)
	assert.Equal(t, "p1", next[1].ID)
	assert.False(t, next[1].Pending)
}

func TestCreatedReconcilesByContentFallback(t *testing.T) {
	list := []domain.Message{
		msg("m1", "u1", "a", 0),
		pending("local-1", "u2", "hello", time.Minute),
	}
	// server assigned its own id but same sender+body
	confirmed := msg("srv-9", "u2", "hello", time.Minute)

	next := Apply(list, wire.Created{Message: confirmed})

	require.Len(t, next, 2, "echo must not duplicate the placeholder")
	assert.Equal(t, "srv-9", next[1].ID)
	assert.False(t, next[1].Pending)
}

func TestCreatedKeepsPendingAtTail(t *testing.T) {
	list := []domain.Message{
		msg("m1", "u1", "a", 0),
		pending("p1", "u2", "mine", 2*time.Minute),
	}
	// unrelated confirmed message from someone else
	next := Apply(list, wire.Created{Message: msg("m2", "u3", "theirs", time.Minute)})

	require.Len(t, next, 3)
	assert.Equal(t, "m2", next[1].ID)
	assert.True(t, next[2].Pending, "placeholder stays at the tail")
}

func TestTwoSendsReconcileOutOfOrder(t *testing.T) {
	// two back-to-back sends, echoes arrive in reverse order
	list := []domain.Message{
		pending("p1", "u1", "first", 0),
		pending("p2", "u1", "second", time.Second),
	}

	list = Apply(list, wire.Created{Message: msg("p2", "u1", "second", time.Second)})
	list = Apply(list, wire.Created{Message: msg("p1", "u1", "first", 0)})

	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)
	assert.False(t, list[0].Pending)
	assert.False(t, list[1].Pending)
}

func TestUpdatedPatchesAttachmentsAndClearsPending(t *testing.T) {
	list := []domain.Message{pending("p1", "u1", "with files", 0)}

	next := Apply(list, wire.Updated{ID: "p1", Attachments: []string{"a.png", "b.png"}})

	require.Len(t, next, 1)
	assert.Equal(t, []string{"a.png", "b.png"}, next[0].Attachments)
	assert.False(t, next[0].Pending)
}

func TestUpdatedUnknownIDIsNoop(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0)}
	next := Apply(list, wire.Updated{ID: "ghost", Attachments: []string{"x"}})
	assert.Equal(t, list, next)
}

func TestEdited(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "tpyo", 0)}
	editedAt := t0.Add(time.Hour)

	next := Apply(list, wire.Edited{ID: "m1", Body: "typo", EditedAt: &editedAt})

	assert.Equal(t, "typo", next[0].Body)
	require.NotNil(t, next[0].EditedAt)
	assert.Equal(t, editedAt, *next[0].EditedAt)
	// original untouched
	assert.Equal(t, "tpyo", list[0].Body)
	assert.Nil(t, list[0].EditedAt)
}

func TestReactionsReplacedWholesale(t *testing.T) {
	list := []domain.Message{func() domain.Message {
		m := msg("m1", "u1", "a", 0)
		m.Reactions = domain.Reactions{"👍": {"u1"}}
		return m
	}()}

	next := Apply(list, wire.ReactionsChanged{ID: "m1", Reactions: domain.Reactions{"🔥": {"u2"}}})

	assert.Equal(t, domain.Reactions{"🔥": {"u2"}}, next[0].Reactions)
}

func TestReactionsUnknownIDLeavesListIdentical(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0)}

	next := Apply(list, wire.ReactionsChanged{ID: "ghost", Reactions: domain.Reactions{"🔥": {"u2"}}})

	// same backing array, not merely equal
	assert.Equal(t, &list[0], &next[0])
}

func TestDeleted(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0), msg("m2", "u2", "b", time.Minute)}

	next := Apply(list, wire.Deleted{ID: "m1"})

	require.Len(t, next, 1)
	assert.Equal(t, "m2", next[0].ID)
}

func TestDeletedThenPatchesStayGone(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0)}
	list = Apply(list, wire.Deleted{ID: "m1"})

	editedAt := t0.Add(time.Hour)
	list = Apply(list, wire.Edited{ID: "m1", Body: "back?", EditedAt: &editedAt})
	list = Apply(list, wire.Updated{ID: "m1", Attachments: []string{"x"}})
	list = Apply(list, wire.ReactionsChanged{ID: "m1", Reactions: domain.Reactions{"👍": {"u1"}}})
	list = Apply(list, wire.Deleted{ID: "m1"})

	assert.Empty(t, list)
}

func TestBackfillPrependsOlderHistory(t *testing.T) {
	list := []domain.Message{msg("m3", "u1", "now", 3*time.Minute)}

	next := Apply(list, wire.Backfill{Messages: []domain.Message{
		msg("m2", "u1", "older", 2*time.Minute),
		msg("m1", "u1", "oldest", time.Minute),
		msg("m3", "u1", "dup", 3*time.Minute),
	}})

	require.Len(t, next, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{next[0].ID, next[1].ID, next[2].ID})
	assertOrdered(t, next)
	assert.Equal(t, "now", next[2].Body, "existing entry wins over backfill duplicate")
}

func TestTypingIsIgnoredByReducer(t *testing.T) {
	list := []domain.Message{msg("m1", "u1", "a", 0)}
	next := Apply(list, wire.Typing{UserID: "u2", RoomID: "r1"})
	assert.Equal(t, &list[0], &next[0])
}

func TestOrderingInvariantAcrossEventSequences(t *testing.T) {
	list := []domain.Message{}
	events := []wire.Event{
		wire.Snapshot{Messages: []domain.Message{
			msg("m2", "u1", "b", 2*time.Minute),
			msg("m1", "u1", "a", time.Minute),
		}},
		wire.Created{Message: msg("m3", "u2", "c", 3*time.Minute)},
		wire.Backfill{Messages: []domain.Message{msg("m0", "u1", "z", 0)}},
		wire.Deleted{ID: "m2"},
		wire.Created{Message: msg("m4", "u2", "d", 4*time.Minute)},
	}
	for _, ev := range events {
		list = Apply(list, ev)
		assertOrdered(t, list)
	}
	require.Len(t, list, 4)
}
