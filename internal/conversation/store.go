package conversation

import (
	"sync"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/logging"
	"github.com/denborg/chatsync/internal/wire"
)

// Store wraps the reducer with the current list for one context and
// notifies subscribers on every change. It also remembers deleted ids
// for the life of the context so a late echo of a deleted message is
// never re-inserted.
type Store struct {
	ctx domain.Context
	log *logging.Logger

	mu      sync.Mutex
	list    []domain.Message
	deleted map[string]struct{}
	subs    map[int]func([]domain.Message)
	nextSub int
}

// NewStore creates an empty store for one synchronization context.
func NewStore(ctx domain.Context, log *logging.Logger) *Store {
	return &Store{
		ctx:     ctx,
		log:     log.Sub("conversation").WithContext(ctx.String()),
		deleted: make(map[string]struct{}),
		subs:    make(map[int]func([]domain.Message)),
	}
}

// Context returns the context this store belongs to.
func (s *Store) Context() domain.Context { return s.ctx }

// Apply folds one inbound event into the list.
func (s *Store) Apply(ev wire.Event) {
	s.mu.Lock()

	switch e := ev.(type) {
	case wire.Deleted:
		s.deleted[e.ID] = struct{}{}
	case wire.Created:
		if _, gone := s.deleted[e.Message.ID]; gone {
			s.log.Debug().Str("id", e.Message.ID).Msg("dropping echo of deleted message")
			s.mu.Unlock()
			return
		}
	case wire.Snapshot:
		// a fresh baseline clears tombstones from the previous connection
		s.deleted = make(map[string]struct{})
	}

	next := Apply(s.list, ev)
	changed := !sameSlice(next, s.list)
	s.list = next
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Messages returns a copy of the current list.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.list)
}

// Subscribe registers a change listener and returns an unsubscribe
// function. The listener receives a copy of the full list.
func (s *Store) Subscribe(fn func([]domain.Message)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// InsertPending appends a locally-synthesized placeholder at the tail.
// Only the send pipeline inserts pending entries.
func (s *Store) InsertPending(msg domain.Message) {
	msg.Pending = true
	s.mu.Lock()
	s.list = append(clone(s.list), msg)
	s.mu.Unlock()
	s.notify()
}

// RemovePending drops a placeholder after a failed create.
func (s *Store) RemovePending(id string) {
	s.mu.Lock()
	next := remove(s.list, id)
	changed := len(next) != len(s.list)
	s.list = next
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// MarkUploadFailed flags a created message whose attachment upload
// failed. The entry stays visible; it is never silently dropped.
func (s *Store) MarkUploadFailed(id string) {
	s.mu.Lock()
	s.list = patch(s.list, id, func(m *domain.Message) {
		m.Pending = false
		m.UploadFailed = true
	})
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	snapshot := clone(s.list)
	subs := make([]func([]domain.Message), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// sameSlice reports whether the reducer returned the input unchanged
// (no-op paths hand back the identical slice header).
func sameSlice(a, b []domain.Message) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
