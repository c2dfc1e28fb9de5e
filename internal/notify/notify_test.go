package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/logging"
)

// streamServer serves a scripted event stream per connection attempt.
type streamServer struct {
	mu       sync.Mutex
	attempts int
	scripts  []func(w http.ResponseWriter, flush func())
}

func (s *streamServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := s.attempts
	s.attempts++
	s.mu.Unlock()

	if n >= len(s.scripts) {
		http.Error(w, "no more attempts expected", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "no flusher", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	s.scripts[n](w, flusher.Flush)
}

func (s *streamServer) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func sendEvent(w http.ResponseWriter, flush func(), name, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flush()
}

func collect(l *Listener) (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, 16)
	unsub := l.Subscribe(func(n domain.Notification) { ch <- n })
	return ch, unsub
}

func waitNotification(t *testing.T, ch <-chan domain.Notification) domain.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return domain.Notification{}
	}
}

func TestListenerDeliversNamedEvents(t *testing.T) {
	done := make(chan struct{})
	srv := &streamServer{scripts: []func(http.ResponseWriter, func()){
		func(w http.ResponseWriter, flush func()) {
			sendEvent(w, flush, "heartbeat", `{}`)
			sendEvent(w, flush, EventNewMessage, `{"chat_id":"42","fullName":"Bo Jansen","message":"hoi"}`)
			<-done
		},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()
	defer close(done)

	l := NewListener(ts.URL, time.Hour, func() string { return "" }, logging.Nop())
	defer l.Stop()
	ch, unsub := collect(l)
	defer unsub()

	require.NoError(t, l.Start(context.Background()))

	n := waitNotification(t, ch)
	assert.Equal(t, "Bo Jansen", n.Title)
	assert.Equal(t, "hoi", n.Body)
	assert.Equal(t, "42", n.ChatID)
	assert.False(t, n.Suppressed)
	assert.NotEmpty(t, n.ID)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra notification %+v (heartbeat should be ignored)", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestListenerFlagsActiveConversation(t *testing.T) {
	done := make(chan struct{})
	srv := &streamServer{scripts: []func(http.ResponseWriter, func()){
		func(w http.ResponseWriter, flush func()) {
			sendEvent(w, flush, EventNewMessage, `{"chat_id":"7","fullName":"A","message":"x"}`)
			sendEvent(w, flush, EventNewMessage, `{"chat_id":"8","fullName":"B","message":"y"}`)
			<-done
		},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()
	defer close(done)

	l := NewListener(ts.URL, time.Hour, func() string { return "7" }, logging.Nop())
	defer l.Stop()
	ch, unsub := collect(l)
	defer unsub()

	require.NoError(t, l.Start(context.Background()))

	first := waitNotification(t, ch)
	assert.True(t, first.Suppressed, "alert for the open conversation is flagged")
	second := waitNotification(t, ch)
	assert.False(t, second.Suppressed)
}

func TestListenerMalformedPayloadDropped(t *testing.T) {
	done := make(chan struct{})
	srv := &streamServer{scripts: []func(http.ResponseWriter, func()){
		func(w http.ResponseWriter, flush func()) {
			sendEvent(w, flush, EventNewMessage, `{not json`)
			sendEvent(w, flush, EventNewMessage, `{"chat_id":"1","fullName":"C","message":"ok"}`)
			<-done
		},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()
	defer close(done)

	l := NewListener(ts.URL, time.Hour, nil, logging.Nop())
	defer l.Stop()
	ch, unsub := collect(l)
	defer unsub()

	require.NoError(t, l.Start(context.Background()))

	n := waitNotification(t, ch)
	assert.Equal(t, "ok", n.Body, "stream survives a malformed payload")
}

func TestListenerRetriesExactlyOnce(t *testing.T) {
	done := make(chan struct{})
	srv := &streamServer{scripts: []func(http.ResponseWriter, func()){
		func(w http.ResponseWriter, flush func()) {
			// first connection drops immediately
		},
		func(w http.ResponseWriter, flush func()) {
			sendEvent(w, flush, EventNewMessage, `{"chat_id":"1","fullName":"D","message":"back"}`)
			<-done
		},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()
	defer close(done)

	l := NewListener(ts.URL, 20*time.Millisecond, nil, logging.Nop())
	defer l.Stop()
	ch, unsub := collect(l)
	defer unsub()

	require.NoError(t, l.Start(context.Background()))

	n := waitNotification(t, ch)
	assert.Equal(t, "back", n.Body)
	assert.Equal(t, 2, srv.attemptCount())
}

func TestListenerGivesUpAfterSecondFailure(t *testing.T) {
	srv := &streamServer{scripts: []func(http.ResponseWriter, func()){
		func(w http.ResponseWriter, flush func()) {},
		func(w http.ResponseWriter, flush func()) {},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	l := NewListener(ts.URL, 10*time.Millisecond, nil, logging.Nop())
	defer l.Stop()

	require.NoError(t, l.Start(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for srv.attemptCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 2, srv.attemptCount())

	// no third attempt after the retry is spent
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, srv.attemptCount())
}

func TestListenerStartFailureReturned(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer ts.Close()

	l := NewListener(ts.URL, time.Hour, nil, logging.Nop())
	err := l.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestInboxBoundedNewestFirst(t *testing.T) {
	in := NewInbox(3)
	for i := 1; i <= 5; i++ {
		in.Add(domain.Notification{ID: fmt.Sprintf("n%d", i)})
	}
	got := in.Notifications()
	require.Len(t, got, 3)
	assert.Equal(t, "n5", got[0].ID)
	assert.Equal(t, "n4", got[1].ID)
	assert.Equal(t, "n3", got[2].ID)
}

func TestInboxReadTracking(t *testing.T) {
	in := NewInbox(0)
	in.Add(domain.Notification{ID: "a"})
	in.Add(domain.Notification{ID: "b"})
	assert.Equal(t, 2, in.UnreadCount())

	assert.True(t, in.MarkRead("a"))
	assert.False(t, in.MarkRead("missing"))
	assert.Equal(t, 1, in.UnreadCount())

	in.MarkAllRead()
	assert.Equal(t, 0, in.UnreadCount())

	in.Clear()
	assert.Empty(t, in.Notifications())
}

func TestInboxDefaultLimit(t *testing.T) {
	in := NewInbox(0)
	for i := 0; i < DefaultInboxLimit+10; i++ {
		in.Add(domain.Notification{ID: fmt.Sprintf("n%d", i)})
	}
	assert.Len(t, in.Notifications(), DefaultInboxLimit)
}
