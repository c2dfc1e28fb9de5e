// Package notify consumes the one-way event stream that fans out
// cross-conversation alerts, independent of the per-conversation
// sockets.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/logging"
)

// EventNewMessage is the named stream event carrying chat alerts.
const EventNewMessage = "new_message_notification"

// Handler consumes notifications as they arrive. Suppressed entries
// are still delivered; withholding the visible toast is the
// presentation layer's call, so unread counters stay correct.
type Handler func(n domain.Notification)

// Listener subscribes to the event-stream endpoint. On stream error
// it schedules exactly one reconnection after a fixed delay; a second
// consecutive failure leaves the channel closed until the owner
// remounts it.
type Listener struct {
	url        string
	client     *http.Client
	retryDelay time.Duration
	log        *logging.Logger

	// activeConversation reports the conversation the user currently
	// has open, used to flag (not swallow) same-chat alerts.
	activeConversation func() string

	mu      sync.Mutex
	subs    map[int]Handler
	nextSub int
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewListener creates a listener for the given stream URL.
func NewListener(url string, retryDelay time.Duration, activeConversation func() string, log *logging.Logger) *Listener {
	if activeConversation == nil {
		activeConversation = func() string { return "" }
	}
	return &Listener{
		url:                url,
		client:             &http.Client{},
		retryDelay:         retryDelay,
		activeConversation: activeConversation,
		log:                log.Sub("notify"),
		subs:               make(map[int]Handler),
		now:                time.Now,
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (l *Listener) Subscribe(fn Handler) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Start opens the stream and reads it until ctx is cancelled or the
// bounded retry is spent. The initial connect error is returned; later
// errors are handled internally.
func (l *Listener) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.mu.Unlock()

	body, err := l.connect(runCtx)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		l.readStream(runCtx, body)
		if runCtx.Err() != nil {
			return
		}

		// bounded single retry, then silence until remount
		l.log.Warn().Dur("delay", l.retryDelay).Msg("stream lost, scheduling single retry")
		select {
		case <-runCtx.Done():
			return
		case <-time.After(l.retryDelay):
		}
		retryBody, err := l.connect(runCtx)
		if err != nil {
			l.log.Warn().Err(err).Msg("stream retry failed, channel closed")
			return
		}
		l.log.Info().Msg("stream re-established")
		l.readStream(runCtx, retryBody)
	}()
	return nil
}

// Stop tears the stream down.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
}

func (l *Listener) connect(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("notify: request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify: connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("notify: connect: unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// readStream parses the text/event-stream lines until the connection
// drops or ctx is cancelled.
func (l *Listener) readStream(ctx context.Context, resp *http.Response) {
	defer resp.Body.Close()

	var eventName string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		switch {
		case line == "":
			eventName = ""
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			l.dispatch(eventName, data)
		}
	}
}

func (l *Listener) dispatch(eventName, data string) {
	if eventName != EventNewMessage {
		return
	}
	if !gjson.Valid(data) {
		l.log.Warn().Str("event", eventName).Msg("dropping malformed stream payload")
		return
	}
	payload := gjson.Parse(data)

	n := domain.Notification{
		ID:     uuid.New().String(),
		Title:  payload.Get("fullName").String(),
		Body:   payload.Get("message").String(),
		Kind:   "chat",
		ChatID: payload.Get("chat_id").String(),
		SentAt: l.now().UTC(),
	}
	n.Suppressed = n.ChatID != "" && n.ChatID == l.activeConversation()

	l.mu.Lock()
	subs := make([]Handler, 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}
