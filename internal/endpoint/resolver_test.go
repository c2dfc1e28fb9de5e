package endpoint

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenant(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"localhost", "localhost"},
		{"127.0.0.1", "localhost"},
		{"10.0.0.5", "localhost"},
		{"[::1]", "localhost"},
		{"::1", "localhost"},
		{"acme.localhost", "acme"},
		{"acme.example.com", "acme"},
		{"a.b.c.example.com", "a"},
		{"example", DefaultTenant},
		{"", DefaultTenant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tenant(tt.host), "host %q", tt.host)
	}
}

func TestSocketURLWithTenant(t *testing.T) {
	r := New("acme.localhost", "http://localhost:5180", "ws://localhost:5180")

	got := r.SocketURL("chat", url.Values{"token": {"t"}, "room_id": {"5"}})

	u, err := url.Parse(got)
	assert.NoError(t, err)
	assert.Equal(t, "acme.localhost:5180", u.Host)
	assert.Equal(t, "/ws/chat", u.Path)
	assert.Equal(t, "5", u.Query().Get("room_id"))
	assert.Equal(t, "t", u.Query().Get("token"))
}

func TestSocketURLLocalhostUnmodified(t *testing.T) {
	r := New("localhost", "http://localhost:5180", "ws://localhost:5180")

	got := r.SocketURL("notifications", url.Values{"token": {"t"}})
	assert.Equal(t, "ws://localhost:5180/ws/notifications?token=t", got)
}

func TestSocketURLDirectPath(t *testing.T) {
	r := New("localhost", "http://localhost:5180", "ws://localhost:5180")

	got := r.SocketURL("direct/chats/c-9", url.Values{"token": {"t"}})
	assert.Equal(t, "ws://localhost:5180/ws/direct/chats/c-9?token=t", got)
}

func TestStreamURL(t *testing.T) {
	r := New("acme.example.com", "https://api.example.com", "wss://api.example.com")

	got := r.StreamURL("stream", url.Values{"token": {"t"}})
	assert.Equal(t, "https://acme.api.example.com/v1/sse/stream?token=t", got)
}

func TestStreamURLNoParams(t *testing.T) {
	r := New("localhost", "http://localhost:5180", "ws://localhost:5180")
	assert.Equal(t, "http://localhost:5180/v1/sse/stream", r.StreamURL("stream", nil))
}

func TestAPIBase(t *testing.T) {
	r := New("acme.localhost", "http://localhost:5180/", "ws://localhost:5180")
	assert.Equal(t, "http://acme.localhost:5180", r.APIBase())
}

func TestUnparseableHostDegrades(t *testing.T) {
	r := New("%%%", "http://localhost:5180", "ws://localhost:5180")
	// never panics, never errors; single-label garbage falls back to the
	// default tenant and leaves the base untouched
	assert.Equal(t, "ws://localhost:5180/ws/chat", r.SocketURL("chat", nil))
}
