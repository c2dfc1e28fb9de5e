// Package outbox turns user-initiated sends into optimistic
// placeholder entries and runs the dependent network steps
// (create over the socket, then media upload) behind them.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denborg/chatsync/internal/conversation"
	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/logging"
	"github.com/denborg/chatsync/internal/wire"
)

// Sender is the live socket for the pipeline's context.
type Sender interface {
	Send(payload []byte) error
}

// Uploader is the media upload collaborator: opaque I/O with two
// outcomes, URLs or failure. Not part of the sync protocol.
type Uploader interface {
	Upload(ctx context.Context, messageID string, files []File) ([]string, error)
}

// File is one attachment in a pending upload batch.
type File struct {
	Name    string
	Content []byte
}

// Batch groups the files and caption of one user send. Every file in
// the batch is uploaded together or the whole batch's failure is
// surfaced; nothing is silently dropped.
type Batch struct {
	Files   []File
	Caption string
}

// Identity is the local author stamped onto placeholders.
type Identity struct {
	UserID   string
	FullName string
	Avatar   string
}

// Pipeline performs optimistic sends for one conversation context.
// Send returns immediately; the placeholder is inserted synchronously
// so UI ordering always matches invocation order, and the network
// steps run behind it.
type Pipeline struct {
	convCtx  domain.Context
	store    *conversation.Store
	sender   Sender
	uploader Uploader
	identity Identity
	log      *logging.Logger

	// activeContext reports which context the user currently has open.
	// Late completions for a context that is no longer active are
	// discarded instead of mutating shared state.
	activeContext func() domain.Context

	// OnError receives create-step failures (the placeholder has
	// already been removed by then). Optional.
	OnError func(messageID string, err error)

	insertMu sync.Mutex
	wg       sync.WaitGroup
}

// New creates a pipeline bound to one context and its store.
func New(
	convCtx domain.Context,
	store *conversation.Store,
	sender Sender,
	uploader Uploader,
	identity Identity,
	activeContext func() domain.Context,
	log *logging.Logger,
) *Pipeline {
	if activeContext == nil {
		activeContext = func() domain.Context { return convCtx }
	}
	return &Pipeline{
		convCtx:       convCtx,
		store:         store,
		sender:        sender,
		uploader:      uploader,
		identity:      identity,
		activeContext: activeContext,
		log:           log.Sub("outbox").WithContext(convCtx.String()),
	}
}

// Send queues one message. Returns the placeholder id immediately.
func (p *Pipeline) Send(ctx context.Context, body string, batch Batch) string {
	msg := domain.Message{
		ID:             uuid.New().String(),
		SenderID:       p.identity.UserID,
		AuthorName:     p.identity.FullName,
		AuthorAvatar:   p.identity.Avatar,
		ConversationID: p.convCtx.ID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
		Pending:        true,
	}
	if body == "" {
		msg.Body = batch.Caption
	}

	// Placeholder insertion is the serialization point: a second Send
	// queues behind it, not behind network completion.
	p.insertMu.Lock()
	p.store.InsertPending(msg)
	p.insertMu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, msg, batch)
	}()
	return msg.ID
}

// Wait blocks until all in-flight sends have finished their network
// steps. Used on teardown and in tests.
func (p *Pipeline) Wait() { p.wg.Wait() }

func (p *Pipeline) run(ctx context.Context, msg domain.Message, batch Batch) {
	if err := p.create(msg); err != nil {
		p.log.Error().Err(err).Str("id", msg.ID).Msg("create failed, rolling back placeholder")
		if p.stillActive() {
			p.store.RemovePending(msg.ID)
		}
		if p.OnError != nil {
			p.OnError(msg.ID, err)
		}
		return
	}

	if len(batch.Files) == 0 {
		return
	}

	urls, err := p.uploader.Upload(ctx, msg.ID, batch.Files)
	if !p.stillActive() {
		p.log.Debug().Str("id", msg.ID).Msg("discarding stale upload result")
		return
	}
	if err != nil {
		// the created message stays; it just shows the failed upload
		p.log.Error().Err(err).Str("id", msg.ID).Msg("upload failed after create")
		p.store.MarkUploadFailed(msg.ID)
		return
	}

	p.store.Apply(wire.Updated{ID: msg.ID, Attachments: urls})
	if frame, err := wire.UpdateFrame(msg.ID, urls); err == nil {
		if err := p.sender.Send(frame); err != nil {
			p.log.Warn().Err(err).Str("id", msg.ID).Msg("attachment update frame not delivered")
		}
	}
}

func (p *Pipeline) create(msg domain.Message) error {
	frame, err := wire.SendFrame(msg)
	if err != nil {
		return fmt.Errorf("outbox: encode: %w", err)
	}
	if err := p.sender.Send(frame); err != nil {
		return fmt.Errorf("outbox: create: %w", err)
	}
	return nil
}

func (p *Pipeline) stillActive() bool {
	return p.activeContext() == p.convCtx
}
