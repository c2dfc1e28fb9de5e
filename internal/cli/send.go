package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/denborg/chatsync/internal/connection"
	"github.com/denborg/chatsync/internal/conversation"
	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/endpoint"
	"github.com/denborg/chatsync/internal/outbox"
	"github.com/denborg/chatsync/internal/wire"
)

func newSendCmd() *cobra.Command {
	var (
		files   []string
		caption string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <room|direct> <id> [message]",
		Short: "Send a message into a conversation and wait for the server echo",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			convCtx, err := parseContext(args[0], args[1])
			if err != nil {
				return err
			}
			body := ""
			if len(args) == 3 {
				body = args[2]
			}
			if body == "" && caption == "" && len(files) == 0 {
				return fmt.Errorf("nothing to send: give a message, --caption, or --file")
			}

			batch := outbox.Batch{Caption: caption}
			for _, path := range files {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading attachment: %w", err)
				}
				batch.Files = append(batch.Files, outbox.File{
					Name:    filepath.Base(path),
					Content: content,
				})
			}

			resolver := endpoint.New(cfg.Server.Host, cfg.Server.APIBase, cfg.Server.WSBase)
			store := conversation.NewStore(convCtx, log)

			retryDelay := time.Duration(cfg.Notify.RetryDelaySeconds) * time.Second
			mgr := connection.NewManager(resolver, retryDelay, log)
			defer mgr.CloseAll()

			handle, err := mgr.Open(convCtx, cfg.Auth.Token, func(ev wire.Event) {
				store.Apply(ev)
			})
			if err != nil {
				return err
			}

			uploadEndpoint := cfg.Upload.Endpoint
			if uploadEndpoint == "" {
				uploadEndpoint = strings.TrimRight(resolver.APIBase(), "/") + "/v1/media"
			}
			uploader := outbox.NewHTTPUploader(
				uploadEndpoint, cfg.Auth.Token,
				time.Duration(cfg.Upload.TimeoutSeconds)*time.Second,
			)

			pipeline := outbox.New(
				convCtx, store, handle, uploader,
				outbox.Identity{
					UserID:   cfg.Auth.UserID,
					FullName: cfg.Auth.FullName,
					Avatar:   cfg.Auth.Avatar,
				},
				nil, log,
			)

			sendErr := make(chan error, 1)
			pipeline.OnError = func(messageID string, err error) {
				sendErr <- err
			}

			effectiveBody := body
			if effectiveBody == "" {
				effectiveBody = caption
			}

			var sentID atomic.Value
			confirmed := make(chan domain.Message, 1)
			offer := func(msgs []domain.Message) {
				target, _ := sentID.Load().(string)
				if target == "" {
					return
				}
				if m, ok := echoMatch(msgs, target, cfg.Auth.UserID, effectiveBody); ok {
					select {
					case confirmed <- m:
					default:
					}
				}
			}
			unsubscribe := store.Subscribe(offer)
			defer unsubscribe()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			id := pipeline.Send(ctx, body, batch)
			sentID.Store(id)
			offer(store.Messages())
			log.Debug().Str("placeholder", id).Msg("message queued")

			select {
			case m := <-confirmed:
				fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", m.ID)
				if m.UploadFailed {
					return fmt.Errorf("message created but attachment upload failed")
				}
				return nil
			case err := <-sendErr:
				return fmt.Errorf("send failed: %w", err)
			case <-time.After(timeout):
				return fmt.Errorf("timed out waiting for server echo")
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "attach a file (repeatable)")
	cmd.Flags().StringVar(&caption, "caption", "", "caption used as body when the message text is empty")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the server echo")

	return cmd
}

// echoMatch reports the confirmed server echo for a local send. The
// create frame carries the placeholder id, so the primary rule is that
// id turning non-pending. A server may supersede the id instead; then
// the placeholder is gone from the list and the echo is the newest
// non-pending entry from the same sender with the same body.
func echoMatch(msgs []domain.Message, placeholderID, senderID, body string) (domain.Message, bool) {
	for _, m := range msgs {
		if m.ID != placeholderID {
			continue
		}
		if m.Pending {
			return domain.Message{}, false
		}
		return m, true
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if !m.Pending && m.SenderID == senderID && m.Body == body {
			return m, true
		}
	}
	return domain.Message{}, false
}
