package cli

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/denborg/chatsync/internal/connection"
	"github.com/denborg/chatsync/internal/conversation"
	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/endpoint"
	"github.com/denborg/chatsync/internal/notify"
	"github.com/denborg/chatsync/internal/presence"
	"github.com/denborg/chatsync/internal/transcript"
	"github.com/denborg/chatsync/internal/wire"
)

func newWatchCmd() *cobra.Command {
	var (
		withNotifications bool
		transcriptPath    string
	)

	cmd := &cobra.Command{
		Use:   "watch <room|direct> <id>",
		Short: "Follow a conversation live and print messages as they arrive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			convCtx, err := parseContext(args[0], args[1])
			if err != nil {
				return err
			}

			resolver := endpoint.New(cfg.Server.Host, cfg.Server.APIBase, cfg.Server.WSBase)
			log.Info().Str("tenant", resolver.Tenant()).Str("context", convCtx.String()).Msg("starting watch")

			db, err := transcript.Open(transcriptPath, log)
			if err != nil {
				return err
			}
			defer db.Close()
			tlog := transcript.NewLog(db)

			store := conversation.NewStore(convCtx, log)
			tracker := presence.NewTracker(time.Duration(cfg.Presence.FreshnessSeconds) * time.Second)
			inbox := notify.NewInbox(cfg.Notify.InboxLimit)

			// print every message once, in list order
			var printMu sync.Mutex
			printed := make(map[string]bool)
			unsubscribe := store.Subscribe(func(msgs []domain.Message) {
				tracker.ObserveList(msgs)
				printMu.Lock()
				defer printMu.Unlock()
				for _, m := range msgs {
					if m.Pending {
						continue
					}
					tlog.RecordMessage(convCtx.String(), m) // upsert keeps edits current
					if printed[m.ID] {
						continue
					}
					printed[m.ID] = true
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n",
						m.CreatedAt.Local().Format("15:04:05"), authorLabel(m), renderBody(m))
				}
			})
			defer unsubscribe()

			retryDelay := time.Duration(cfg.Notify.RetryDelaySeconds) * time.Second
			mgr := connection.NewManager(resolver, retryDelay, log)
			defer mgr.CloseAll()

			handle, err := mgr.Open(convCtx, cfg.Auth.Token, func(ev wire.Event) {
				switch e := ev.(type) {
				case wire.Typing:
					tracker.Touch(e.UserID)
				case wire.Deleted:
					tlog.RemoveMessage(convCtx.String(), e.ID)
					store.Apply(ev)
				default:
					store.Apply(ev)
				}
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				case <-handle.Done():
					info := handle.CloseInfo()
					return fmt.Errorf("conversation socket closed: %d %s", info.Code, info.Reason)
				}
			})

			if withNotifications {
				listener := notify.NewListener(
					notificationStreamURL(resolver, cfg.Auth.Token),
					retryDelay,
					func() string { return convCtx.ID },
					log,
				)
				listener.Subscribe(func(n domain.Notification) {
					inbox.Add(n)
					tlog.RecordNotification(n)
					if n.Suppressed {
						log.Debug().Str("chat", n.ChatID).Msg("notification for open conversation, toast suppressed")
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "* %s: %s (%d unread)\n", n.Title, n.Body, inbox.UnreadCount())
				})
				if err := listener.Start(gctx); err != nil {
					return err
				}
				g.Go(func() error {
					<-gctx.Done()
					listener.Stop()
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&withNotifications, "notifications", true, "also listen to the cross-room notification stream")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "transcript database path (default in-memory)")

	return cmd
}

// notificationStreamURL builds the one-way feed URL. The backend
// serves the named events on the "stream" path, not "notifications".
func notificationStreamURL(resolver endpoint.Resolver, token string) string {
	return resolver.StreamURL("stream", url.Values{"token": {token}})
}

func parseContext(scope, id string) (domain.Context, error) {
	switch scope {
	case "room":
		return domain.RoomContext(id), nil
	case "direct":
		return domain.DirectContext(id), nil
	default:
		return domain.Context{}, fmt.Errorf("unknown scope %q (want room or direct)", scope)
	}
}

func authorLabel(m domain.Message) string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	return m.SenderID
}

func renderBody(m domain.Message) string {
	parts := make([]string, 0, 2)
	if m.Body != "" {
		parts = append(parts, m.Body)
	}
	for _, u := range m.Attachments {
		parts = append(parts, fmt.Sprintf("<%s %s>", domain.KindOf(u), u))
	}
	if m.UploadFailed {
		parts = append(parts, "(upload failed)")
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " ")
}
