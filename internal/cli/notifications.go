package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/denborg/chatsync/internal/connection"
	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/endpoint"
	"github.com/denborg/chatsync/internal/notify"
	"github.com/denborg/chatsync/internal/transcript"
	"github.com/denborg/chatsync/internal/wire"
)

func newNotificationsCmd() *cobra.Command {
	var transcriptPath string

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Follow the notification feeds and print alerts as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := endpoint.New(cfg.Server.Host, cfg.Server.APIBase, cfg.Server.WSBase)

			db, err := transcript.Open(transcriptPath, log)
			if err != nil {
				return err
			}
			defer db.Close()
			tlog := transcript.NewLog(db)

			inbox := notify.NewInbox(cfg.Notify.InboxLimit)
			deliver := func(n domain.Notification) {
				inbox.Add(n)
				tlog.RecordNotification(n)
				fmt.Fprintf(cmd.OutOrStdout(), "* %s: %s (%d unread)\n", n.Title, n.Body, inbox.UnreadCount())
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			retryDelay := time.Duration(cfg.Notify.RetryDelaySeconds) * time.Second

			// websocket scope: new_notification envelopes
			mgr := connection.NewManager(resolver, retryDelay, log)
			defer mgr.CloseAll()
			handle, err := mgr.Open(domain.NotificationsContext(), cfg.Auth.Token, func(ev wire.Event) {
				if arrived, ok := ev.(wire.NotificationArrived); ok {
					deliver(arrived.Notification)
				}
			})
			if err != nil {
				return err
			}
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				case <-handle.Done():
					info := handle.CloseInfo()
					return fmt.Errorf("notification socket closed: %d %s", info.Code, info.Reason)
				}
			})

			// event-stream feed: new_message_notification
			listener := notify.NewListener(
				notificationStreamURL(resolver, cfg.Auth.Token), retryDelay, nil, log,
			)
			listener.Subscribe(deliver)
			if err := listener.Start(gctx); err != nil {
				return err
			}
			g.Go(func() error {
				<-gctx.Done()
				listener.Stop()
				return nil
			})

			log.Info().Str("tenant", resolver.Tenant()).Msg("listening for notifications")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "transcript database path (default in-memory)")

	return cmd
}
