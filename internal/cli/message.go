package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/denborg/chatsync/internal/connection"
	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/endpoint"
	"github.com/denborg/chatsync/internal/wire"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Edit, react to, and delete messages",
	}

	cmd.AddCommand(newMessageEditCmd())
	cmd.AddCommand(newMessageReactCmd())
	cmd.AddCommand(newMessageDeleteCmd())
	cmd.AddCommand(newMessageHistoryCmd())
	return cmd
}

// openConversation dials the conversation socket and hands frames to
// onEvent (which may be nil for write-only commands).
func openConversation(scope, id string, onEvent func(wire.Event)) (*connection.Manager, *connection.Handle, error) {
	convCtx, err := parseContext(scope, id)
	if err != nil {
		return nil, nil, err
	}
	if onEvent == nil {
		onEvent = func(wire.Event) {}
	}

	resolver := endpoint.New(cfg.Server.Host, cfg.Server.APIBase, cfg.Server.WSBase)
	retryDelay := time.Duration(cfg.Notify.RetryDelaySeconds) * time.Second
	mgr := connection.NewManager(resolver, retryDelay, log)

	handle, err := mgr.Open(convCtx, cfg.Auth.Token, onEvent)
	if err != nil {
		return nil, nil, err
	}
	return mgr, handle, nil
}

func newMessageEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <room|direct> <id> <messageID> <body>",
		Short: "Replace the body of a message you sent",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, handle, err := openConversation(args[0], args[1], nil)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			frame, err := wire.EditFrame(args[2], args[3])
			if err != nil {
				return err
			}
			return handle.Send(frame)
		},
	}
}

func newMessageReactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "react <room|direct> <id> <messageID> <emoji>",
		Short: "Toggle a reaction on a message",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, handle, err := openConversation(args[0], args[1], nil)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			frame, err := wire.ReactionFrame(args[2], args[3])
			if err != nil {
				return err
			}
			return handle.Send(frame)
		},
	}
}

func newMessageDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <room|direct> <id> <messageID>",
		Short: "Delete a message you sent",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, handle, err := openConversation(args[0], args[1], nil)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			frame, err := wire.DeleteFrame(args[2])
			if err != nil {
				return err
			}
			return handle.Send(frame)
		},
	}
}

func newMessageHistoryCmd() *cobra.Command {
	var (
		limit    int
		beforeID string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history <room|direct> <id>",
		Short: "Request a page of older messages and print it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages := make(chan []domain.Message, 1)
			mgr, handle, err := openConversation(args[0], args[1], func(ev wire.Event) {
				if batch, ok := ev.(wire.Backfill); ok {
					select {
					case pages <- batch.Messages:
					default:
					}
				}
			})
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			frame, err := wire.LoadMoreFrame(limit, beforeID)
			if err != nil {
				return err
			}
			if err := handle.Send(frame); err != nil {
				return err
			}

			select {
			case msgs := <-pages:
				for _, m := range msgs {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n",
						m.CreatedAt.Local().Format("2006-01-02 15:04:05"), authorLabel(m), renderBody(m))
				}
				return nil
			case <-handle.Done():
				info := handle.CloseInfo()
				return fmt.Errorf("conversation socket closed: %d %s", info.Code, info.Reason)
			case <-time.After(timeout):
				return fmt.Errorf("timed out waiting for history page")
			}
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "messages per page")
	cmd.Flags().StringVar(&beforeID, "before", "", "page before this message id")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the page")

	return cmd
}
