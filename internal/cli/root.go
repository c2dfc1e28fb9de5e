// Package cli wires the chatsync commands.
package cli

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/denborg/chatsync/internal/config"
	"github.com/denborg/chatsync/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded in PersistentPreRunE
	cfg config.Config
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatsync",
		Short: "Chatsync — real-time chat sync client",
		Long:  "Chatsync keeps a live local view of chat rooms and direct conversations:\nwebsocket sync, optimistic sends, presence, and cross-room notifications.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; env vars override the config file
			_ = godotenv.Load()

			path := cfgFile
			if path == "" {
				if home, err := os.UserHomeDir(); err == nil {
					path = filepath.Join(home, ".chatsync", "config.yaml")
				}
			}

			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			log = logging.New(os.Stderr, level, cfg.Logging.Style)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.chatsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newNotificationsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
