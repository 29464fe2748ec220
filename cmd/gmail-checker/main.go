package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/gmail-checker/internal/checker"
	"github.com/joshsymonds/gmail-checker/internal/config"
	"github.com/joshsymonds/gmail-checker/internal/runtime"
	"github.com/joshsymonds/gmail-checker/internal/watermark"
)

const longHelp = `Check Gmail for unread important messages newer than the last 'mark_as_read'.

Commands:
  check         - Check for new messages since last 'mark_as_read'.
  list          - List new messages.
  unread_count  - Show the count of new unread messages.
  mark_as_read  - Mark all current messages as read.
  clear_read    - Clear the 'read' status to see all messages again.
  help          - Display this help message.

Environment:
  GMAIL_CHECKER_SECRET_PATH  OAuth client secret JSON (default ~/.mygmail_client_secret.json)
  GMAIL_CHECKER_FETCH_COUNT  maximum messages per query (default 10)
  GMAIL_CHECKER_APP_DIR      state directory (default $TMPDIR/gmail_checker)`

type rootFlags struct {
	quiet bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		runtime.DefaultLogger().Error("gmail-checker failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "gmail-checker [command]",
		Short:         "A tool to check Gmail messages.",
		Long:          longHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress informational output.")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		queryCmd("check", "Check for new messages since last 'mark_as_read'.", flags, (*checker.Service).Check),
		queryCmd("list", "List new messages.", flags, (*checker.Service).List),
		queryCmd("unread_count", "Show the count of new unread messages.", flags, (*checker.Service).UnreadCount),
		storeCmd("mark_as_read", "Mark all current messages as read.", (*checker.Service).MarkAsRead),
		storeCmd("clear_read", "Clear the 'read' status to see all messages again.", (*checker.Service).ClearRead),
	)

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)
	return cmd
}

type queryFunc func(*checker.Service, context.Context, checker.Options) error

// queryCmd builds a command that talks to Gmail.
func queryCmd(name, short string, flags *rootFlags, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := runtime.DefaultLogger()
			client, err := runtime.NewGmailClient(ctx, runtime.Auth{
				SecretPath: cfg.SecretPath,
				TokenPath:  cfg.TokenPath(),
				Prompt:     cmd.ErrOrStderr(),
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("create gmail client: %w", err)
			}
			svc := checker.NewService(client, watermark.NewStore(cfg.WatermarkPath(), logger), logger)
			svc.Out = cmd.OutOrStdout()
			return fn(svc, ctx, checker.Options{Quiet: flags.quiet, FetchCount: cfg.FetchCount})
		},
	}
}

type storeFunc func(*checker.Service, context.Context) error

// storeCmd builds a command that only touches the local watermark.
func storeCmd(name, short string, fn storeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := runtime.DefaultLogger()
			svc := checker.NewService(nil, watermark.NewStore(cfg.WatermarkPath(), logger), logger)
			svc.Out = cmd.OutOrStdout()
			return fn(svc, cmd.Context())
		},
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureAppDir(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
