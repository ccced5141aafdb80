package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wacontacts/internal/infrastructure"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	UserID  int64
	Timeout time.Duration
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full contact sync for one paired user",
		Long: `Connect the user's paired WhatsApp device, wait until it is ready and
reconcile every contact into the store. The summary is printed as JSON.

Example:
  wacontacts sync --user-id 1
  wacontacts sync --user-id 1 --timeout 2m`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "user whose device is synced (required)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "how long to wait for the session to become ready")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	ctx := cmd.Context()
	rt, err := opts.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	manager := infrastructure.NewWhatsAppManager(rt.cfg.WhatsApp.DevicesDir, rt.log)
	defer manager.DisconnectAll()
	if !manager.HasDevice(opts.UserID) {
		return fmt.Errorf("user %d has no paired device", opts.UserID)
	}
	client, err := manager.ConnectClient(ctx, opts.UserID)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.WaitReady(wctx); err != nil {
		return fmt.Errorf("wait for session: %w", err)
	}

	summary, err := rt.contactService().SyncAll(ctx, client)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
