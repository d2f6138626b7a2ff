package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/baptistelechat/overti-me/pkg/week_sync"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize weeks with the remote account",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and run a first synchronization",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var syncLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out, keeping local weeks",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

func init() {
	syncLoginCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	syncLoginCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	_ = syncLoginCmd.MarkFlagRequired("email")
	_ = syncLoginCmd.MarkFlagRequired("password")

	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncLogoutCmd)
	syncCmd.AddCommand(syncStatusCmd)
}

// runSync relies on the session resumed while building dependencies, then syncs once more
// so the result reflects the latest remote state.
func runSync(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		err := deps.SyncEngine.Sync(ctx)
		printStatus(cmd.OutOrStdout(), deps.SyncEngine.Status())
		return err
	})
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		account, err := deps.UserService.Authenticate(ctx, emailFlag, passwordFlag)
		if err != nil {
			return err
		}
		err = deps.SyncEngine.StartSession(ctx, account)
		printStatus(cmd.OutOrStdout(), deps.SyncEngine.Status())
		return err
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		deps.SyncEngine.EndSession(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out. Local weeks are kept.")
		return nil
	})
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		printStatus(cmd.OutOrStdout(), deps.SyncEngine.Status())
		return nil
	})
}

func printStatus(out io.Writer, status week_sync.StatusSnapshot) {
	if status.User == nil {
		fmt.Fprintln(out, "Not signed in.")
		return
	}
	fmt.Fprintf(out, "Signed in as %s\n", status.User.Email)
	fmt.Fprintf(out, "Status:       %s\n", status.SyncStatus)
	if status.SyncError != "" {
		fmt.Fprintf(out, "Error:        %s\n", status.SyncError)
	}
	if status.LastSyncedAt != nil {
		fmt.Fprintf(out, "Last synced:  %s\n", humanize.Time(*status.LastSyncedAt))
	} else {
		fmt.Fprintln(out, "Last synced:  never")
	}
	fmt.Fprintf(out, "Merge policy: %s\n", status.MergePolicy)
	if status.SyncInterval > 0 {
		fmt.Fprintf(out, "Auto sync:    every %s\n", status.SyncInterval)
	}
}
