package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/baptistelechat/overti-me/internal/app"
	"github.com/spf13/cobra"
)

var errRemoteDisabled = errors.New("remote sync is disabled, set remote.enabled in the configuration")

var (
	emailFlag    string
	passwordFlag string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the remote account",
}

var userSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a remote account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

func init() {
	userSignupCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	userSignupCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	_ = userSignupCmd.MarkFlagRequired("email")
	_ = userSignupCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userSignupCmd)
}

func runSignup(cmd *cobra.Command, args []string) error {
	return withRemote(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		u, err := deps.UserService.Signup(ctx, emailFlag, passwordFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (%s)\n", u.Email, u.Uid)
		return nil
	})
}

func withRemote(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		if deps.SyncEngine == nil {
			return errRemoteDisabled
		}
		return fn(ctx, deps)
	})
}
