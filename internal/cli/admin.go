package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wacontacts/internal/repository"
	"wacontacts/internal/usecases"
)

// EnsureAdminOptions holds flags for the ensure-admin command.
type EnsureAdminOptions struct {
	*RootOptions
	Email    string
	Password string
	Phone    string
}

// NewEnsureAdminCommand creates the ensure-admin command.
func NewEnsureAdminCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnsureAdminOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ensure-admin",
		Short: "Create the admin user if it does not exist",
		Long: `Create an active admin user whose profile phone is allowed to act
as a WhatsApp session for that tenant.

Example:
  wacontacts ensure-admin --email admin@example.com --password s3cret --phone 5511999990000`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			auth := usecases.NewAuthUsecase(repository.NewUserRepository(rt.db), rt.cfg.JWT.Secret, rt.cfg.JWT.Expiry)
			created, err := auth.EnsureAdmin(cmd.Context(), opts.Email, opts.Password, opts.Phone)
			if err != nil {
				return fmt.Errorf("ensure admin: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", opts.Email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", opts.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "admin password (required)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "WhatsApp phone allowed to act for the admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
