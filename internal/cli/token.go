package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"credentialing-backend/internal/auth"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Subject string
	Roles   []string
	TTL     time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an owner key",
		Long: `Sign a short-lived access token with the configured JWT secret.

Example:
  draftctl token --subject 5f0c... --role applicant
  draftctl token --subject ops --role admin --ttl 1h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "owner key to put in the sub claim")
	cmd.Flags().StringSliceVar(&opts.Roles, "role", []string{auth.RoleApplicant}, "role claim (repeatable)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", auth.AccessTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	token, err := auth.GenerateAccessToken(opts.Subject, opts.Roles, cfg.JWTSecret, opts.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
