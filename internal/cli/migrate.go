package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or extend the draft tables",
		Long: `Create every table the draft registry declares and add missing columns.

Existing columns and rows are never dropped.

Example:
  draftctl migrate --config ./app.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema ready: %d tables on %s\n", len(e.reg.AllEntities()), e.store.Dialect.Name())
			return nil
		},
	}
}
