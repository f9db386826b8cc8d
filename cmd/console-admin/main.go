// Command console-admin bootstraps a console identity deployment: it applies
// the schema, seeds the first platform admin and creates tenants.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "console-admin",
		Short: "Administrative tasks for the console identity service",
		Long: `Administrative tasks for the console identity service.

Configuration is read from the same environment as the server
(STORE_DRIVER, DATABASE_URL or MONGO_URI, EMAIL_ENCRYPTION_KEY, ...).`,
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newCreateAdminCommand())
	root.AddCommand(newCreateTenantCommand())
	return root
}
