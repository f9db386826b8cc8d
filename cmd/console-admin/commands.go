package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nodi/console-identity/internal/app"
	"github.com/nodi/console-identity/internal/core/ports"
	"github.com/nodi/console-identity/internal/core/service"
	"github.com/nodi/console-identity/internal/infrastructure/config"
	"github.com/nodi/console-identity/pkg/logger"
)

const adminPasswordEnv = "CONSOLE_ADMIN_PASSWORD"

const (
	emailFlag       = "email"
	passwordFlag    = "password"
	nameFlag        = "name"
	codeFlag        = "code"
	descriptionFlag = "description"
)

var adminFlags = map[string]cobraflags.Flag{
	emailFlag: &cobraflags.StringFlag{
		Name:  emailFlag,
		Value: "",
		Usage: "Email of the platform admin (required)",
	},
	passwordFlag: &cobraflags.StringFlag{
		Name:  passwordFlag,
		Value: "",
		Usage: "Initial password; falls back to $" + adminPasswordEnv,
	},
	nameFlag: &cobraflags.StringFlag{
		Name:  nameFlag,
		Value: "Admin",
		Usage: "Display name",
	},
}

var tenantFlags = map[string]cobraflags.Flag{
	codeFlag: &cobraflags.StringFlag{
		Name:  codeFlag,
		Value: "",
		Usage: "Unique tenant code (required)",
	},
	nameFlag: &cobraflags.StringFlag{
		Name:  nameFlag,
		Value: "",
		Usage: "Tenant display name (required)",
	},
	descriptionFlag: &cobraflags.StringFlag{
		Name:  descriptionFlag,
		Value: "",
		Usage: "Optional description",
	},
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations (PostgreSQL) or ensure indexes (MongoDB)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", env.cfg.StoreDriver)
			return nil
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the platform admin account if it does not exist",
		Long: `Create a tenant-less SUPER_ADMIN account with access to the admin area.

Running the command again with the same email leaves the existing account
untouched.`,
		RunE: createAdminCommand,
	}
	cobraflags.RegisterMap(cmd, adminFlags)
	return cmd
}

func createAdminCommand(cmd *cobra.Command, _ []string) error {
	email := adminFlags[emailFlag].GetString()
	if email == "" {
		return errors.New("--email is required")
	}
	password := adminFlags[passwordFlag].GetString()
	if password == "" {
		password = os.Getenv(adminPasswordEnv)
	}
	if password == "" {
		return fmt.Errorf("--password or $%s is required", adminPasswordEnv)
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	codec, hasher, err := app.Security(env.cfg)
	if err != nil {
		return err
	}
	accounts := service.NewAccountService(env.store, codec, hasher, logger.Component("accounts"))
	account, created, err := accounts.BootstrapAdmin(cmd.Context(), email, password, adminFlags[nameFlag].GetString())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !created {
		fmt.Fprintf(out, "account already exists: %s (%s)\n", account.ID, account.Role)
		return nil
	}
	fmt.Fprintf(out, "platform admin created: %s\n", account.ID)
	return nil
}

func newCreateTenantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-tenant",
		Short: "Create a customer tenant",
		RunE:  createTenantCommand,
	}
	cobraflags.RegisterMap(cmd, tenantFlags)
	return cmd
}

func createTenantCommand(cmd *cobra.Command, _ []string) error {
	in := ports.CreateTenantInput{
		Code:        tenantFlags[codeFlag].GetString(),
		Name:        tenantFlags[nameFlag].GetString(),
		Description: tenantFlags[descriptionFlag].GetString(),
	}
	if in.Code == "" || in.Name == "" {
		return errors.New("--code and --name are required")
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	tenants := service.NewTenantService(env.store, logger.Component("tenants"))
	tenant, err := tenants.Bootstrap(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tenant created: %s (%s)\n", tenant.ID, tenant.Code)
	return nil
}

type environment struct {
	cfg   *config.Config
	store ports.Store
	log   zerolog.Logger
}

// setup loads configuration and opens the store, applying the schema.
func setup(ctx context.Context) (*environment, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "console-admin",
		Output:  os.Stderr,
	})
	store, err := app.OpenStore(ctx, cfg, logger.Component("store"))
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, store: store, log: log}, nil
}

func (e *environment) close() {
	if err := e.store.Close(context.Background()); err != nil {
		e.log.Warn().Err(err).Msg("store close")
	}
}
