package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"api_pos/internal/app"
	"api_pos/internal/auth"
	"api_pos/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pos",
		Short:        "Point-of-sale API with M-Pesa STK push payments",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newCreateUserCmd())
	return root
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("failed to start", zap.Error(err))
				return err
			}
			defer a.Close()

			if !skipMigrate {
				if err := a.Migrate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run migrations before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			a, err := app.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Migrate()
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	var in auth.CreateUserInput
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a staff account, typically the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			a, err := app.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Migrate(); err != nil {
				return err
			}

			if in.Password == "" {
				in.Password = os.Getenv("POS_USER_PASSWORD")
			}
			in.ConfirmPassword = in.Password
			in.Role = auth.Role(role)

			u, err := a.Auth.CreateUser(context.Background(), auth.System, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (or POS_USER_PASSWORD)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "admin, manager, waiter or cashier")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
