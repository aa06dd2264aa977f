package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/directory"
	"github.com/goliatone/go-auth-session/httpapi"
	"github.com/goliatone/go-auth-session/internal/sqlite"
	"github.com/goliatone/go-auth-session/logging"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference identity service",
		Long: `Run the identity service the client commands talk to. Accounts live in
a sqlite database managed with the accounts command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd)
		},
	}

	cmd.Flags().String("listen", "", "listen address")
	cmd.Flags().String("dsn", "", "accounts database DSN")
	cmd.Flags().String("signing-key", "", "HMAC key for access tokens, at least 16 bytes")
	return cmd
}

func (rt *runtime) serve(cmd *cobra.Command) error {
	cfg := rt.cfg.Backend
	if err := rt.cfg.ValidateBackend(); err != nil {
		return err
	}

	dir, closeDB, err := rt.openDirectory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	server, err := httpapi.New(dir, httpapi.Config{
		SigningKey: []byte(cfg.SigningKey),
		TokenTTL:   cfg.TokenTTL,
		Issuer:     cfg.Issuer,
	},
		httpapi.WithLogger(logging.NewAdapter(rt.logger, "httpapi")),
		httpapi.WithRegistry(rt.registry),
		httpapi.WithClock(rt.now()),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- server.Listen(cfg.Listen)
	}()
	rt.logger.Info().Str("addr", cfg.Listen).Msg("identity service listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func newAccountsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts of the reference identity service",
	}
	cmd.PersistentFlags().String("dsn", "", "accounts database DSN")

	cmd.AddCommand(
		newAccountsAddCmd(rt),
		newAccountsSetActiveCmd(rt, "activate", true),
		newAccountsSetActiveCmd(rt, "deactivate", false),
	)
	return cmd
}

func newAccountsAddCmd(rt *runtime) *cobra.Command {
	var (
		reg  directory.Registration
		role string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, closeDB, err := rt.openDirectory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			parsed, ok := authsession.ParseRole(role)
			if !ok {
				return oops.In("cli").With("role", role).Errorf("unknown role, expected one of %v", authsession.GetAllRoles())
			}
			reg.Role = parsed

			user, err := dir.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&reg.Email, "email", "", "account email")
	flags.StringVar(&reg.Password, "password", "", "initial password")
	flags.StringVar(&reg.FullName, "name", "", "full name")
	flags.StringVar(&reg.Phone, "phone", "", "phone number")
	flags.StringVar(&reg.Timezone, "timezone", "", "IANA timezone")
	flags.StringVar(&reg.Language, "language", "", "preferred language")
	flags.StringVar(&role, "role", string(authsession.RoleHotelStaff), "hotel_staff, hotel_owner or master_admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAccountsSetActiveCmd(rt *runtime, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, closeDB, err := rt.openDirectory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			user, err := dir.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := dir.SetActive(cmd.Context(), user.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", user.Email, use)
			return nil
		},
	}
}

// openDirectory opens and migrates the accounts database
func (rt *runtime) openDirectory(ctx context.Context) (*directory.Directory, func(), error) {
	cfg := rt.cfg.Backend
	if err := ensureDSNDir(cfg.DSN); err != nil {
		return nil, nil, err
	}

	db, err := sqlite.Open(cfg.DSN, sqlite.Options{Verbose: cfg.Verbose})
	if err != nil {
		return nil, nil, err
	}

	opts := []directory.Option{
		directory.WithPhoneRegion(cfg.PhoneRegion),
		directory.WithLogger(logging.NewAdapter(rt.logger, "directory")),
		directory.WithClock(rt.now()),
	}
	if cfg.BcryptCost > 0 {
		opts = append(opts, directory.WithBcryptCost(cfg.BcryptCost))
	}

	dir := directory.New(db, opts...)
	if err := dir.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return dir, func() { _ = db.Close() }, nil
}

// ensureDSNDir creates the parent directory of a file DSN
func ensureDSNDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == sqlite.MemoryDSN || strings.HasPrefix(path, ":") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return oops.In("cli").With("dsn", dsn).Wrapf(err, "create database directory")
	}
	return nil
}
