package main

import (
	"bufio"
	"time"

	"github.com/goliatone/go-auth-session/config"
	"github.com/goliatone/go-auth-session/logging"
	"github.com/goliatone/go-auth-session/metrics"
	"github.com/goliatone/go-auth-session/remote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// Doer sends requests to the identity service.
	// Default: http.DefaultClient
	Doer remote.Doer

	// Lookuper resolves AUTHSESSION_* variables.
	// Default: the process environment
	Lookuper envconfig.Lookuper

	// EnvFile is the dotenv file loaded before the environment.
	// Default: .env
	EnvFile string

	// Now is the clock handed to the Manager and the directory.
	// Default: time.Now
	Now func() time.Time
}

// runtime is the state shared by every command of one invocation
type runtime struct {
	deps       Deps
	configFile string

	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	input    *bufio.Reader
}

// NewRootCmd creates the root command for the authsession CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(Deps{})
}

func newRootCmd(deps Deps) *cobra.Command {
	rt := &runtime{deps: deps}

	cmd := &cobra.Command{
		Use:   "authsession",
		Short: "Sign in to the hotel management backend from the terminal",
		Long: `authsession keeps a signed in session on this device. The session is
revalidated against the identity service before it is trusted and
persisted in a file, sqlite, redis or memory store, optionally encrypted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rt.flush()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&rt.configFile, "config", "", "config file path")
	pf.String("server", "", "identity service base URL")
	pf.Duration("timeout", 0, "identity service request timeout")
	pf.String("store", "", "session store: memory, file, sqlite or redis")
	pf.String("store-dir", "", "directory used by the file and sqlite stores")
	pf.String("namespace", "", "key the session record is stored under")
	pf.String("passphrase", "", "encrypt the stored session with this passphrase")
	pf.Bool("trust-on-read", false, "trust the stored session and revalidate it in the background")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.Bool("log-pretty", false, "human friendly log output")
	pf.String("metrics-file", "", "write prometheus metrics to this textfile after the command")

	cmd.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newRefreshCmd(rt),
		newProfileCmd(rt),
		newPasswdCmd(rt),
		newServeCmd(rt),
		newAccountsCmd(rt),
	)

	return cmd
}

func (rt *runtime) load(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), config.Options{
		File:     rt.configFile,
		EnvFile:  rt.deps.EnvFile,
		Flags:    cmd.Flags(),
		Lookuper: rt.deps.Lookuper,
	})
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.logger = logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	rt.registry = prometheus.NewRegistry()
	rt.metrics = metrics.New(rt.registry)
	return nil
}

func (rt *runtime) flush() error {
	if rt.cfg.Metrics.Textfile == "" || rt.registry == nil {
		return nil
	}
	return metrics.WriteTextfile(rt.cfg.Metrics.Textfile, rt.registry)
}

func (rt *runtime) now() func() time.Time {
	if rt.deps.Now != nil {
		return rt.deps.Now
	}
	return time.Now
}
