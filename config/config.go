// Package config loads the CLI configuration. Sources are layered, later
// ones win: built-in defaults, .env, YAML file, AUTHSESSION_* environment,
// explicitly set command line flags.
package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	authsession "github.com/goliatone/go-auth-session"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
)

// EnvPrefix namespaces every environment variable
const EnvPrefix = "AUTHSESSION_"

// Store kinds
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `koanf:"server" env:", prefix=SERVER_"`
	Session SessionConfig `koanf:"session" env:", prefix=SESSION_"`
	Store   StoreConfig   `koanf:"store" env:", prefix=STORE_"`
	Redis   RedisConfig   `koanf:"redis" env:", prefix=REDIS_"`
	Log     LogConfig     `koanf:"log" env:", prefix=LOG_"`
	Metrics MetricsConfig `koanf:"metrics" env:", prefix=METRICS_"`
	Backend BackendConfig `koanf:"backend" env:", prefix=BACKEND_"`
}

// ServerConfig points the client at the identity backend
type ServerConfig struct {
	URL        string        `koanf:"url" env:"URL"`
	Timeout    time.Duration `koanf:"timeout" env:"TIMEOUT"`
	Retries    uint64        `koanf:"retries" env:"RETRIES"`
	RetryDelay time.Duration `koanf:"retry_delay" env:"RETRY_DELAY"`
}

type SessionConfig struct {
	TrustOnRead bool `koanf:"trust_on_read" env:"TRUST_ON_READ"`
}

// StoreConfig selects where the session record is persisted. When
// Passphrase is set the record is encrypted at rest.
type StoreConfig struct {
	Kind       string        `koanf:"kind" env:"KIND"`
	Dir        string        `koanf:"dir" env:"DIR"`
	Namespace  string        `koanf:"namespace" env:"NAMESPACE"`
	Passphrase string        `koanf:"passphrase" env:"PASSPHRASE"`
	TTL        time.Duration `koanf:"ttl" env:"TTL"`
}

type RedisConfig struct {
	Addr     string        `koanf:"addr" env:"ADDR"`
	Password string        `koanf:"password" env:"PASSWORD"`
	DB       int           `koanf:"db" env:"DB"`
	Timeout  time.Duration `koanf:"timeout" env:"TIMEOUT"`
}

type LogConfig struct {
	Level  string `koanf:"level" env:"LEVEL"`
	Pretty bool   `koanf:"pretty" env:"PRETTY"`
}

// MetricsConfig enables a node-exporter textfile written after each command
type MetricsConfig struct {
	Textfile string `koanf:"textfile" env:"TEXTFILE"`
}

// BackendConfig configures the reference identity service started by serve
type BackendConfig struct {
	Listen      string        `koanf:"listen" env:"LISTEN"`
	DSN         string        `koanf:"dsn" env:"DSN"`
	SigningKey  string        `koanf:"signing_key" env:"SIGNING_KEY"`
	TokenTTL    time.Duration `koanf:"token_ttl" env:"TOKEN_TTL"`
	Issuer      string        `koanf:"issuer" env:"ISSUER"`
	PhoneRegion string        `koanf:"phone_region" env:"PHONE_REGION"`
	BcryptCost  int           `koanf:"bcrypt_cost" env:"BCRYPT_COST"`
	Verbose     bool          `koanf:"verbose" env:"VERBOSE"`
}

// Default returns the built-in configuration
func Default() Config {
	dir := "."
	if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, "authsession")
	}

	return Config{
		Server: ServerConfig{
			URL:        "http://127.0.0.1:8787",
			Timeout:    10 * time.Second,
			Retries:    3,
			RetryDelay: 200 * time.Millisecond,
		},
		Store: StoreConfig{
			Kind:      StoreFile,
			Dir:       dir,
			Namespace: authsession.DefaultNamespace,
		},
		Redis: RedisConfig{
			Addr:    "127.0.0.1:6379",
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Backend: BackendConfig{
			Listen:      ":8787",
			DSN:         "file:" + filepath.Join(dir, "directory.db") + "?cache=shared",
			TokenTTL:    time.Hour,
			Issuer:      "authsession",
			PhoneRegion: "US",
			BcryptCost:  12,
		},
	}
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"server":        "server.url",
	"timeout":       "server.timeout",
	"store":         "store.kind",
	"store-dir":     "store.dir",
	"namespace":     "store.namespace",
	"passphrase":    "store.passphrase",
	"trust-on-read": "session.trust_on_read",
	"log-level":     "log.level",
	"log-pretty":    "log.pretty",
	"metrics-file":  "metrics.textfile",
	"listen":        "backend.listen",
	"dsn":           "backend.dsn",
	"signing-key":   "backend.signing_key",
}

// Options tells Load where to look
type Options struct {
	// File is an optional YAML file. A missing file is an error only when
	// it was named explicitly.
	File string
	// EnvFile defaults to ".env" in the working directory; missing is fine.
	EnvFile string
	// Flags holds the command line flags, only changed ones are applied.
	Flags *pflag.FlagSet
	// Lookuper overrides the environment, mostly for tests.
	Lookuper envconfig.Lookuper
}

// Load builds the configuration from every source
func Load(ctx context.Context, opts Options) (Config, error) {
	cfg := Default()

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, oops.In("config").With("file", envFile).Wrapf(err, "load env file")
	}

	k := koanf.New(".")
	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return cfg, oops.In("config").With("file", opts.File).Wrapf(err, "load config file")
		}
	}

	// flags are decoded last so they beat the environment
	flags := koanf.New(".")
	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := flags.Load(provider, nil); err != nil {
			return cfg, oops.In("config").Wrapf(err, "load flags")
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, oops.In("config").Wrapf(err, "decode config")
	}
	if err := applyEnv(ctx, &cfg, opts.Lookuper); err != nil {
		return cfg, err
	}
	if err := flags.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, oops.In("config").Wrapf(err, "decode flags")
	}

	return cfg, cfg.Validate()
}

func applyEnv(ctx context.Context, cfg *Config, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, lookuper),
		DefaultOverwrite: true,
	})
	if err != nil {
		return oops.In("config").Wrapf(err, "load environment")
	}
	return nil
}

// Validate checks the settings every command relies on
func (c Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.URL, validation.Required, is.URL),
			validation.Field(&c.Server.Timeout, validation.Min(time.Duration(0))),
		),
		"store": validation.ValidateStruct(&c.Store,
			validation.Field(&c.Store.Kind, validation.Required, validation.In(StoreMemory, StoreFile, StoreSQLite, StoreRedis)),
			validation.Field(&c.Store.Namespace, validation.Required),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("", "trace", "debug", "info", "warn", "warning", "error")),
		),
	}.Filter()
	if err == nil && c.Store.Dir == "" && (c.Store.Kind == StoreFile || c.Store.Kind == StoreSQLite) {
		err = validation.Errors{"store": validation.Errors{"dir": errors.New("cannot be blank")}}
	}
	if err != nil {
		return oops.In("config").Wrapf(err, "invalid configuration")
	}
	return nil
}

// ValidateBackend checks the settings only serve needs
func (c Config) ValidateBackend() error {
	err := validation.ValidateStruct(&c.Backend,
		validation.Field(&c.Backend.Listen, validation.Required),
		validation.Field(&c.Backend.DSN, validation.Required),
		validation.Field(&c.Backend.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.Backend.TokenTTL, validation.Min(time.Second)),
	)
	if err != nil {
		return oops.In("config").Wrapf(err, "invalid backend configuration")
	}
	return nil
}
