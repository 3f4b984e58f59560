package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "WORDGUESS"
	ReleaseVersion = "0.1.0"
)

type Config struct {
	Bind            string
	Port            int
	Verbose         bool
	MaxRounds       int
	WordsFile       string
	DatabaseURL     string
	Origins         []string
	PingInterval    time.Duration
	Rate            float64
	Burst           int
	OutboxSize      int
	ShutdownTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("invalid max rounds (must be positive): %d", c.MaxRounds)
	}
	if c.Rate <= 0 || c.Burst < 1 {
		return errors.New("--rate and --burst must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("invalid ping interval: %s", c.PingInterval)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("invalid outbox size: %d", c.OutboxSize)
	}
	return nil
}

func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

// NewCommand builds the root command. Flags fall back to WORDGUESS_* env vars.
func NewCommand(cfg *Config, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "word-guess-server",
		Short:   "Timed word-guessing party game server.",
		Args:    cobra.ExactArgs(0),
		Version: ReleaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDGUESS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: WORDGUESS_PORT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "human-readable debug logging (env: WORDGUESS_VERBOSE)")
	fs.IntVar(&cfg.MaxRounds, "max-rounds", 5, "rounds per game (env: WORDGUESS_MAX_ROUNDS)")
	fs.StringVar(&cfg.WordsFile, "words-file", "", "word catalog (json/yaml/toml) replacing the built-in one (env: WORDGUESS_WORDS_FILE)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN for the results archive; empty disables it (env: WORDGUESS_DATABASE_URL)")
	fs.StringSliceVar(&cfg.Origins, "origins", nil, "extra allowed websocket origin patterns (env: WORDGUESS_ORIGINS)")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", 30*time.Second, "keepalive ping period; a connection is dropped only when a ping goes unanswered (env: WORDGUESS_PING_INTERVAL)")
	fs.Float64Var(&cfg.Rate, "rate", 10, "inbound messages per second per connection (env: WORDGUESS_RATE)")
	fs.IntVar(&cfg.Burst, "burst", 20, "inbound message burst per connection (env: WORDGUESS_BURST)")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", 32, "frames queued per connection before broadcasts skip it (env: WORDGUESS_OUTBOX_SIZE)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for open requests on shutdown (env: WORDGUESS_SHUTDOWN_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("word-guess-server v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
