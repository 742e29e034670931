package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
)

const EnvPrefix = "TRIVIA"

type Config struct {
	Bind            string
	Port            int
	HTTPPort        int
	Driver          string
	Database        string
	QuestionURL     string
	QuestionAmount  int
	RefreshInterval time.Duration
	IdleTimeout     time.Duration
	HighscoreSize   int
	SeedManager     string
	WSOrigins       []string
	Verbose         bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port (must be between 0-65535 inclusive): %d", c.HTTPPort)
	}
	if c.HTTPPort == c.Port {
		return fmt.Errorf("--port and --http-port must differ: %d", c.Port)
	}
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid driver (must be sqlite or postgres): %q", c.Driver)
	}
	if c.Database == "" {
		return errors.New("--database must not be empty")
	}
	if c.QuestionAmount < 0 || c.QuestionAmount > 50 {
		return fmt.Errorf("invalid question amount (must be between 0-50 inclusive): %d", c.QuestionAmount)
	}
	if c.RefreshInterval != 0 && c.RefreshInterval < 10*time.Second {
		return fmt.Errorf("refresh interval must be 0 or at least 10s: %s", c.RefreshInterval)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative: %s", c.IdleTimeout)
	}
	if c.HighscoreSize < 1 {
		return fmt.Errorf("highscore size must be positive: %d", c.HighscoreSize)
	}
	if c.SeedManager != "" {
		if _, _, err := c.SeedManagerCredentials(); err != nil {
			return err
		}
	}
	return nil
}

// SeedManagerCredentials splits --seed-manager "user:pass".
func (c *Config) SeedManagerCredentials() (user, pass string, err error) {
	user, pass, ok := strings.Cut(c.SeedManager, ":")
	if !ok || user == "" || pass == "" {
		return "", "", fmt.Errorf("--seed-manager must be user:pass, got %q", c.SeedManager)
	}
	if err := accounts.ValidateCredentials(user, pass); err != nil {
		return "", "", fmt.Errorf("--seed-manager: %w", err)
	}
	return user, pass, nil
}

func (c *Config) ListenAddr() string { return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port)) }

func (c *Config) HTTPAddr() string { return net.JoinHostPort(c.Bind, strconv.Itoa(c.HTTPPort)) }

func (c *Config) Logger() (*zap.Logger, error) {
	if c.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// LoadDotEnv loads .env style files into the process environment. Missing files are
// skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// AddFlags registers the server flags on fs.
func AddFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIA_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 5678, "trivia protocol port (env: TRIVIA_PORT)")
	fs.IntVar(&cfg.HTTPPort, "http-port", 8080, "http api and websocket port, 0 to disable (env: TRIVIA_HTTP_PORT)")
	fs.StringVar(&cfg.Driver, "driver", "sqlite", "account database driver: sqlite or postgres (env: TRIVIA_DRIVER)")
	fs.StringVar(&cfg.Database, "database", "trivia.db", "account database path or dsn (env: TRIVIA_DATABASE)")
	fs.StringVar(&cfg.QuestionURL, "question-url", "https://opentdb.com/api.php", "open trivia db endpoint (env: TRIVIA_QUESTION_URL)")
	fs.IntVar(&cfg.QuestionAmount, "question-amount", 50, "questions per fetch, 0 to disable (env: TRIVIA_QUESTION_AMOUNT)")
	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", 0, "time between question fetches, 0 for startup only (env: TRIVIA_REFRESH_INTERVAL)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", 30*time.Minute, "time before idle connections are dropped, 0 to disable (env: TRIVIA_IDLE_TIMEOUT)")
	fs.IntVar(&cfg.HighscoreSize, "highscore-size", 10, "entries in a highscore reply (env: TRIVIA_HIGHSCORE_SIZE)")
	fs.StringVar(&cfg.SeedManager, "seed-manager", "", "ensure a manager account exists, as user:pass (env: TRIVIA_SEED_MANAGER)")
	fs.StringSliceVar(&cfg.WSOrigins, "ws-origins", nil, "extra allowed websocket origin patterns (env: TRIVIA_WS_ORIGINS)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: TRIVIA_VERBOSE)")
}

// BindEnv lets TRIVIA_* environment variables supply any flag not set on the
// command line.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// NewCommand builds the server command. run receives the validated config.
func NewCommand(cfg *Config, version string, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trivia-server",
		Short:         "A trivia game server speaking a length-prefixed text protocol.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			BindEnv(cmd.Flags())
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg)
		},
	}

	AddFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("trivia-server v{{.Version}}\n")
	return cmd
}
