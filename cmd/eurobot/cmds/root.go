package cmds

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eurobot/webchat/internal/config"
	"github.com/eurobot/webchat/internal/logging"
	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/backend"
	"github.com/eurobot/webchat/internal/service/connectivity"
)

type rootOptions struct {
	configPath    string
	envFile       string
	backendURL    string
	healthTimeout time.Duration
	chatTimeout   time.Duration
	logLevel      string
	logFormat     string

	cfg *config.Config
}

// NewRootCommand builds the eurobot command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "eurobot",
		Short:        "EURO-Bot chat client for the European specialist backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $EUROBOT_CONFIG)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&opts.backendURL, "backend-url", "", "backend base address, e.g. http://localhost:5000/api")
	flags.DurationVar(&opts.healthTimeout, "health-timeout", 0, "bound for health probes")
	flags.DurationVar(&opts.chatTimeout, "chat-timeout", 0, "bound for chat requests")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "console or json")

	root.AddCommand(
		newServeCommand(opts),
		newChatCommand(opts),
		newProbeCommand(opts),
	)
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && cmd.Flags().Changed("env-file") {
			return errors.Wrapf(err, "load %s", o.envFile)
		}
	}

	path := o.configPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("EUROBOT_CONFIG"))
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	if o.backendURL != "" {
		cfg.Backend.BaseURL = o.backendURL
	}
	if o.healthTimeout > 0 {
		cfg.Backend.HealthTimeout = o.healthTimeout
	}
	if o.chatTimeout > 0 {
		cfg.Backend.ChatTimeout = o.chatTimeout
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// backendClient builds the HTTP client and its health monitor from the loaded config.
func (o *rootOptions) backendClient() (*backend.Client, *connectivity.Monitor, error) {
	client, err := backend.New(backend.Options{
		BaseURL:       o.cfg.Backend.BaseURL,
		HealthTimeout: o.cfg.Backend.HealthTimeout,
		ChatTimeout:   o.cfg.Backend.ChatTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("backend", client.BaseURL()).Msg("backend client configured")
	return client, connectivity.NewMonitor(client), nil
}

func (o *rootOptions) profile() profile.Profile {
	return o.cfg.Bot.Profile()
}
