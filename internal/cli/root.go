package cli

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"quizplay/internal/config"
)

// globals is filled by the root command before any subcommand runs.
type globals struct {
	configPath string
	viper      *viper.Viper
	cfg        config.Config
	logger     *slog.Logger
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	g := &globals{viper: newViper()}
	cmd := &cobra.Command{
		Use:           "quizplay",
		Short:         "Play quizzes against a quiz platform, or run the platform itself",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", envConfig, "path to YAML config")
	flags.String("server", "", "platform base URL")
	flags.String("profile", "", "local session profile")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = g.viper.BindPFlag("client.server_url", flags.Lookup("server"))
	_ = g.viper.BindPFlag("session.profile", flags.Lookup("profile"))
	_ = g.viper.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newLoginCmd(g),
		newSignupCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newQuizzesCmd(g),
		newPlayCmd(g),
		newWatchCmd(g),
		newProfileCmd(g),
		newServeCmd(g),
		newMigrateCmd(g),
	)
	return cmd
}

// newViper reads overrides from QUIZPLAY_* environment variables, e.g. QUIZPLAY_SERVER_JWT_SECRET.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "QUIZPLAY_SERVER_PORT", "PORT")
	return v
}

func (g *globals) load() error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	applyOverrides(g.viper, &cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	g.cfg = cfg
	g.logger = newLogger(cfg.Log.Level)
	slog.SetDefault(g.logger)
	return nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		"client.server_url":     &cfg.Client.ServerURL,
		"client.timeout":        &cfg.Client.Timeout,
		"client.sync_interval":  &cfg.Client.SyncInterval,
		"session.backend":       &cfg.Session.Backend,
		"session.path":          &cfg.Session.Path,
		"session.profile":       &cfg.Session.Profile,
		"session.ttl":           &cfg.Session.TTL,
		"server.port":           &cfg.Server.Port,
		"server.jwt_secret":     &cfg.Server.JWTSecret,
		"server.token_ttl":      &cfg.Server.TokenTTL,
		"server.admin_email":    &cfg.Server.AdminEmail,
		"server.admin_password": &cfg.Server.AdminPassword,
		"redis.addr":            &cfg.Redis.Addr,
		"redis.password":        &cfg.Redis.Password,
		"postgres.url":          &cfg.Postgres.URL,
		"catalog.ttl":           &cfg.Catalog.TTL,
		"log.level":             &cfg.Log.Level,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	bools := map[string]*bool{
		"client.live_feed":      &cfg.Client.LiveFeed,
		"server.expose_answers": &cfg.Server.ExposeAnswers,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	ints := map[string]*int{
		"server.points_per_correct": &cfg.Server.PointsPerCorrect,
		"redis.db":                  &cfg.Redis.DB,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		AddSource:  lvl == slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}
