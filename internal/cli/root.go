package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
	"loomkit/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "LOOMKIT"

type RootConfig struct {
	ConfigFile string
	LogLevel   string
	Project    string
	CacheDir   string
	WorkDir    string
	Offline    bool
	Threads    int
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg(errorMessage(err))
		stop()
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           "loomkit",
		Short:         "Compose mappings, remap and process game jars for modding workspaces",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString(config.KeyLogLevel))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flags.StringVarP(&cfg.Project, "project", "p", "loomkit.yaml", "Project file (yaml or toml)")
	flags.StringVar(&cfg.CacheDir, "cache-dir", "", "Cache directory for mappings and downloads")
	flags.StringVar(&cfg.WorkDir, "work-dir", "", "Working directory for game and remapped jars")
	flags.BoolVar(&cfg.Offline, "offline", false, "Never download, use what is on disk")
	flags.IntVar(&cfg.Threads, "threads", 0, "Worker count for jar transforms and downloads")
	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag("project", flags.Lookup("project"))
	_ = viper.BindPFlag(config.KeyOffline, flags.Lookup("offline"))
	_ = viper.BindPFlag(config.KeyCacheDir, flags.Lookup("cache-dir"))
	_ = viper.BindPFlag(config.KeyWorkDir, flags.Lookup("work-dir"))
	_ = viper.BindPFlag(config.KeyThreads, flags.Lookup("threads"))

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newMappingsCommand())
	cmd.AddCommand(newRemapCommand())
	cmd.AddCommand(newSetupCommand())
	cmd.AddCommand(newDecompileCommand())
	cmd.AddCommand(newAccessWidenerCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("loomkit-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/loomkit")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func newAppService() app.Service {
	return app.NewService(config.Load())
}

func projectPath() string {
	return viper.GetString("project")
}

func exitCodeForError(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	code := errbuilder.CodeOf(err)
	switch code {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
