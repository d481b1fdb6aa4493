package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

// embeddedConfig is the application configuration bundled into the binary.
// ${VAR} placeholders are expanded from the environment at load time.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// options holds the flags shared by every subcommand.
type options struct {
	envFile    string
	dbAdapters string
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.envFile, embeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Sequencer.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Sequencer.System.Logging.Level)
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "sequencer",
		Short:         "Job operation sequencing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.envFile, "env-file", envOr("ENV_FILE_PATH", ".env"), "path of the .env file loaded before the configuration")
	cmd.PersistentFlags().StringVar(&o.dbAdapters, "db-adapters", os.Getenv("DB_ADAPTERS"), "comma-separated database adapters to register (default postgres,mysql,sqlite)")

	cmd.AddCommand(newServeCommand(o), newMigrateCommand(o), newRecalculateCommand(o))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer logger.Sync()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		cancel()
		logger.Sync()
		os.Exit(1)
	}
}
