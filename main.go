package main

import (
	"os"

	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ms-attendance",
		Short:        "Attendance reconciliation and blocklist service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newEventsCmd())
	return root
}

// bootstrap loads .env, reads the configuration and opens the logger every
// command shares.
func bootstrap() (*config.Config, *logger.Logger) {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{Dir: cfg.Log.Dir, Debug: cfg.Log.Debug})
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	return cfg, log
}
