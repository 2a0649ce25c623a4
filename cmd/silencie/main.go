package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/silencie/silencie/internal/config"
	"github.com/silencie/silencie/internal/db"
)

var (
	cfg *config.Config
	log *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "silencie",
		Short: "Silencie meditation program server",
		Long: `Silencie serves the diagnostic forms of the guided meditation
program and the admin API that manages templates, programs and members.
Running it without a subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = c
			log = cfg.NewLogger()
			return nil
		},
		RunE: runServe,
	}
)

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, importTemplateCmd, createUserCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB connects and migrates the configured database.
func openDB() (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogLevel <= slog.LevelDebug {
		level = logger.Info
	}
	gdb, err := db.Open(cfg.DatabaseURL, level)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb, cfg.MigrationsDir); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}
