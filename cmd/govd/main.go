// Command govd runs the governance service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/dao-governance/src/api/config"
	"github.com/stake-plus/dao-governance/src/data"
	"github.com/stake-plus/dao-governance/src/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "govd",
		Short:         "DAO governance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

// bootstrap loads configuration, builds the logger and connects MySQL.
func bootstrap() (config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("logger: %w", err)
	}
	db, err := data.ConnectMySQL(cfg.MySQLDSN, log, cfg.MySQLConnectWait)
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, err
	}
	return cfg, log, db, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			if err := data.Migrate(db); err != nil {
				return err
			}
			log.Info("schema migrated")
			return nil
		},
	}
}
