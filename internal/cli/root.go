// Package cli implements the memoryctl CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/engine"
	"github.com/quillon/agent-memory/internal/store"
)

var (
	dbPath      string
	configPath  string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Tiered agent memory engine",
	Long:  "Operate the tiered agent memory store: record turns, retrieve ranked context, run consolidation, inspect jobs. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMORYCTL_DB or ~/.memoryctl/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Engine config file (YAML)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("MEMORYCTL_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memoryctl", "memory.db")
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger() *zap.Logger {
	if !verboseFlag {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openEngine() (*engine.Engine, *store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewSQLiteStore(getDBPath())
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.New(s, nil, cfg, newLogger())
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return e, s, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
