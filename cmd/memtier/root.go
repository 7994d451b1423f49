package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/config"
	"github.com/openclaw/memtier/pkg/log"
)

// app carries the loaded configuration and flag overrides shared by all
// subcommands.
type app struct {
	cfg *config.Config

	configPath string
	userID     string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "memtier",
		Short:         "Two-tier conversational memory: short-term buffer plus durable vector store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().StringVarP(&a.userID, "user-id", "u", "", "user whose memory to operate on")
	root.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "report what would happen without writing")

	root.AddCommand(
		newCaptureCmd(a),
		newPromoteCmd(a),
		newExtractCmd(a),
		newSearchCmd(a),
		newContextCmd(a),
		newPruneCmd(a),
		newReplCmd(a),
		newScheduleCmd(a),
	)
	return root
}

// load reads .env, the config file and environment overrides, then
// initializes logging. Required settings fail fast here, before any
// network call.
func (a *app) load() error {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	// The flag wins over both the config file and the environment.
	if a.userID != "" {
		os.Setenv("MEMTIER_USER_ID", a.userID)
	}

	var cfg *config.Config
	var err error
	if a.configPath != "" {
		cfg, err = config.LoadFromFile(a.configPath)
	} else if _, statErr := os.Stat("memtier.yaml"); statErr == nil {
		cfg, err = config.LoadFromFile("memtier.yaml")
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Setup(cfg.Logging)
	a.cfg = cfg
	return nil
}
