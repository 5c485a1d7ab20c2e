package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/capindex/internal/capability/service"
	"github.com/kamusis/capindex/internal/config"
	"github.com/kamusis/capindex/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:          "capindex",
	Short:        "Capability index for AI-editor elements",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Capindex maintains a persistent, human-readable discovery index over an
element catalog (personas, skills, templates, agents, memories) so a tool
layer can find the right element for a task without loading every element
into context.`,
}

var flagEnv string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "development", "Logging environment (development|production)")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadService loads config and wires the full service. Configuration load
// completes inside service.New, before any discovery can run.
func loadService() (*service.Service, *zap.Logger, error) {
	log, err := logging.New(flagEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot build logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot load config: %w\nRun 'capindex init' first.", err)
	}
	svc, err := service.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, log, nil
}
