package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/capindex/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap ~/.capindex and write the default configuration",
	Long: `Initialize the capindex working directory at ~/.capindex/.

Creates the directory, writes capindex.yaml with default settings, and
creates the element catalog directory it points at. Running init again is
safe: an existing config is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	dir, err := config.CapindexDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("Capindex directory ready: %s", dir))

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.CatalogPath, 0o755); err != nil {
		return fmt.Errorf("cannot create catalog directory: %w", err)
	}
	printOK("", fmt.Sprintf("Catalog directory ready: %s", cfg.CatalogPath))

	fmt.Println("\n✓  capindex init complete. Add elements under the catalog directory, then run 'capindex rebuild'.")
	return nil
}
