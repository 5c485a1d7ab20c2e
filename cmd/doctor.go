package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/capindex/internal/capability/similar"
	"github.com/kamusis/capindex/internal/capability/store"
	"github.com/kamusis/capindex/internal/capability/verbs"
	"github.com/kamusis/capindex/internal/config"
	"github.com/kamusis/capindex/internal/logging"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that capindex's configuration, catalog, and index are healthy.
Run this command when something seems wrong, or before filing a bug report.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	allOK := true
	fail := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("capindex doctor")
	fmt.Println()

	// ── Check 1: ~/.capindex and capindex.yaml exist ──────────────────────────
	fmt.Println("[ Config ]")
	dir, err := config.CapindexDir()
	if err != nil {
		fail("cannot determine home directory: %v", err)
	} else {
		cfgPath, _ := config.ConfigPath()
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			fail("%s not found, run 'capindex init' first", cfgPath)
		} else {
			printOK("", fmt.Sprintf("~/.capindex/ exists: %s", dir))
		}
	}

	cfg, loadErr := config.Load()
	if loadErr != nil {
		fail("cannot parse capindex.yaml: %v", loadErr)
	} else {
		printOK("", "capindex.yaml parses")
	}
	fmt.Println()

	if cfg != nil {
		// ── Check 2: thresholds and confidence values are in range ────────────
		fmt.Println("[ Thresholds ]")
		if cfg.Similarity == nil {
			printSkip("", "no similarity section; built-in defaults apply")
		} else {
			t := similar.Thresholds{
				Combined:       cfg.Similarity.CombinedThreshold,
				MinJaccard:     cfg.Similarity.MinJaccard,
				ImbalanceRatio: cfg.Similarity.ImbalanceRatio,
				MinEntropy:     cfg.Similarity.MinEntropy,
			}
			if t.Valid() {
				printOK("", "similarity thresholds in range")
			} else {
				fail("similarity thresholds out of range; defaults will be used")
			}
		}
		if cfg.Confidence == nil {
			printSkip("", "no confidence section; built-in defaults apply")
		} else {
			c := verbs.Confidence{
				Explicit:          cfg.Confidence.Explicit,
				Name:              cfg.Confidence.NameBased,
				Description:       cfg.Confidence.DescriptionBased,
				SynonymMultiplier: cfg.Confidence.SynonymMultiplier,
			}
			if c.Valid() {
				printOK("", "trigger confidence values in range")
			} else {
				fail("trigger confidence values out of range; defaults will be used")
			}
		}
		fmt.Println()

		// ── Check 3: custom vocabulary parses ─────────────────────────────────
		fmt.Println("[ Vocabulary ]")
		if cfg.VocabularyPath == "" {
			printSkip("", "no custom vocabulary configured")
		} else if _, err := cfg.LoadVocabulary(); err != nil {
			fail("cannot load vocabulary %s: %v", cfg.VocabularyPath, err)
		} else {
			printOK("", fmt.Sprintf("vocabulary loads: %s", cfg.VocabularyPath))
		}
		fmt.Println()

		// ── Check 4: catalog directory ────────────────────────────────────────
		fmt.Println("[ Catalog ]")
		if info, err := os.Stat(cfg.CatalogPath); os.IsNotExist(err) {
			printWarn("", fmt.Sprintf("catalog directory missing: %s (rebuild will index nothing)", cfg.CatalogPath))
		} else if err != nil {
			fail("cannot stat catalog: %v", err)
		} else if !info.IsDir() {
			fail("catalog path is not a directory: %s", cfg.CatalogPath)
		} else {
			printOK("", fmt.Sprintf("catalog directory exists: %s", cfg.CatalogPath))
		}
		fmt.Println()

		// ── Check 5: index loads, with quarantine report ──────────────────────
		fmt.Println("[ Index ]")
		log, err := logging.New(flagEnv)
		if err != nil {
			return err
		}
		st := store.New(cfg.IndexPath, store.Options{Logger: log})
		if _, err := os.Stat(cfg.IndexPath); os.IsNotExist(err) {
			printSkip("", "no index yet, run 'capindex rebuild' to create one")
		} else if idx, report, err := st.Load(); err != nil {
			fail("cannot load index: %v", err)
		} else if report.Corrupt != nil {
			printWarn("", fmt.Sprintf("index was corrupt and has been quarantined: %s", report.Corrupt.Quarantine))
		} else {
			printOK("", fmt.Sprintf("index loads: %d element(s), %d relationship(s)",
				idx.ElementCount(), idx.RelationshipCount()))
		}
		if files, err := st.QuarantinedFiles(); err == nil && len(files) > 0 {
			printWarn("", fmt.Sprintf("%d quarantined file(s) present:", len(files)))
			for _, f := range files {
				fmt.Printf("       - %s\n", filepath.Base(f))
			}
		}
		if err := st.WithLock(time.Second, func() error { return nil }); err != nil {
			printWarn("", fmt.Sprintf("index lock is busy: %v", err))
		} else {
			printOK("", "index lock is free")
		}
	}

	fmt.Println()
	if !allOK {
		return fmt.Errorf("doctor found problems; see above")
	}
	fmt.Println("✓  All checks passed.")
	return nil
}
