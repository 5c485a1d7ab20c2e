package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Sync the index with the catalog and rediscover relationships",
	Long: `Rebuild the capability index from the element catalog.

The run is a single locked unit: load the index, reconcile it with the
catalog, extract verb triggers, discover relationships, rescore
similarity for changed elements, and save atomically. Use --full to
rescore every pair instead of only pairs touching changed elements.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

var flagRebuildFull bool

func init() {
	rebuildCmd.Flags().BoolVar(&flagRebuildFull, "full", false, "Rescore similarity for all element pairs, not just changed ones")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	svc, log, err := loadService()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	res, err := svc.Rebuild(contextFrom(cmd), flagRebuildFull)
	if err != nil {
		if res != nil && res.Recovered != "" {
			printWarn("", fmt.Sprintf("Corrupt index quarantined: %s", res.Recovered))
		}
		return fmt.Errorf("rebuild failed: %w", err)
	}

	printSection("capindex rebuild")
	fmt.Printf("\nRun: %s\n", res.Run)

	if res.Recovered != "" {
		printWarn("", fmt.Sprintf("Previous index was corrupt; quarantined as %s and rebuilt from scratch", res.Recovered))
	}

	fmt.Println("\n[ Catalog ]")
	printOK("", fmt.Sprintf("%d element(s) in catalog", res.Elements))
	printInfo("", fmt.Sprintf("%d added, %d updated, %d removed", res.Added, res.Updated, res.Removed))
	for _, skip := range res.CatalogSkipped {
		printSkip("", skip.Error())
	}

	fmt.Println("\n[ Triggers ]")
	printOK("", fmt.Sprintf("%d element(s) gained or changed triggers", res.Triggers))

	fmt.Println("\n[ Relationships ]")
	printOK("", fmt.Sprintf("%d pattern edge(s), %d verb edge(s)", res.Discovery.PatternEdges, res.Discovery.VerbEdges))
	if res.Discovery.SkippedUnknown > 0 {
		printWarn("", fmt.Sprintf("%d reference(s) to unknown relationship types skipped", res.Discovery.SkippedUnknown))
	}
	for _, issue := range res.Discovery.Issues {
		printErr(issue.Ref.String(), fmt.Sprintf("%s: %v", issue.Stage, issue.Err))
	}

	fmt.Println("\n[ Similarity ]")
	sim := res.Similarity
	printOK("", fmt.Sprintf("%d pair(s) scored: %d edge(s) added, %d updated, %d removed",
		sim.PairsScored, sim.EdgesAdded, sim.EdgesUpdated, sim.EdgesRemoved))

	if len(res.SaveWarnings) > 0 {
		fmt.Println("\n[ Save ]")
		for _, w := range res.SaveWarnings {
			printWarn("", w)
		}
	}

	fmt.Println("\n✓  Rebuild complete.")
	return nil
}

// contextFrom returns the command context, for tests that invoke runRebuild
// without a cobra execution.
func contextFrom(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
