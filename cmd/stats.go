package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the index: element and relationship counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	svc, log, err := loadService()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	stats, err := svc.Stats()
	if err != nil {
		return err
	}

	printSection("capindex stats")
	fmt.Printf("\nElements:      %d\n", stats.ElementCount)
	fmt.Printf("Relationships: %d\n", stats.RelationshipCount)

	if len(stats.CountsByType) > 0 {
		fmt.Println("\n[ Elements by type ]")
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, t := range sortedStringKeys(stats.CountsByType) {
			fmt.Fprintf(w, "  %s\t%d\n", t, stats.CountsByType[t])
		}
		w.Flush()
	}

	if len(stats.Relationships) > 0 {
		fmt.Println("\n[ Relationships by type ]")
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  type\tcount\tmean strength")
		types := make([]string, 0, len(stats.Relationships))
		for t := range stats.Relationships {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			ts := stats.Relationships[t]
			fmt.Fprintf(w, "  %s\t%d\t%.2f\n", t, ts.Count, ts.MeanStrength)
		}
		w.Flush()
	}
	return nil
}

func sortedStringKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
