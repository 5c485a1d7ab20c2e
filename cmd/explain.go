package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/capindex/internal/capability/store"
)

var explainCmd = &cobra.Command{
	Use:   "explain <from> <to>",
	Short: "Show how two elements are related",
	Long: `Find the shortest relationship path between two elements and print it
hop by hop. Elements can be given as "type:id" or as a bare id.

Example:
  capindex explain skills:debug-detective skills:test-writer
  capindex explain debug-detective test-writer`,
	Args: cobra.ExactArgs(2),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func runExplain(_ *cobra.Command, args []string) error {
	svc, log, err := loadService()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	path, ok, err := svc.ExplainRelationship(args[0], args[1])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			printMiss("", err.Error())
			return nil
		}
		return err
	}
	if !ok {
		printMiss("", fmt.Sprintf("no relationship path from %s to %s", args[0], args[1]))
		return nil
	}
	if len(path) == 0 {
		printOK("", fmt.Sprintf("%s and %s are the same element", args[0], args[1]))
		return nil
	}

	printSection(fmt.Sprintf("Path: %s → %s", args[0], args[1]))
	fmt.Println()
	for i, step := range path {
		fmt.Printf("%2d. %s --[%s %.2f]--> %s\n",
			i+1, step.From, step.Edge.Type, step.Edge.Strength, step.Edge.Target)
		if m := step.Edge.Meta; m.Method != "" {
			fmt.Printf("      discovered by %s\n", m.Method)
		}
	}
	return nil
}
