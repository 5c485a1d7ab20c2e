package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/capindex/internal/capability/service"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Find elements matching a natural-language request",
	Long: `Resolve a request like "help me debug this test" to a ranked list of
catalog elements. Matching starts from verb triggers; with --expand the
search also walks relationship edges outward from the matched elements.

Example:
  capindex query "help me troubleshoot this failure"
  capindex query --expand --depth 2 "write documentation"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	flagQueryExpand   bool
	flagQueryDepth    int
	flagQueryLimit    int
	flagQueryMinScore float64
)

func init() {
	queryCmd.Flags().BoolVar(&flagQueryExpand, "expand", false, "Expand results along relationship edges")
	queryCmd.Flags().IntVar(&flagQueryDepth, "depth", 1, "Expansion depth when --expand is set")
	queryCmd.Flags().IntVarP(&flagQueryLimit, "limit", "k", 10, "Maximum number of results (0 = unlimited)")
	queryCmd.Flags().Float64Var(&flagQueryMinScore, "min-score", 0, "Drop results scoring below this value")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(_ *cobra.Command, args []string) error {
	svc, log, err := loadService()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	text := strings.Join(args, " ")
	results, err := svc.Query(text, service.QueryOptions{
		Expand:      flagQueryExpand,
		ExpandDepth: flagQueryDepth,
		MinScore:    flagQueryMinScore,
		Limit:       flagQueryLimit,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		printMiss("", fmt.Sprintf("no elements match %q", text))
		return nil
	}

	printSection(fmt.Sprintf("Query: %s", text))
	fmt.Println()
	for i, c := range results {
		line := fmt.Sprintf("%2d. %-30s %.2f", i+1, c.Ref, c.Score)
		if c.Name != "" && c.Name != c.Ref.ID {
			line += fmt.Sprintf("  (%s)", c.Name)
		}
		fmt.Println(line)
		if c.Verb != "" {
			detail := fmt.Sprintf("matched verb %q", c.Verb)
			if c.Via != "" && c.Via != c.Verb {
				detail += fmt.Sprintf(" via %q", c.Via)
			}
			if c.Depth > 0 {
				detail += fmt.Sprintf(", reached through %s at depth %d", c.Reached, c.Depth)
			}
			fmt.Printf("      %s\n", detail)
		}
	}
	return nil
}
