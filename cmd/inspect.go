package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/capindex/internal/capability"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <type:id>",
	Short: "Show one indexed element: triggers, relationships, cached stats",
	Long: `Display the index record for a single element, including its verb
triggers with confidence tiers and every relationship edge.

Example:
  capindex inspect skills:debug-detective`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	svc, log, err := loadService()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ref, err := capability.ParseRef(args[0])
	if err != nil {
		return fmt.Errorf("expected type:id, got %q: %w", args[0], err)
	}

	idx, err := svc.LoadIndex()
	if err != nil {
		return err
	}
	entry, ok := idx.Entry(ref)
	if !ok {
		printMiss("", fmt.Sprintf("%s is not in the index", ref))
		return nil
	}

	printSection(ref.String())
	fmt.Println()
	fmt.Printf("Name:        %s\n", emptyAsNA(entry.Name))
	fmt.Printf("Description: %s\n", emptyAsNA(entry.Description))

	fmt.Println("\n[ Triggers ]")
	if len(entry.Triggers) == 0 {
		printMiss("", "none")
	}
	for _, t := range entry.Triggers {
		msg := fmt.Sprintf("%-16s %.2f (%s)", t.Verb, t.Confidence, t.Tier)
		if t.DerivedFrom != "" {
			msg += fmt.Sprintf(", from %q", t.DerivedFrom)
		}
		printOK("", msg)
	}

	fmt.Println("\n[ Relationships ]")
	if len(entry.Relationships) == 0 {
		printMiss("", "none")
	}
	for _, e := range entry.Relationships {
		msg := fmt.Sprintf("%-16s → %-28s %.2f", e.Type, e.Target, e.Strength)
		var details []string
		if e.Meta.Method != "" {
			details = append(details, e.Meta.Method)
		}
		if e.Meta.Pattern != "" {
			details = append(details, fmt.Sprintf("pattern %q", e.Meta.Pattern))
		}
		if e.Meta.Jaccard != nil {
			details = append(details, fmt.Sprintf("jaccard %.2f", *e.Meta.Jaccard))
		}
		if len(e.Meta.SharedVerbs) > 0 {
			details = append(details, "verbs "+strings.Join(e.Meta.SharedVerbs, ","))
		}
		if len(details) > 0 {
			msg += "  [" + strings.Join(details, ", ") + "]"
		}
		printOK("", msg)
	}

	if entry.Cache != nil {
		fmt.Println("\n[ Cached text stats ]")
		printInfo("", fmt.Sprintf("%d token(s), hash %.12s…", len(entry.Cache.Tokens), entry.Cache.Hash))
	}
	return nil
}
