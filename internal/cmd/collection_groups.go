package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/lineage"
)

var collectionGroupsCmd = &cobra.Command{
	Use:   "groups <name>",
	Short: "List submission groups of a collection",
	Long: `List the submission groups of a collection, newest first.

Attempts recorded without a group label fall into the "ungrouped" group,
which always sorts last.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionGroups,
}

func init() {
	collectionCmd.AddCommand(collectionGroupsCmd)
	collectionGroupsCmd.Flags().String("format", "table", "Output format: table, json, or yaml")
}

func runCollectionGroups(cmd *cobra.Command, args []string) error {
	name := args[0]
	format, _ := cmd.Flags().GetString("format")

	store := collectionStore()
	c, err := loadCollection(store, name)
	if err != nil {
		return err
	}

	groups := lineage.Groups(c)

	switch format {
	case "json":
		return printJSON(groups)
	case "yaml":
		return printYAML(groups)
	case "table":
	default:
		return fmt.Errorf("invalid format: %s", format)
	}

	if len(groups) == 0 {
		fmt.Println("No submission groups found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "GROUP\tATTEMPTS\tJOBS\tFIRST SUBMITTED\tLAST SUBMITTED")
	for _, g := range groups {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			g.Label, g.AttemptCount, g.JobCount,
			formatOptionalTime(g.FirstSubmittedAt), formatOptionalTime(g.LastSubmittedAt))
	}
	return nil
}
