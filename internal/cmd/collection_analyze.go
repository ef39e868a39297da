package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/analysis"
	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

var collectionAnalyzeCmd = &cobra.Command{
	Use:   "analyze <name>",
	Short: "Cross-tabulate job parameters against outcomes",
	Long: `Analyze which parameter values correlate with job failure.

Each parameter value is scored by its failure rate over settled jobs.
Values with fewer settled jobs than the support threshold are reported
but excluded from the risky/stable rankings.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionAnalyze,
}

func init() {
	collectionCmd.AddCommand(collectionAnalyzeCmd)

	collectionAnalyzeCmd.Flags().String("attempt-mode", "latest", "Attempt resolution mode: primary or latest")
	collectionAnalyzeCmd.Flags().String("submission-group", "", "Restrict resolution to one submission group")
	collectionAnalyzeCmd.Flags().StringArray("param", nil, "Only analyze this parameter (repeatable)")
	collectionAnalyzeCmd.Flags().Int("min-support", analysis.DefaultMinSupport, "Settled jobs required to rank a value")
	collectionAnalyzeCmd.Flags().Int("top-k", analysis.DefaultTopK, "Ranking size")
	collectionAnalyzeCmd.Flags().Bool("no-refresh", false, "Skip the scheduler state refresh")
	collectionAnalyzeCmd.Flags().String("format", "table", "Output format: table or json")
}

func runCollectionAnalyze(cmd *cobra.Command, args []string) error {
	name := args[0]
	modeStr, _ := cmd.Flags().GetString("attempt-mode")
	group, _ := cmd.Flags().GetString("submission-group")
	params, _ := cmd.Flags().GetStringArray("param")
	minSupport, _ := cmd.Flags().GetInt("min-support")
	topK, _ := cmd.Flags().GetInt("top-k")
	noRefresh, _ := cmd.Flags().GetBool("no-refresh")
	format, _ := cmd.Flags().GetString("format")

	store := collectionStore()
	var c *collection.Collection
	var err error
	if noRefresh {
		c, err = loadCollection(store, name)
	} else {
		c, err = loadAndRefresh(cmd.Context(), store, name)
	}
	if err != nil {
		return err
	}

	report, err := analysis.Analyze(c, analysis.Options{
		Mode:       lineage.Mode(modeStr),
		Group:      group,
		Params:     params,
		MinSupport: minSupport,
		TopK:       topK,
	})
	if err != nil {
		return err
	}

	if format == "json" {
		return printJSON(report)
	}

	s := report.Summary
	fmt.Printf("Collection %s: %d job(s), %d completed, %d failed, %d running, %d pending, %d unknown\n",
		name, s.Total, s.Completed, s.Failed, s.Running, s.Pending, s.Unknown)
	if len(report.SkippedParams) > 0 {
		fmt.Printf("Requested parameters not present in any job: %s\n", strings.Join(report.SkippedParams, ", "))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PARAM\tVALUE\tN\tCOMPLETED\tFAILED\tFAILURE RATE\tNOTE")
	for _, p := range report.Parameters {
		for _, v := range p.Values {
			note := ""
			if v.LowSupport {
				note = fmt.Sprintf("low N (< %d settled)", report.MinSupport)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				v.Param, v.Value, v.Total, v.Completed, v.Failed, formatRate(v), note)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(report.TopRisky) > 0 {
		fmt.Println("\nMost failure-prone values:")
		for _, v := range report.TopRisky {
			fmt.Printf("  %s=%s (%.0f%% of %d settled)\n", v.Param, v.Value, v.FailureRate*100, v.Completed+v.Failed)
		}
	}
	if len(report.TopStable) > 0 {
		fmt.Println("\nMost stable values:")
		for _, v := range report.TopStable {
			fmt.Printf("  %s=%s (%.0f%% completed of %d settled)\n", v.Param, v.Value, v.CompletionRate*100, v.Completed+v.Failed)
		}
	}
	return nil
}

func formatRate(v analysis.ValueStats) string {
	if v.Completed+v.Failed == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", v.FailureRate*100)
}
