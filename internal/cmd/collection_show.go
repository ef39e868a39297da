package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

var collectionShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show jobs and their effective states",
	Long: `Show the jobs of a collection with their effective states.

The effective state of a job is resolved through its resubmission lineage:
in latest mode the most recently submitted attempt wins, in primary mode
only the original submission is considered.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionShow,
}

func init() {
	collectionCmd.AddCommand(collectionShowCmd)

	collectionShowCmd.Flags().String("attempt-mode", "latest", "Attempt resolution mode: primary or latest")
	collectionShowCmd.Flags().String("submission-group", "", "Restrict resolution to one submission group")
	collectionShowCmd.Flags().Bool("show-primary", false, "Also show the primary submission state")
	collectionShowCmd.Flags().Bool("show-history", false, "List every attempt per job")
	collectionShowCmd.Flags().String("state", "", "Only show jobs in this effective state")
	collectionShowCmd.Flags().String("match", "", "Only show jobs whose name matches this glob")
	collectionShowCmd.Flags().Bool("no-refresh", false, "Skip the scheduler state refresh")
	collectionShowCmd.Flags().String("format", "table", "Output format: table or json")
}

type showRow struct {
	JobName          string            `json:"job_name"`
	ID               string            `json:"id"`
	State            collection.State  `json:"state"`
	RawState         string            `json:"raw_state,omitempty"`
	Source           lineage.Source    `json:"source"`
	SubmissionGroup  string            `json:"submission_group,omitempty"`
	SubmittedAt      string            `json:"submitted_at,omitempty"`
	NoAttemptInGroup bool              `json:"no_attempt_in_group,omitempty"`
	PrimaryState     collection.State  `json:"primary_state,omitempty"`
	History          []showHistoryItem `json:"history,omitempty"`
}

type showHistoryItem struct {
	ID              string           `json:"id"`
	State           collection.State `json:"state"`
	SubmissionGroup string           `json:"submission_group"`
	SubmittedAt     string           `json:"submitted_at,omitempty"`
}

func runCollectionShow(cmd *cobra.Command, args []string) error {
	name := args[0]
	modeStr, _ := cmd.Flags().GetString("attempt-mode")
	group, _ := cmd.Flags().GetString("submission-group")
	showPrimary, _ := cmd.Flags().GetBool("show-primary")
	showHistory, _ := cmd.Flags().GetBool("show-history")
	stateFilter, _ := cmd.Flags().GetString("state")
	match, _ := cmd.Flags().GetString("match")
	noRefresh, _ := cmd.Flags().GetBool("no-refresh")
	format, _ := cmd.Flags().GetString("format")

	mode := lineage.Mode(modeStr)
	if !lineage.ValidMode(mode) {
		return fmt.Errorf("invalid attempt mode: %s", modeStr)
	}
	if match != "" {
		if !doublestar.ValidatePattern(match) {
			return fmt.Errorf("invalid match pattern: %s", match)
		}
	}

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

	rows := make([]showRow, 0, len(c.Jobs))
	for _, job := range c.Jobs {
		if match != "" {
			ok, _ := doublestar.Match(match, job.Name)
			if !ok {
				continue
			}
		}

		eff := lineage.Resolve(job, mode, group)
		if stateFilter != "" && string(eff.State) != stateFilter {
			continue
		}

		row := showRow{
			JobName:          eff.JobName,
			ID:               eff.ID,
			State:            eff.State,
			RawState:         eff.RawState,
			Source:           eff.Source,
			SubmissionGroup:  eff.SubmissionGroup,
			SubmittedAt:      formatOptionalTime(eff.SubmittedAt),
			NoAttemptInGroup: eff.NoAttemptInGroup,
		}
		if showPrimary {
			row.PrimaryState = collection.NormalizeState(job.Primary.State)
		}
		if showHistory {
			for _, a := range job.Attempts {
				label := a.SubmissionGroup
				if label == "" {
					label = lineage.LegacyGroup
				}
				row.History = append(row.History, showHistoryItem{
					ID:              a.ID,
					State:           collection.NormalizeState(a.State),
					SubmissionGroup: label,
					SubmittedAt:     formatOptionalTime(a.SubmittedAt),
				})
			}
		}
		rows = append(rows, row)
	}

	if format == "json" {
		return printJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No jobs matched")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	header := "JOB\tID\tSTATE\tSOURCE\tGROUP\tSUBMITTED"
	if showPrimary {
		header += "\tPRIMARY"
	}
	_, _ = fmt.Fprintln(w, header)
	for _, r := range rows {
		id := r.ID
		state := string(r.State)
		if r.NoAttemptInGroup {
			id = "-"
			state = "no attempt in group"
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
			r.JobName, orDash(id), state, r.Source, orDash(r.SubmissionGroup), r.SubmittedAt)
		if showPrimary {
			line += "\t" + string(r.PrimaryState)
		}
		_, _ = fmt.Fprintln(w, line)

		if showHistory {
			for _, h := range r.History {
				_, _ = fmt.Fprintf(w, "  attempt\t%s\t%s\t\t%s\t%s\n",
					h.ID, h.State, h.SubmissionGroup, h.SubmittedAt)
			}
		}
	}
	return nil
}
