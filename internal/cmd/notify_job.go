package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/notify"
)

var notifyJobCmd = &cobra.Command{
	Use:   "job",
	Short: "Notify about a single finished job",
	Long: `Deliver a notification for one finished job.

Intended to run from a scheduler epilog with the job's id and exit code.
When the job belongs to a tracked collection, the payload carries the
collection context and the job's recorded metadata.`,
	RunE: runNotifyJob,
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification to configured routes",
	RunE:  runNotifyTest,
}

func init() {
	notifyCmd.AddCommand(notifyJobCmd)
	notifyCmd.AddCommand(notifyTestCmd)

	notifyJobCmd.Flags().String("job-id", "", "Scheduler id of the finished job")
	notifyJobCmd.Flags().Int("exit-code", 0, "Exit code of the job")
	notifyJobCmd.Flags().String("collection", "", "Collection name (searched via --job-id when omitted)")
	notifyJobCmd.Flags().String("on", "failed", "When to notify: failed or any")
	addDeliveryFlags(notifyJobCmd)
	_ = notifyJobCmd.MarkFlagRequired("job-id")
	_ = notifyJobCmd.MarkFlagRequired("exit-code")

	addDeliveryFlags(notifyTestCmd)
}

func runNotifyJob(cmd *cobra.Command, _ []string) error {
	jobID, _ := cmd.Flags().GetString("job-id")
	exitCodeVal, _ := cmd.Flags().GetInt("exit-code")
	colName, _ := cmd.Flags().GetString("collection")
	on, _ := cmd.Flags().GetString("on")
	routeNames, _ := cmd.Flags().GetStringArray("route")
	strict, _ := cmd.Flags().GetBool("strict")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if on != "failed" && on != "any" {
		return fmt.Errorf("invalid --on value: %s (expected failed or any)", on)
	}

	event := notify.EventJobFailed
	if exitCodeVal == 0 {
		event = notify.EventJobCompleted
	}
	if event == notify.EventJobCompleted && on == "failed" {
		fmt.Printf("Job %s completed; nothing to notify with --on failed\n", jobID)
		return nil
	}

	jobCtx := notify.JobContext{
		JobID:    jobID,
		ExitCode: &exitCodeVal,
	}
	var colCtx *notify.CollectionContext

	// Collection context is best effort. An untracked job still produces
	// a payload with the id and exit code.
	store := collectionStore()
	if colName == "" {
		if found, err := findCollectionForJob(store, jobID); err == nil {
			colName = found
		}
	}
	if colName != "" {
		c, err := store.Get(colName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load collection %s: %v\n", colName, err)
		} else {
			colCtx = &notify.CollectionContext{Name: c.Name, Description: c.Description}
			fillJobContext(&jobCtx, c, jobID)
		}
	}

	payload := notify.NewJobPayload(event, jobCtx, colCtx)
	_, err := dispatchToRoutes(cmd.Context(), payload, event, routeNames, strict, dryRun)
	return err
}

func fillJobContext(jc *notify.JobContext, c *collection.Collection, jobID string) {
	job, attempt := c.JobByAnyID(jobID)
	if job == nil {
		return
	}
	jc.JobName = job.Name
	if attempt != nil {
		jc.State = string(collection.NormalizeState(attempt.State))
		if attempt.SubmittedAt != nil {
			jc.SubmittedAt = formatOptionalTime(attempt.SubmittedAt)
		}
		return
	}
	jc.State = string(collection.NormalizeState(job.Primary.State))
	jc.SubmittedAt = formatOptionalTime(job.Primary.SubmittedAt)
	jc.StartedAt = formatOptionalTime(job.Primary.StartedAt)
	jc.CompletedAt = formatOptionalTime(job.Primary.CompletedAt)
	jc.OutputPath = job.Primary.OutputPath
	if job.Primary.OutputPath != "" && jc.State == string(collection.StateFailed) {
		jc.OutputTail = notify.ReadOutputTail(job.Primary.OutputPath, cfg.Notifications.Defaults.OutputTailLines)
	}
}

func runNotifyTest(cmd *cobra.Command, _ []string) error {
	routeNames, _ := cmd.Flags().GetStringArray("route")
	strict, _ := cmd.Flags().GetBool("strict")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	payload := notify.NewTestPayload()
	_, err := dispatchToRoutes(cmd.Context(), payload, notify.EventTest, routeNames, strict, dryRun)
	return err
}
