package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/finality"
	"github.com/fleetworks/goherd/pkg/notify"
)

var notifyCollectionFinalCmd = &cobra.Command{
	Use:   "collection-final",
	Short: "Notify when a whole collection has settled",
	Long: `Evaluate whether every job in a collection has reached a settled
state and deliver one deduplicated notification when it has.

Intended to run from a scheduler epilog: pass the finishing job's id and
exit code, and the collection is found automatically. Repeated invocations
against an unchanged snapshot send nothing; --force bypasses the check.`,
	RunE: runNotifyCollectionFinal,
}

func init() {
	notifyCmd.AddCommand(notifyCollectionFinalCmd)

	notifyCollectionFinalCmd.Flags().String("job-id", "", "Scheduler id of the job that just finished")
	notifyCollectionFinalCmd.Flags().String("collection", "", "Collection name (found via --job-id when omitted)")
	notifyCollectionFinalCmd.Flags().Int("trigger-exit-code", 0, "Exit code of the trigger job")
	notifyCollectionFinalCmd.Flags().Bool("no-refresh", false, "Skip the scheduler state refresh")
	notifyCollectionFinalCmd.Flags().Bool("force", false, "Send even if an identical notification was already sent")
	addDeliveryFlags(notifyCollectionFinalCmd)
}

func runNotifyCollectionFinal(cmd *cobra.Command, _ []string) error {
	jobID, _ := cmd.Flags().GetString("job-id")
	colName, _ := cmd.Flags().GetString("collection")
	noRefresh, _ := cmd.Flags().GetBool("no-refresh")
	force, _ := cmd.Flags().GetBool("force")
	routeNames, _ := cmd.Flags().GetStringArray("route")
	strict, _ := cmd.Flags().GetBool("strict")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var exitCode *int
	if cmd.Flags().Changed("trigger-exit-code") {
		v, _ := cmd.Flags().GetInt("trigger-exit-code")
		exitCode = &v
	}

	if colName == "" && jobID == "" {
		return fmt.Errorf("either --collection or --job-id is required")
	}

	store := collectionStore()
	if colName == "" {
		found, err := findCollectionForJob(store, jobID)
		if err != nil {
			return err
		}
		colName = found
	}

	lock, err := store.Acquire(colName, cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	c, err := loadCollection(store, colName)
	if err != nil {
		return err
	}
	if !noRefresh {
		refreshCollection(cmd.Context(), store, c)
	}

	res := finality.Evaluate(c, finality.Input{
		TriggerJobID:    jobID,
		TriggerExitCode: exitCode,
	})
	for _, warning := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	if !res.Terminal() {
		s := res.Counts
		fmt.Printf("Collection %s is not terminal yet (%d running, %d pending, %d unknown)\n",
			colName, s.Running, s.Pending, s.Unknown)
		return nil
	}

	decision, err := finality.Decide(c, res, force)
	if err != nil {
		return err
	}
	if !decision.ShouldNotify {
		fmt.Printf("Notification for this snapshot of %s was already sent; use --force to resend\n", colName)
		return nil
	}

	report, err := notify.BuildReport(c, res, jobID, notify.ReportOptions{
		MinSupport:      cfg.Notifications.CollectionFinal.MinSupport,
		TopK:            cfg.Notifications.CollectionFinal.TopK,
		FailedTailLines: cfg.Notifications.CollectionFinal.IncludeFailedOutputTailLines,
	})
	if err != nil {
		return err
	}

	event := notify.EventCollectionCompleted
	if res.Kind == finality.TerminalFailed {
		event = notify.EventCollectionFailed
	}

	payload := notify.NewCollectionFinalPayload(event, notify.CollectionContext{
		Name:        c.Name,
		Description: c.Description,
	}, jobID, report)

	if warning := notify.ApplySummary(cmd.Context(), summarizer(), payload); warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	attempted, deliveryErr := dispatchToRoutes(cmd.Context(), payload, event, routeNames, strict, dryRun)

	// The fingerprint advances once a delivery pass has run, whatever its
	// outcome. A dry run, or a run with no route matching the event, must
	// leave the dedup state untouched.
	if attempted && !dryRun {
		c.NotificationFingerprint = decision.Fingerprint
		c.Touch()
		if err := store.Save(c); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record notification fingerprint: %v\n", err)
		}
	}

	return deliveryErr
}

func summarizer() notify.Summarizer {
	final := cfg.Notifications.CollectionFinal
	if len(final.SummaryCommand) == 0 {
		return nil
	}
	return &notify.CommandSummarizer{
		Argv:    final.SummaryCommand,
		Timeout: final.SummaryTimeout,
	}
}
