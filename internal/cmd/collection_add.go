package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/collection"
)

var collectionAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a job to a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionAdd,
}

var collectionAttemptCmd = &cobra.Command{
	Use:   "attempt <name>",
	Short: "Record a resubmission attempt for a job",
	Long: `Record a resubmission attempt for an existing job.

Attempts are append-only. The primary submission record never changes;
attempt resolution decides which record represents the job's outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionAttempt,
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a job from a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionRemove,
}

func init() {
	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionAttemptCmd)
	collectionCmd.AddCommand(collectionRemoveCmd)

	collectionAddCmd.Flags().String("job", "", "Logical job name")
	collectionAddCmd.Flags().String("id", "", "Scheduler job id")
	collectionAddCmd.Flags().StringArray("param", nil, "Job parameter as key=value (repeatable)")
	collectionAddCmd.Flags().String("output", "", "Path to the job's output file")
	_ = collectionAddCmd.MarkFlagRequired("job")
	_ = collectionAddCmd.MarkFlagRequired("id")

	collectionAttemptCmd.Flags().String("job", "", "Logical job name")
	collectionAttemptCmd.Flags().String("id", "", "Scheduler job id of the resubmission")
	collectionAttemptCmd.Flags().String("group", "", "Submission group label (generated when omitted)")
	collectionAttemptCmd.Flags().StringArray("param", nil, "Extra parameter as key=value (repeatable)")
	_ = collectionAttemptCmd.MarkFlagRequired("job")
	_ = collectionAttemptCmd.MarkFlagRequired("id")

	collectionRemoveCmd.Flags().String("job", "", "Logical job name")
	_ = collectionRemoveCmd.MarkFlagRequired("job")
}

func runCollectionAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	jobName, _ := cmd.Flags().GetString("job")
	jobID, _ := cmd.Flags().GetString("id")
	paramPairs, _ := cmd.Flags().GetStringArray("param")
	outputPath, _ := cmd.Flags().GetString("output")

	params, err := parseParams(paramPairs)
	if err != nil {
		return err
	}

	store := collectionStore()
	lock, err := store.Acquire(name, cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	c, err := loadCollection(store, name)
	if err != nil {
		return err
	}

	job := &collection.LogicalJob{
		Name:       jobName,
		Parameters: params,
		Primary: collection.Submission{
			ID:         jobID,
			OutputPath: outputPath,
		},
	}
	if err := c.AddJob(job); err != nil {
		return err
	}
	if err := store.Save(c); err != nil {
		return err
	}

	fmt.Printf("Added job %s (%s) to %s\n", jobName, jobID, name)
	return nil
}

func runCollectionAttempt(cmd *cobra.Command, args []string) error {
	name := args[0]
	jobName, _ := cmd.Flags().GetString("job")
	attemptID, _ := cmd.Flags().GetString("id")
	group, _ := cmd.Flags().GetString("group")
	paramPairs, _ := cmd.Flags().GetStringArray("param")

	extraParams, err := parseParams(paramPairs)
	if err != nil {
		return err
	}

	store := collectionStore()
	lock, err := store.Acquire(name, cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	c, err := loadCollection(store, name)
	if err != nil {
		return err
	}

	if group == "" {
		group = collection.NewSubmissionGroup(time.Now())
	}
	err = c.AddAttempt(jobName, collection.Attempt{
		ID:              attemptID,
		SubmissionGroup: group,
		ExtraParams:     extraParams,
	})
	if err != nil {
		return err
	}
	if err := store.Save(c); err != nil {
		return err
	}

	fmt.Printf("Recorded attempt %s for job %s in %s (group %s)\n", attemptID, jobName, name, group)
	return nil
}

func runCollectionRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	jobName, _ := cmd.Flags().GetString("job")

	store := collectionStore()
	lock, err := store.Acquire(name, cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	c, err := loadCollection(store, name)
	if err != nil {
		return err
	}

	if !c.RemoveJob(jobName) {
		return notFoundErr(fmt.Errorf("job not found in %s: %s", name, jobName))
	}
	if err := store.Save(c); err != nil {
		return err
	}

	fmt.Printf("Removed job %s from %s\n", jobName, name)
	return nil
}
