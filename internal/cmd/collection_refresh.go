package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/scheduler"
)

var collectionRefreshCmd = &cobra.Command{
	Use:   "refresh <name>",
	Short: "Re-query the scheduler and persist changed job states",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionRefresh,
}

func init() {
	collectionCmd.AddCommand(collectionRefreshCmd)
}

func runCollectionRefresh(cmd *cobra.Command, args []string) error {
	name := args[0]

	client := schedulerClient()
	if client == nil {
		return fmt.Errorf("scheduler.query_command is not configured")
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

	res, err := scheduler.Refresh(cmd.Context(), client, c, scheduler.RefreshOptions{
		BatchSize:        cfg.Scheduler.BatchSize,
		Concurrency:      cfg.Scheduler.QueryConcurrency,
		QueriesPerSecond: cfg.Scheduler.QueryRate,
	})
	if err != nil {
		return fmt.Errorf("scheduler refresh: %w", err)
	}

	if res.Changed > 0 {
		if err := store.Save(c); err != nil {
			return err
		}
	}

	fmt.Printf("Queried %d id(s), %d state(s) changed\n", res.Queried, res.Changed)
	if len(res.Unmatched) > 0 {
		fmt.Printf("Not reported by scheduler: %s\n", strings.Join(res.Unmatched, ", "))
	}
	return nil
}
