package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetworks/goherd/internal/observability"
	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Evaluate and deliver notifications",
	Long: `Evaluate notification conditions and deliver to configured routes.

Routes are defined in the config file under notifications.routes. Webhook
routes receive the full JSON payload; slack and discord routes receive a
rendered human summary.`,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func addDeliveryFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("route", nil, "Only deliver to this route (repeatable)")
	cmd.Flags().Bool("strict", false, "Exit non-zero unless every route succeeds")
	cmd.Flags().Bool("dry-run", false, "Resolve and render without delivering")
}

// dispatchToRoutes resolves routes for an event and delivers the payload.
// attempted reports whether a delivery pass ran at all: it is false when no
// route matched the event, so callers can tell a delivered (or failed)
// notification apart from a no-op. The returned error is nil only when the
// aggregate exit code is zero.
func dispatchToRoutes(ctx context.Context, p *notify.Payload, event string, names []string, strict, dryRun bool) (attempted bool, err error) {
	res := notify.ResolveRoutes(cfg.Notifications.Routes, cfg.Notifications.Defaults, event, names)
	for _, msg := range res.Errors {
		fmt.Fprintf(os.Stderr, "Route error: %s\n", msg)
	}
	for _, name := range res.Skipped {
		observability.CLILogger.Debug("Route skipped", zap.String("route", name))
	}

	if len(res.Routes) == 0 && len(res.Errors) == 0 {
		fmt.Println("No routes configured for event", event)
		return false, nil
	}

	deliverer := notify.NewDeliverer(observability.CLILogger)
	results := deliverer.Dispatch(ctx, p, res.Routes, dryRun)
	for _, line := range notify.SummarizeResults(results) {
		fmt.Println(line)
	}

	if code := notify.ExitCode(results, len(res.Errors), strict); code != 0 {
		return true, &codedError{err: fmt.Errorf("delivery failed for one or more routes"), code: code}
	}
	return true, nil
}

// findCollectionForJob locates the single collection containing the given
// scheduler id as a primary submission or attempt.
func findCollectionForJob(store *collection.Store, jobID string) (string, error) {
	names, err := store.List()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, name := range names {
		c, err := store.Get(name)
		if err != nil {
			return "", err
		}
		if job, _ := c.JobByAnyID(jobID); job != nil {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", notFoundErr(fmt.Errorf("no collection contains job id %s", jobID))
	case 1:
		return matches[0], nil
	default:
		return "", notFoundErr(fmt.Errorf("job id %s appears in %d collections; use --collection", jobID, len(matches)))
	}
}
