package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fleetworks/goherd/internal/observability"
	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/scheduler"
)

func collectionStore() *collection.Store {
	return collection.NewStore(cfg.CollectionsDir)
}

func schedulerClient() scheduler.Client {
	if len(cfg.Scheduler.QueryCommand) == 0 {
		return nil
	}
	return &scheduler.CommandClient{
		Argv:    cfg.Scheduler.QueryCommand,
		Timeout: cfg.Scheduler.QueryTimeout,
	}
}

// refreshCollection re-queries the scheduler and persists changed states.
// A missing query command or a query failure degrades to using persisted
// state with a warning rather than failing the command.
func refreshCollection(ctx context.Context, store *collection.Store, c *collection.Collection) {
	client := schedulerClient()
	if client == nil {
		observability.CLILogger.Debug("No scheduler query command configured; using persisted states")
		return
	}

	res, err := scheduler.Refresh(ctx, client, c, scheduler.RefreshOptions{
		BatchSize:        cfg.Scheduler.BatchSize,
		Concurrency:      cfg.Scheduler.QueryConcurrency,
		QueriesPerSecond: cfg.Scheduler.QueryRate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: scheduler refresh failed, using persisted states: %v\n", err)
		return
	}
	if res.Changed == 0 {
		return
	}
	if err := store.Save(c); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist refreshed states: %v\n", err)
		return
	}
	observability.CLILogger.Debug("Refreshed collection",
		zap.String("collection", c.Name),
		zap.Int("queried", res.Queried),
		zap.Int("changed", res.Changed))
}

// loadAndRefresh loads a collection and refreshes scheduler states under
// the collection lock, so the refresh cannot clobber a concurrent writer's
// record. A busy lock degrades to the persisted record with a warning
// instead of failing a read command.
func loadAndRefresh(ctx context.Context, store *collection.Store, name string) (*collection.Collection, error) {
	lock, err := store.Acquire(name, cfg.Lock.Timeout)
	if err != nil {
		if errors.Is(err, collection.ErrResourceBusy) {
			fmt.Fprintf(os.Stderr, "Warning: collection %s is locked, using persisted states: %v\n", name, err)
			return loadCollection(store, name)
		}
		return nil, err
	}
	defer lock.Unlock()

	c, err := loadCollection(store, name)
	if err != nil {
		return nil, err
	}
	refreshCollection(ctx, store, c)
	return c, nil
}

// parseParams turns repeated k=v flags into a parameter map.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected key=value)", pair)
		}
		params[key] = value
	}
	return params, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(v)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
