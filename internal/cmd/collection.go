package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"col"},
	Short:   "Manage job collections",
	Long: `Manage collections of batch jobs.

A collection records each logical job's primary submission and any
resubmission attempts, so job outcomes survive resubmission under new
scheduler ids.`,
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionCreate,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	RunE:  runCollectionList,
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionDelete,
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionDeleteCmd)

	collectionCreateCmd.Flags().String("description", "", "Collection description")
	collectionListCmd.Flags().String("attempt-mode", "latest", "Attempt resolution mode: primary or latest")
	collectionListCmd.Flags().String("format", "table", "Output format: table or json")
	collectionDeleteCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	description, _ := cmd.Flags().GetString("description")

	store := collectionStore()
	if store.Exists(name) {
		return fmt.Errorf("collection already exists: %s", name)
	}

	c := collection.New(name, description)
	if err := store.Save(c); err != nil {
		return err
	}

	fmt.Printf("Created collection %s\n", name)
	return nil
}

type collectionListRow struct {
	Name      string             `json:"name"`
	Jobs      int                `json:"jobs"`
	Summary   collection.Summary `json:"summary"`
	UpdatedAt string             `json:"updated_at"`
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	modeStr, _ := cmd.Flags().GetString("attempt-mode")
	format, _ := cmd.Flags().GetString("format")

	mode := lineage.Mode(modeStr)
	if !lineage.ValidMode(mode) {
		return fmt.Errorf("invalid attempt mode: %s", modeStr)
	}

	store := collectionStore()
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No collections found")
		return nil
	}

	rows := make([]collectionListRow, 0, len(names))
	for _, name := range names {
		c, err := store.Get(name)
		if err != nil {
			return err
		}
		rows = append(rows, collectionListRow{
			Name:      c.Name,
			Jobs:      len(c.Jobs),
			Summary:   lineage.Summarize(lineage.ResolveAll(c, mode, "")),
			UpdatedAt: formatOptionalTime(&c.UpdatedAt),
		})
	}

	if format == "json" {
		return printJSON(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	_, _ = fmt.Fprintln(w, "NAME\tJOBS\tPENDING\tRUNNING\tCOMPLETED\tFAILED\tUNKNOWN\tUPDATED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Name, r.Jobs,
			r.Summary.Pending, r.Summary.Running, r.Summary.Completed,
			r.Summary.Failed, r.Summary.Unknown,
			r.UpdatedAt)
	}
	return nil
}

func runCollectionDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	yes, _ := cmd.Flags().GetBool("yes")

	store := collectionStore()
	if !store.Exists(name) {
		return notFoundErr(fmt.Errorf("collection not found: %s", name))
	}

	if !yes {
		fmt.Printf("Delete collection %s? [y/N] ", name)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return err
	}
	fmt.Printf("Deleted collection %s\n", name)
	return nil
}

// loadCollection fetches a collection, mapping a missing record to the
// not-found exit code.
func loadCollection(store *collection.Store, name string) (*collection.Collection, error) {
	c, err := store.Get(name)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			return nil, notFoundErr(fmt.Errorf("collection not found: %s", name))
		}
		return nil, err
	}
	return c, nil
}
