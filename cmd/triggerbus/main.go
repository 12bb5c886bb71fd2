// Command triggerbus inspects event catalogs and dispatch journals.
//
// Usage:
//
//	triggerbus catalog --config FILE
//	triggerbus journal --db FILE [--event NAME] [--outcome OUTCOME] [--limit N] [--json]
//	triggerbus journal --db FILE --purge-before DURATION
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/randalmurphal/triggerbus/pkg/triggerbus"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/config"
	"github.com/randalmurphal/triggerbus/pkg/triggerbus/journal"
	flag "github.com/spf13/pflag"
)

const usage = `usage: triggerbus <command> [flags]

commands:
  catalog   list the events declared in a config file
  journal   list or purge entries of a SQLite dispatch journal
`

// errUsage marks errors caused by bad invocation.
var errUsage = errors.New("usage error")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "triggerbus:", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch strings.ToLower(args[0]) {
	case "catalog":
		return runCatalog(args[1:], stdout)
	case "journal":
		return runJournal(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func runCatalog(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("catalog", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	path := flags.String("config", "", "YAML or JSON config file declaring events")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *path == "" {
		return fmt.Errorf("%w: --config is required", errUsage)
	}

	cfg, err := config.FromFile(*path)
	if err != nil {
		return err
	}

	// Journals are irrelevant to a catalog listing; don't open one.
	raw := cfg.Raw()
	delete(raw, "journal")

	bus, err := triggerbus.NewFromConfig(config.New(raw))
	if err != nil {
		return err
	}
	defer bus.Close()

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tOWNER\tTAGS\tDESCRIPTION")
	for _, info := range bus.Catalog() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			info.Name, dash(info.Owner), dash(strings.Join(info.Tags, ",")), dash(info.Description))
	}
	return w.Flush()
}

func runJournal(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("journal", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	db := flags.String("db", "", "SQLite journal database")
	event := flags.String("event", "", "only entries for this event")
	outcome := flags.String("outcome", "", "only entries with this outcome (continued, stopped, failed)")
	limit := flags.Int("limit", 50, "show at most N of the most recent entries (0 for all)")
	asJSON := flags.Bool("json", false, "print entries as JSON lines")
	purge := flags.Duration("purge-before", 0, "delete entries older than this age instead of listing")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *db == "" {
		return fmt.Errorf("%w: --db is required", errUsage)
	}
	if *purge < 0 {
		return fmt.Errorf("%w: --purge-before must be positive", errUsage)
	}

	// Opening a missing file would create an empty journal.
	if _, err := os.Stat(*db); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	store, err := journal.NewSQLiteStore(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	if *purge > 0 {
		n, err := store.Purge(ctx, time.Now().Add(-*purge))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "purged %d entries\n", n)
		return nil
	}

	entries, err := store.List(ctx, journal.Filter{
		Event:   *event,
		Outcome: journal.Outcome(*outcome),
		Limit:   *limit,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tOUTCOME\tSUBSCRIBERS\tREWRITES\tDEPTH\tDURATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Event, e.Outcome, e.Subscribers,
			e.Rewrites, e.Depth, e.Duration, dash(e.Error))
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
