package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ramones1960/analyze-tle/internal/satcat"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

func runSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("search", a.stderr)
	date := fs.String("date", "", "launch date, YYYY-MM-DD (required)")
	output := fs.String("output", "", "also write the matches to this JSON file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}
	if *date == "" {
		return usagef("--date is required")
	}
	if err := satcat.ValidateDate(*date); err != nil {
		return usageError{err}
	}

	client := satcat.NewClient(a.cfg.TLE.SatcatURL, a.logger, tle.WithRetry(a.cfg.TLE.Attempts, a.cfg.TLE.RetryDelay))
	launches, err := client.LaunchesOn(ctx, *date)
	if err != nil {
		return err
	}

	if err := printLaunches(a, *date, launches); err != nil {
		return err
	}
	if *output != "" {
		data, err := json.MarshalIndent(launches, "", "  ")
		if err != nil {
			return fmt.Errorf("encode launches: %w", err)
		}
		if err := os.WriteFile(*output, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *output, err)
		}
		a.logger.Info("search results written", "path", *output, "count", len(launches))
	}
	return nil
}

func printLaunches(a *app, date string, launches []satcat.Launch) error {
	if len(launches) == 0 {
		_, err := fmt.Fprintf(a.stdout, "no objects launched on %s\n", date)
		return err
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTDES\tNORAD\tNAME\tTYPE\tOWNER\tDECAY")
	for _, l := range launches {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", l.ObjectID, l.NoradCatID, l.ObjectName, l.ObjectType, l.Owner, l.DecayDate)
	}
	return tw.Flush()
}
