// Command sgp4check prints TEME state vectors for every element set in a
// file over a grid of minutes since epoch, in the layout used by published
// SGP4 verification output.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sgp4check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tleFile := fs.String("tle-file", "", "element sets to propagate (required)")
	start := fs.Float64("start", -1440, "first minute since epoch")
	stop := fs.Float64("stop", 1440, "last minute since epoch")
	step := fs.Float64("step", 360, "minutes between rows")
	gravity := fs.String("gravity", "wgs72", "gravity model: wgs72, wgs72old or wgs84")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *tleFile == "" || fs.NArg() > 0 {
		fs.Usage()
		return 2
	}
	if *step <= 0 || *stop < *start {
		fmt.Fprintln(stderr, "step must be positive and stop must not precede start")
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	grav, err := sgp4.GravityByName(*gravity)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	//nolint:gosec // G304: path comes from the command line.
	data, err := os.ReadFile(*tleFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	entries, err := tle.ParseSets(bytes.NewReader(data), logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintf(stderr, "no element sets in %s\n", *tleFile)
		return 1
	}

	failed := 0
	for _, e := range entries {
		if err := check(stdout, e, grav, *start, *stop, *step); err != nil {
			logger.Warn("propagation stopped", "norad_id", e.Elements.CatalogNumber, "name", e.Name, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// check writes one block of rows for e. Propagation stops at the first
// divergence, which is returned after the rows already written.
func check(w io.Writer, e tle.Entry, grav sgp4.GravityModel, start, stop, step float64) error {
	sat, err := sgp4.New(e.Elements, grav)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d xx %s\n", e.Elements.CatalogNumber, e.Name)

	n := int((stop-start)/step + 1e-9)
	for i := 0; i <= n; i++ {
		tsince := start + float64(i)*step
		r, v, err := sat.PropagateMinutes(tsince)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%17.8f %16.8f %16.8f %16.8f %14.9f %14.9f %14.9f\n",
			tsince, r.X, r.Y, r.Z, v.X, v.Y, v.Z)
	}
	return nil
}
