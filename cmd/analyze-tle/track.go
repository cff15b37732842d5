package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ramones1960/analyze-tle/internal/passes"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/render"
	"github.com/ramones1960/analyze-tle/internal/station"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

type trackOptions struct {
	intdes       string
	stepSeconds  float64
	step         time.Duration
	horizon      time.Duration
	count        int
	start        time.Time
	stationsPath string
	tleFile      string
	formats      []render.Format
	outDir       string
	policy       propagation.FailurePolicy
	passHours    float64
	minElevation float64
}

func parseTrackFlags(a *app, args []string) (trackOptions, error) {
	var opts trackOptions

	// The designator may come before or after the flags.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.intdes, args = args[0], args[1:]
	}

	fs := newFlagSet("track", a.stderr)
	fs.Float64Var(&opts.stepSeconds, "s", 60, "step between samples in seconds; negative samples backwards")
	fs.IntVar(&opts.count, "c", 4320, "number of samples")
	start := fs.String("start", "", "time of the first sample, RFC3339 (default now)")
	fs.StringVar(&opts.stationsPath, "stations", "", "ground station CSV (name,lat,lon)")
	fs.StringVar(&opts.tleFile, "tle-file", "", "read element sets from this file instead of CelesTrak")
	formats := fs.String("format", "json,csv,html,png", "comma-separated output formats")
	fs.StringVar(&opts.outDir, "out", a.cfg.Output.Dir, "output directory")
	policy := fs.String("policy", a.cfg.Propagation.FailurePolicy, "per-step failure handling: abort or skip")
	fs.Float64Var(&opts.passHours, "passes", 0, "predict station passes over this many hours (0 disables)")
	fs.Float64Var(&opts.minElevation, "min-elevation", 10, "minimum pass elevation in degrees")
	if err := parseFlags(fs, args); err != nil {
		return opts, err
	}

	rest := fs.Args()
	if opts.intdes == "" && len(rest) > 0 {
		opts.intdes, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		return opts, usagef("unexpected arguments %v", rest)
	}
	if opts.intdes == "" {
		return opts, usagef("international designator is required, e.g. 1998-067A")
	}
	if opts.count < 0 {
		return opts, usagef("-c must not be negative, got %d", opts.count)
	}
	if opts.stepSeconds == 0 && opts.count > 0 {
		return opts, usagef("-s must not be zero")
	}
	var err error
	if opts.step, err = propagation.StepFromSeconds(opts.stepSeconds); err != nil {
		return opts, usagef("-s: %v", err)
	}
	if opts.passHours < 0 {
		return opts, usagef("--passes must not be negative, got %g", opts.passHours)
	}
	if opts.horizon, err = propagation.StepFromSeconds(opts.passHours * 3600); err != nil {
		return opts, usagef("--passes: %v", err)
	}

	opts.start = time.Now().UTC()
	if *start != "" {
		t, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			return opts, usagef("--start: %v", err)
		}
		opts.start = t.UTC()
	}

	if opts.formats, err = render.ParseFormats(*formats); err != nil {
		return opts, usageError{err}
	}
	if opts.policy, err = propagation.ParseFailurePolicy(*policy); err != nil {
		return opts, usageError{err}
	}
	return opts, nil
}

func runTrack(ctx context.Context, a *app, args []string) error {
	opts, err := parseTrackFlags(a, args)
	if err != nil {
		return err
	}

	entry, err := loadEntry(ctx, a, opts.intdes, opts.tleFile)
	if err != nil {
		return err
	}

	grav, err := a.cfg.Propagation.GravityModel()
	if err != nil {
		return err
	}
	p, err := propagation.NewPropagator(entry.Name, entry.Elements, grav, a.cfg.Propagation.TimeScale())
	if err != nil {
		return fmt.Errorf("initialize %s: %w", entry.Name, err)
	}

	sampler := propagation.NewSampler(propagation.Config{
		Workers: a.cfg.Propagation.Workers,
		Policy:  opts.policy,
	}, a.logger)
	series, err := sampler.Sample(ctx, p, opts.start, opts.step, opts.count)
	if err != nil {
		return fmt.Errorf("propagate %s: %w", entry.Name, err)
	}

	var (
		stations      []station.Station
		stationPasses []passes.StationPasses
	)
	if opts.stationsPath != "" {
		if stations, err = station.Load(opts.stationsPath); err != nil {
			return err
		}
		a.logger.Info("stations loaded", "path", opts.stationsPath, "count", len(stations))
	}
	if opts.passHours > 0 && len(stations) > 0 {
		stationPasses = passes.Predict(ctx, p, passes.Request{
			Stations:     stations,
			Start:        opts.start,
			Horizon:      opts.horizon,
			MinElevation: opts.minElevation,
		})
		for _, sp := range stationPasses {
			if sp.Error != "" {
				a.logger.Warn("pass prediction failed", "station", sp.Station.Name, "error", sp.Error)
				continue
			}
			a.logger.Info("passes predicted", "station", sp.Station.Name, "passes", len(sp.Passes))
		}
	}

	doc := render.NewDocument(p.Name(), p.Epoch(), series, stations, stationPasses)
	paths, err := render.WriteFiles(opts.outDir, doc, opts.formats, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%s (%s) epoch %s: %d samples, %d skipped\n",
		doc.Name, entry.Elements.IntlDesignator, doc.Epoch, len(doc.Samples), len(doc.Skipped))
	for _, path := range paths {
		fmt.Fprintln(a.stdout, path)
	}
	return nil
}

// loadEntry finds the element set for intdes, either in tleFile or through
// the cached CelesTrak loader.
func loadEntry(ctx context.Context, a *app, intdes, tleFile string) (tle.Entry, error) {
	var (
		data   []byte
		source string
		err    error
	)
	if tleFile != "" {
		//nolint:gosec // G304: path comes from the command line.
		if data, err = os.ReadFile(tleFile); err != nil {
			return tle.Entry{}, fmt.Errorf("read TLE file: %w", err)
		}
		source = tleFile
	} else {
		loader := tle.NewLoader(
			tle.NewFetcher(a.cfg.TLE.SourceURL, a.logger, tle.WithRetry(a.cfg.TLE.Attempts, a.cfg.TLE.RetryDelay)),
			tle.NewCache(a.cfg.TLE.CacheDir, a.cfg.TLE.MaxFiles),
			a.cfg.TLE.MaxAge,
			a.logger,
		)
		res, err := loader.ByIntDes(ctx, intdes)
		if err != nil {
			return tle.Entry{}, err
		}
		data, source = res.Data, res.Source
	}

	entries, err := tle.ParseSets(bytes.NewReader(data), a.logger)
	if err != nil {
		return tle.Entry{}, err
	}
	entry, err := pickEntry(entries, intdes, tleFile != "")
	if err != nil {
		return tle.Entry{}, err
	}
	a.logger.Info("element set loaded",
		"name", entry.Name,
		"norad_id", entry.Elements.CatalogNumber,
		"intdes", intdes,
		"source", source,
		"epoch", entry.Elements.Epoch.Format(time.RFC3339),
	)
	return entry, nil
}

// pickEntry returns the entry whose designator matches intdes. A CelesTrak
// INTDES query already filters by designator, so unless strict is set the
// first entry is used when nothing matches exactly.
func pickEntry(entries []tle.Entry, intdes string, strict bool) (tle.Entry, error) {
	want := compactIntDes(intdes)
	for _, e := range entries {
		if compactIntDes(e.Elements.IntlDesignator) == want {
			return e, nil
		}
	}
	if len(entries) == 0 || strict {
		return tle.Entry{}, fmt.Errorf("no element set for %s", intdes)
	}
	return entries[0], nil
}

// compactIntDes maps "1998-067A" to the element set form "98067A". Values
// already in that form are only trimmed and upper-cased.
func compactIntDes(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > 5 && s[4] == '-' {
		return s[2:4] + s[5:]
	}
	return s
}
