package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramones1960/analyze-tle/internal/api"
	"github.com/ramones1960/analyze-tle/internal/auth"
	"github.com/ramones1960/analyze-tle/internal/metrics"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

// datasetSource produces the raw text of a dataset and when it was fetched.
type datasetSource func(ctx context.Context, initial bool) (data []byte, source string, fetchedAt time.Time, err error)

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("serve", a.stderr)
	addr := fs.String("addr", a.cfg.HTTP.Addr, "listen address")
	tleFile := fs.String("tle-file", "", "serve the element sets in this file")
	group := fs.String("group", "active", "CelesTrak group to serve when no --tle-file is given")
	refresh := fs.Duration("refresh", a.cfg.TLE.MaxAge, "reload interval for the group (0 disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}

	grav, err := a.cfg.Propagation.GravityModel()
	if err != nil {
		return err
	}
	policy, err := a.cfg.Propagation.Policy()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)

	store := tle.NewStore()
	catalog := propagation.NewCatalog(store, grav, a.cfg.Propagation.TimeScale(), a.logger)
	sampler := propagation.NewSampler(propagation.Config{Workers: a.cfg.Propagation.Workers, Policy: policy}, a.logger)

	var src datasetSource
	if *tleFile != "" {
		src = fileSource(*tleFile)
		*refresh = 0
	} else {
		loader := tle.NewLoader(
			tle.NewFetcher(a.cfg.TLE.SourceURL, a.logger, tle.WithRetry(a.cfg.TLE.Attempts, a.cfg.TLE.RetryDelay)),
			tle.NewCache(a.cfg.TLE.CacheDir, a.cfg.TLE.MaxFiles),
			a.cfg.TLE.MaxAge,
			a.logger,
		)
		src = groupSource(loader, *group)
	}

	// Start without data rather than fail; /readyz reports 503 until a
	// dataset is loaded.
	if err := reloadDataset(ctx, a, store, src, true); err != nil {
		a.logger.Warn("starting without TLE data", "error", err)
	} else {
		a.logger.Info("propagators ready", "count", catalog.Len())
	}

	srv := api.NewServer(api.Config{
		Addr:        *addr,
		CORSOrigins: a.cfg.HTTP.CORSOrigins,
		MaxSamples:  a.cfg.HTTP.MaxSamples,
		TrustProxy:  a.cfg.HTTP.TrustProxy,
		Auth: auth.Config{
			Enabled: a.cfg.HTTP.AuthEnabled,
			Token:   a.cfg.HTTP.AuthToken,
		},
		StreamMaxPerIP:  a.cfg.HTTP.StreamMaxPerIP,
		StreamKeepalive: a.cfg.HTTP.StreamKeepalive,
	}, a.logger, store, catalog, sampler)

	go reportDatasetAge(ctx, store, 10*time.Second)
	if *refresh > 0 {
		go refreshLoop(ctx, a, store, src, *refresh)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			"addr", *addr,
			"auth_enabled", a.cfg.HTTP.AuthEnabled,
			"refresh", refresh.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

func fileSource(path string) datasetSource {
	return func(ctx context.Context, initial bool) ([]byte, string, time.Time, error) {
		//nolint:gosec // G304: path comes from the command line.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", time.Time{}, fmt.Errorf("read TLE file: %w", err)
		}
		return data, path, time.Now().UTC(), nil
	}
}

func groupSource(loader *tle.Loader, group string) datasetSource {
	return func(ctx context.Context, initial bool) ([]byte, string, time.Time, error) {
		load := loader.Refresh
		if initial {
			load = loader.ByGroup
		}
		res, err := load(ctx, group)
		if err != nil {
			return nil, "", time.Time{}, err
		}
		return res.Data, "celestrak:" + group + " (" + res.Source + ")", res.FetchedAt, nil
	}
}

// reloadDataset replaces the store contents. Reloads are serialized by the
// store lock; a failed reload keeps the previous dataset.
func reloadDataset(ctx context.Context, a *app, store *tle.Store, src datasetSource, initial bool) error {
	store.Lock()
	defer store.Unlock()

	data, source, fetchedAt, err := src(ctx, initial)
	if err != nil {
		return err
	}
	entries, err := tle.ParseSets(bytes.NewReader(data), a.logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no element sets in %s", source)
	}

	ds := tle.NewDataset(source, fetchedAt, entries)
	store.Set(ds)
	metrics.SetDataset(len(entries), store.AgeSeconds())
	a.logger.Info("TLE dataset loaded",
		"source", source,
		"count", len(entries),
		"fetched_at", ds.FetchedAt.Format(time.RFC3339),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return nil
}

func refreshLoop(ctx context.Context, a *app, store *tle.Store, src datasetSource, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := reloadDataset(ctx, a, store, src, false); err != nil {
				a.logger.Warn("TLE refresh failed, keeping current dataset", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func reportDatasetAge(ctx context.Context, store *tle.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if ds := store.Get(); ds != nil {
				metrics.SetDataset(len(ds.Satellites), store.AgeSeconds())
			}
		case <-ctx.Done():
			return
		}
	}
}
