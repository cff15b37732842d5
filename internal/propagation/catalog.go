package propagation

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// ErrUnknownSatellite is returned when the loaded dataset has no entry for a
// catalog number.
var ErrUnknownSatellite = errors.New("satellite not in dataset")

// ErrNoDataset is returned before any dataset has been loaded.
var ErrNoDataset = errors.New("no TLE dataset loaded")

// propCache holds initialized propagators for one dataset.
// Immutable after construction; safe for concurrent reads.
type propCache struct {
	props   map[int]*Propagator
	failed  map[int]error
	dataset *tle.Dataset
}

// Catalog serves Propagators for the dataset currently held by a Store.
// Models are initialized once per dataset and rebuilt when the Store is
// reloaded.
type Catalog struct {
	store  *tle.Store
	grav   sgp4.GravityModel
	ts     transform.TimeScale
	logger *slog.Logger
	cache  atomic.Pointer[propCache]
	mu     sync.Mutex // serializes cache rebuilds
}

// NewCatalog creates a Catalog over store.
func NewCatalog(store *tle.Store, grav sgp4.GravityModel, ts transform.TimeScale, logger *slog.Logger) *Catalog {
	return &Catalog{store: store, grav: grav, ts: ts, logger: logger}
}

// Propagator returns the propagator for a catalog number.
func (c *Catalog) Propagator(catalog int) (*Propagator, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	pc := c.cached(ds)
	if p, ok := pc.props[catalog]; ok {
		return p, nil
	}
	if err, ok := pc.failed[catalog]; ok {
		return nil, err
	}
	return nil, ErrUnknownSatellite
}

// Len returns the number of initialized propagators for the current dataset.
func (c *Catalog) Len() int {
	ds := c.store.Get()
	if ds == nil {
		return 0
	}
	return len(c.cached(ds).props)
}

// cached returns the propagators for ds, rebuilding when the Store holds a
// different *Dataset (double-checked locking). Datasets are compared by
// identity: two loads can share a FetchedAt second.
func (c *Catalog) cached(ds *tle.Dataset) *propCache {
	if pc := c.cache.Load(); pc != nil && pc.dataset == ds {
		return pc
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if pc := c.cache.Load(); pc != nil && pc.dataset == ds {
		return pc
	}

	pc := &propCache{
		props:   make(map[int]*Propagator, len(ds.Satellites)),
		failed:  make(map[int]error),
		dataset: ds,
	}
	for _, entry := range ds.Satellites {
		id := entry.Elements.CatalogNumber
		p, err := NewPropagator(entry.Name, entry.Elements, c.grav, c.ts)
		if err != nil {
			c.logger.Warn("sgp4 init failed", "norad_id", id, "error", err)
			delete(pc.props, id)
			pc.failed[id] = err
			continue
		}
		// Later entries for the same object win, as in the Store index.
		delete(pc.failed, id)
		pc.props[id] = p
	}

	c.logger.Info("propagator cache rebuilt",
		"cached", len(pc.props),
		"skipped", len(pc.failed),
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.cache.Store(pc)
	return pc
}

// NewPropagator builds a propagator outside the dataset with the catalog's
// gravity model and time scale. Nothing is cached.
func (c *Catalog) NewPropagator(name string, el tle.Elements) (*Propagator, error) {
	return NewPropagator(name, el, c.grav, c.ts)
}
