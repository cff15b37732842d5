// Package stream pushes the live subpoint of a loaded object as Server-Sent
// Events. Clients connect via GET /api/v1/satellites/:norad_id/live.
//
// SSE message format:
//
//	data: {"type":"subpoint","t":"2025-12-06T13:20:56Z","latitude":12.3,"longitude":-45.6,"altitude_km":421.7,"ecef":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","norad_id":25544,"name":"ISS (ZARYA)","epoch":"...","dataset_fetched_at":"...","tle_age_seconds":1800}\n\n
//
// The first subpoint carries a "trail" of earlier [lat, lon] pairs, oldest
// first. A propagation failure is sent as {"type":"error"} and ends the
// stream. Keep-alive comments (:\n\n) are sent every KeepaliveInterval.
package stream

import (
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramones1960/analyze-tle/internal/httputil"
	"github.com/ramones1960/analyze-tle/internal/metrics"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	MaxTotal           int           // default 1000
	KeepaliveInterval  time.Duration // default 30s
	TrustProxy         bool
}

// PropagatorSource resolves catalog numbers. *propagation.Catalog
// implements it.
type PropagatorSource interface {
	Propagator(catalog int) (*propagation.Propagator, error)
}

// Handler serves live subpoint streams.
type Handler struct {
	props   PropagatorSource
	store   *tle.Store
	cfg     Config
	limiter *streamLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a streaming handler.
func NewHandler(props PropagatorSource, store *tle.Store, cfg Config, logger *slog.Logger) *Handler {
	if cfg.MaxConcurrentPerIP <= 0 {
		cfg.MaxConcurrentPerIP = 10
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 1000
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		props:   props,
		store:   store,
		cfg:     cfg,
		limiter: newStreamLimiter(cfg.MaxConcurrentPerIP, cfg.MaxTotal),
		logger:  logger,
		now:     time.Now,
	}
}

// queryInt reads an integer query parameter within [lo, hi].
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// Live serves the subpoint stream.
// GET /api/v1/satellites/:norad_id/live?step=5&trail=20
func (h *Handler) Live(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("norad_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid norad_id"})
		return
	}
	step, ok := queryInt(c, "step", 5, 1, 60)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step parameter, must be 1-60"})
		return
	}
	trail, ok := queryInt(c, "trail", 20, 0, 120)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trail parameter, must be 0-120"})
		return
	}

	p, err := h.props.Propagator(id)
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case errors.Is(err, propagation.ErrUnknownSatellite):
		c.JSON(http.StatusNotFound, gin.H{"error": "satellite " + strconv.Itoa(id) + " not found"})
		return
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	ip := httputil.ClientIP(c.Request, h.cfg.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		c.Header("Retry-After", "30")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many concurrent streams"})
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"remote_ip", ip,
		"norad_id", id,
		"step_seconds", step,
		"trail", trail,
	)

	w := c.Writer
	cl := &client{
		w:       w,
		flusher: w,
		rc:      http.NewResponseController(w),
		logger:  h.logger,
	}
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"remote_ip", ip,
			"norad_id", id,
			"messages", cl.messagesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	// Long-lived connection: drop the server WriteTimeout.
	if err := cl.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	// Jittered 3-7s reconnect delay avoids a reconnect storm on restart.
	if err := cl.sendRetry(time.Duration(3000+rand.Intn(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := cl.sendJSON(h.metadata(id, p)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "component", "stream", "remote_ip", ip, "error", err)
		return
	}

	stepDuration := time.Duration(step) * time.Second
	if !h.sendSubpoint(cl, p, stepDuration, trail, ip) {
		return
	}

	ticker := time.NewTicker(stepDuration)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.sendSubpoint(cl, p, stepDuration, 0, ip) {
				return
			}
			keepalive.Reset(h.cfg.KeepaliveInterval)
		case <-keepalive.C:
			if err := cl.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sendSubpoint writes the current subpoint and reports whether the stream
// should continue.
func (h *Handler) sendSubpoint(cl *client, p *propagation.Propagator, step time.Duration, trail int, ip string) bool {
	now := h.now().UTC()
	s, err := p.SampleAt(0, now)
	if err != nil {
		metrics.IncStreamErrors("propagation")
		h.logger.Warn("stream propagation failed",
			"component", "stream",
			"norad_id", p.Elements().CatalogNumber,
			"time", now.Format(time.RFC3339),
			"error", err,
		)
		if sendErr := cl.sendJSON(errorMessage{Type: "error", T: now.Format(time.RFC3339), Error: err.Error()}); sendErr != nil {
			metrics.IncStreamErrors("send_error")
		}
		return false
	}

	msg := newSubpointMessage(s)
	if trail > 0 {
		msg.Trail = buildTrail(p, now, step, trail)
	}
	if err := cl.sendJSON(msg); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
		return false
	}
	return true
}

func (h *Handler) metadata(id int, p *propagation.Propagator) metadataMessage {
	meta := metadataMessage{
		Type:    "metadata",
		NoradID: id,
		Name:    p.Name(),
		Epoch:   p.Epoch().Format(time.RFC3339Nano),
	}
	if ds := h.store.Get(); ds != nil {
		meta.DatasetFetchedAt = ds.FetchedAt.UTC().Format(time.RFC3339)
		meta.TLEAge = int(h.now().Sub(ds.FetchedAt).Seconds())
	}
	return meta
}

// buildTrail returns n earlier [lat, lon] pairs spaced by step, oldest
// first. Times that fail to propagate are left out.
func buildTrail(p *propagation.Propagator, now time.Time, step time.Duration, n int) [][2]float64 {
	out := make([][2]float64, 0, n)
	for k := n; k >= 1; k-- {
		s, err := p.SampleAt(-k, now.Add(-time.Duration(k)*step))
		if err != nil {
			continue
		}
		out = append(out, [2]float64{s.Geodetic.LatDeg, s.Geodetic.LonDeg})
	}
	return out
}

func newSubpointMessage(s propagation.Sample) subpointMessage {
	r := s.State.ECEF.Position
	return subpointMessage{
		Type:       "subpoint",
		T:          s.Time.UTC().Format(time.RFC3339),
		Latitude:   s.Geodetic.LatDeg,
		Longitude:  s.Geodetic.LonDeg,
		AltitudeKm: s.Geodetic.AltKm,
		ECEF:       [3]float64{r.X, r.Y, r.Z},
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type             string `json:"type"`
	NoradID          int    `json:"norad_id"`
	Name             string `json:"name"`
	Epoch            string `json:"epoch"`
	DatasetFetchedAt string `json:"dataset_fetched_at,omitempty"`
	TLEAge           int    `json:"tle_age_seconds"`
}

type subpointMessage struct {
	Type       string       `json:"type"`
	T          string       `json:"t"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	AltitudeKm float64      `json:"altitude_km"`
	ECEF       [3]float64   `json:"ecef"`
	Trail      [][2]float64 `json:"trail,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	T     string `json:"t"`
	Error string `json:"error"`
}
