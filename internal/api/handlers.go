package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/render"
	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/tle"
)

const (
	defaultStep  = time.Minute
	defaultCount = 90
)

// trackRequest is the body of POST /api/v1/track.
type trackRequest struct {
	Name        string     `json:"name"`
	Line1       string     `json:"line1" binding:"required"`
	Line2       string     `json:"line2" binding:"required"`
	Start       *time.Time `json:"start"`
	StepSeconds float64    `json:"step_seconds"`
	Count       *int       `json:"count"`
}

// postTrack handles POST /api/v1/track.
func (s *Server) postTrack(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	entry, err := tle.NewEntry(req.Name, req.Line1, req.Line2)
	if err != nil {
		s.writeTLEError(c, err)
		return
	}

	step := defaultStep
	if req.StepSeconds != 0 {
		d, err := propagation.StepFromSeconds(req.StepSeconds)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		step = d
	}
	count := defaultCount
	if req.Count != nil {
		count = *req.Count
	}
	start := time.Now().UTC()
	if req.Start != nil {
		start = req.Start.UTC()
	}

	p, err := s.catalog.NewPropagator(entry.Name, entry.Elements)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.track(c, p, start, step, count)
}

// getSatelliteTrack handles GET /api/v1/satellites/:norad_id/track.
func (s *Server) getSatelliteTrack(c *gin.Context) {
	id, ok := noradID(c)
	if !ok {
		return
	}

	start := time.Now().UTC()
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start time (expected RFC3339): %v", err)})
			return
		}
		start = t.UTC()
	}

	step := defaultStep
	if v := c.Query("step"); v != "" {
		d, err := parseStep(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		step = d
	}

	count := defaultCount
	if v := c.Query("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid count: %v", err)})
			return
		}
		count = n
	}

	p, err := s.catalog.Propagator(id)
	if err != nil {
		s.writeCatalogError(c, id, err)
		return
	}
	s.track(c, p, start, step, count)
}

// track samples p and writes the document, mapping sampler errors to
// status codes.
func (s *Server) track(c *gin.Context, p *propagation.Propagator, start time.Time, step time.Duration, count int) {
	if count > s.cfg.MaxSamples {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       fmt.Sprintf("count %d exceeds the per-request limit", count),
			"max_samples": s.cfg.MaxSamples,
		})
		return
	}

	series, err := s.sampler.Sample(c.Request.Context(), p, start, step, count)
	if err != nil {
		var stepErr *propagation.StepError
		switch {
		case errors.Is(err, propagation.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &stepErr):
			body := gin.H{
				"error": err.Error(),
				"index": stepErr.Index,
				"time":  stepErr.Time,
			}
			var div *sgp4.DivergenceError
			if errors.As(err, &div) {
				body["reason"] = div.Reason
				body["code"] = div.Code
			}
			c.JSON(http.StatusUnprocessableEntity, body)
		default:
			s.logger.Error("sampling failed", "component", "api", "norad_id", p.Elements().CatalogNumber, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sampling failed"})
		}
		return
	}

	c.JSON(http.StatusOK, render.NewDocument(p.Name(), p.Epoch(), series, nil, nil))
}

// elementsResponse is the body of GET /api/v1/satellites/:norad_id/elements.
type elementsResponse struct {
	NoradID         int       `json:"norad_id"`
	Name            string    `json:"name"`
	Line1           string    `json:"line1"`
	Line2           string    `json:"line2"`
	IntlDesignator  string    `json:"intl_designator"`
	Epoch           string    `json:"epoch"`
	EpochTime       time.Time `json:"epoch_time"`
	InclinationDeg  float64   `json:"inclination_deg"`
	RAANDeg         float64   `json:"raan_deg"`
	Eccentricity    float64   `json:"eccentricity"`
	ArgPerigeeDeg   float64   `json:"arg_perigee_deg"`
	MeanAnomalyDeg  float64   `json:"mean_anomaly_deg"`
	MeanMotion      float64   `json:"mean_motion_rev_per_day"`
	BStar           float64   `json:"bstar"`
	PeriodMinutes   float64   `json:"period_minutes"`
	Regime          string    `json:"regime,omitempty"`
	SemiMajorAxisKm float64   `json:"semi_major_axis_km,omitempty"`
}

// getElements handles GET /api/v1/satellites/:norad_id/elements.
func (s *Server) getElements(c *gin.Context) {
	id, ok := noradID(c)
	if !ok {
		return
	}

	entry, found := s.store.Lookup(id)
	if !found {
		if s.store.Get() == nil {
			s.writeCatalogError(c, id, propagation.ErrNoDataset)
			return
		}
		s.writeCatalogError(c, id, propagation.ErrUnknownSatellite)
		return
	}

	el := entry.Elements
	resp := elementsResponse{
		NoradID:        el.CatalogNumber,
		Name:           entry.Name,
		Line1:          entry.Line1,
		Line2:          entry.Line2,
		IntlDesignator: el.IntlDesignator,
		Epoch:          render.EpochString(el.Epoch),
		EpochTime:      el.Epoch.UTC(),
		InclinationDeg: el.Inclination,
		RAANDeg:        el.RAAN,
		Eccentricity:   el.Eccentricity,
		ArgPerigeeDeg:  el.ArgPerigee,
		MeanAnomalyDeg: el.MeanAnomaly,
		MeanMotion:     el.MeanMotion,
		BStar:          el.BStar,
		PeriodMinutes:  el.Period().Minutes(),
	}
	if p, err := s.catalog.Propagator(id); err == nil {
		resp.Regime = p.Satellite().Regime().String()
		resp.SemiMajorAxisKm = p.Satellite().SemiMajorAxis()
	}
	c.JSON(http.StatusOK, resp)
}

func noradID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("norad_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid norad_id"})
		return 0, false
	}
	return id, true
}

// parseStep accepts seconds ("30", "-60", "0.5") or a Go duration ("1m30s").
func parseStep(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return propagation.StepFromSeconds(secs)
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid step %q: want seconds or a duration", v)
	}
	return d, nil
}

func (s *Server) writeTLEError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var fe *tle.FieldError
	if errors.As(err, &fe) {
		body["field"] = fe.Field
		body["line"] = fe.Line
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func (s *Server) writeCatalogError(c *gin.Context, id int, err error) {
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, propagation.ErrUnknownSatellite):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("satellite %d not found", id)})
	case errors.Is(err, sgp4.ErrPropagationDivergence):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("catalog lookup failed", "component", "api", "norad_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
