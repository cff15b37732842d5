// Package render turns a sampled series into output documents: JSON, CSV,
// an HTML ground-track map and a PNG plot.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ramones1960/analyze-tle/internal/passes"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/station"
)

// EpochLayout formats element set epochs for display.
const EpochLayout = "2006-Jan-02 15:04:05.000 UTC"

// EpochString formats t in UTC with EpochLayout.
func EpochString(t time.Time) string {
	return t.UTC().Format(EpochLayout)
}

// Vector is a position in km.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vector(v r3.Vec) Vector { return Vector{X: v.X, Y: v.Y, Z: v.Z} }

// Point is one rendered sample.
type Point struct {
	Index      int       `json:"index"`
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AltitudeKm float64   `json:"altitude_km"`
	ECI        Vector    `json:"eci"`
	ECEF       Vector    `json:"ecef"`
}

// SkippedStep records a step dropped under the skip policy.
type SkippedStep struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Error string    `json:"error"`
}

// Document is the serialized form of one tracking run.
type Document struct {
	Name      string                 `json:"name"`
	Epoch     string                 `json:"epoch"`
	EpochTime time.Time              `json:"epoch_time"`
	Samples   []Point                `json:"samples"`
	Skipped   []SkippedStep          `json:"skipped,omitempty"`
	Stations  []station.Station      `json:"stations,omitempty"`
	Passes    []passes.StationPasses `json:"passes,omitempty"`
}

// NewDocument builds a Document from a sampled series. stations and
// stationPasses are copied through unchanged and may be nil.
func NewDocument(name string, epoch time.Time, series *propagation.Series, stations []station.Station, stationPasses []passes.StationPasses) Document {
	doc := Document{
		Name:      name,
		Epoch:     EpochString(epoch),
		EpochTime: epoch.UTC(),
		Samples:   []Point{},
		Stations:  stations,
		Passes:    stationPasses,
	}
	if series == nil {
		return doc
	}

	doc.Samples = make([]Point, len(series.Samples))
	for i, s := range series.Samples {
		doc.Samples[i] = Point{
			Index:      s.Index,
			Time:       s.Time.UTC(),
			Latitude:   s.Geodetic.LatDeg,
			Longitude:  s.Geodetic.LonDeg,
			AltitudeKm: s.Geodetic.AltKm,
			ECI:        vector(s.State.TEME.Position),
			ECEF:       vector(s.State.ECEF.Position),
		}
	}
	for _, se := range series.Skipped {
		doc.Skipped = append(doc.Skipped, SkippedStep{
			Index: se.Index,
			Time:  se.Time.UTC(),
			Error: se.Err.Error(),
		})
	}
	return doc
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// FileName returns the output file name for an object: spaces become
// underscores and ext is appended to "_ground_track".
func FileName(name, ext string) string {
	base := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	base = strings.NewReplacer("/", "_", "\\", "_").Replace(base)
	if base == "" {
		base = "Unknown"
	}
	return base + "_ground_track." + strings.TrimPrefix(ext, ".")
}
