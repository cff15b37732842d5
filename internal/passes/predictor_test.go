package passes

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/station"
	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// ISS element set with epoch 2025-12-06 13:20:56 UTC.
const (
	issLine1 = "1 25544U 98067A   25340.55621404  .00016717  00000+0  30129-3 0  9990"
	issLine2 = "2 25544  51.6396 235.9181 0006764 266.3025 210.1504 15.49479342528251"

	decayLine1 = "1 99901U 24900A   24100.50000000  .05000000  00000-0  50000-0 0  1009"
	decayLine2 = "2 99901  51.6000  10.0000 0005000  90.0000 270.0000 16.30000000    17"
)

var (
	nyc     = station.Station{Name: "New York", Latitude: 40.7128, Longitude: -74.006}
	parrish = station.Station{Name: "Parrish FL", Latitude: 27.5867, Longitude: -82.4251}
)

func mustPropagator(t testing.TB, line1, line2 string) *propagation.Propagator {
	t.Helper()
	e, err := tle.NewEntry("TEST", line1, line2)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	p, err := propagation.NewPropagator(e.Name, e.Elements, sgp4.WGS72, transform.TimeScale{})
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}
	return p
}

func TestPredictISS(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	req := Request{
		Stations:     []station.Station{nyc},
		Start:        p.Epoch(),
		Horizon:      24 * time.Hour,
		MinElevation: 0,
		MaxPasses:    10,
	}

	results := Predict(context.Background(), p, req)
	if len(results) != 1 {
		t.Fatalf("expected 1 station result, got %d", len(results))
	}

	res := results[0]
	if res.Station != nyc {
		t.Errorf("station = %+v, want %+v", res.Station, nyc)
	}
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if len(res.Passes) == 0 {
		t.Fatal("expected at least 1 ISS pass over NYC in 24h")
	}

	for i, ps := range res.Passes {
		if ps.DurationSeconds < 10 {
			t.Errorf("pass %d: duration %.1fs too short", i, ps.DurationSeconds)
		}
		if ps.MaxElevation <= 0 || ps.MaxElevation > 90 {
			t.Errorf("pass %d: max elevation %.2f out of range", i, ps.MaxElevation)
		}
		for _, az := range []float64{ps.AzimuthAtMax, ps.StartAzimuth, ps.EndAzimuth} {
			if az < 0 || az >= 360 {
				t.Errorf("pass %d: azimuth %.2f out of range", i, az)
			}
		}
		if ps.MaxElevationTime.Before(ps.StartTime) || ps.EndTime.Before(ps.MaxElevationTime) || !ps.StartTime.Before(ps.EndTime) {
			t.Errorf("pass %d: time ordering violated: start=%v max=%v end=%v", i, ps.StartTime, ps.MaxElevationTime, ps.EndTime)
		}
		if i > 0 && !ps.StartTime.After(res.Passes[i-1].EndTime) {
			t.Errorf("pass %d overlaps the previous pass", i)
		}

		if len(ps.GroundTrack) == 0 {
			t.Errorf("pass %d: expected ground track points, got none", i)
		}
		for j, gt := range ps.GroundTrack {
			if gt.Latitude < -90 || gt.Latitude > 90 {
				t.Errorf("pass %d gt %d: latitude %.2f out of range", i, j, gt.Latitude)
			}
			if gt.Longitude < -180 || gt.Longitude >= 180 {
				t.Errorf("pass %d gt %d: longitude %.2f out of range", i, j, gt.Longitude)
			}
			if gt.Altitude < 300 || gt.Altitude > 500 {
				t.Errorf("pass %d gt %d: altitude %.1f km out of range", i, j, gt.Altitude)
			}
			if gt.Elevation < 0 || gt.Elevation > 90 {
				t.Errorf("pass %d gt %d: elevation %.2f out of range", i, j, gt.Elevation)
			}
		}

		t.Logf("pass %d: start=%v maxEl=%.1f° az=%.1f° dur=%.0fs groundTrack=%d pts",
			i, ps.StartTime.Format(time.RFC3339), ps.MaxElevation, ps.AzimuthAtMax, ps.DurationSeconds, len(ps.GroundTrack))
	}
}

func TestPredictMinElevationFilter(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	base := Request{
		Stations:  []station.Station{nyc},
		Start:     p.Epoch(),
		Horizon:   48 * time.Hour,
		MaxPasses: 20,
	}
	high := base
	high.MinElevation = 45

	nLow := len(Predict(context.Background(), p, base)[0].Passes)
	nHigh := len(Predict(context.Background(), p, high)[0].Passes)

	if nLow == 0 {
		t.Fatal("expected passes with min elevation 0")
	}
	if nHigh >= nLow {
		t.Errorf("min elevation 45 passes (%d) should be fewer than min elevation 0 passes (%d)", nHigh, nLow)
	}
}

func TestPredictMaxPasses(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	req := Request{
		Stations:  []station.Station{nyc},
		Start:     p.Epoch(),
		Horizon:   72 * time.Hour,
		MaxPasses: 2,
	}
	if n := len(Predict(context.Background(), p, req)[0].Passes); n > 2 {
		t.Errorf("got %d passes, want at most 2", n)
	}
}

func TestPredictStationOrder(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	stations := []station.Station{
		nyc,
		parrish,
		{Name: "McMurdo", Latitude: -77.8419, Longitude: 166.6863},
		{Name: "Svalbard", Latitude: 78.2298, Longitude: 15.4078},
	}
	req := Request{
		Stations:  stations,
		Start:     p.Epoch(),
		Horizon:   12 * time.Hour,
		MaxPasses: 5,
	}

	results := Predict(context.Background(), p, req)
	if len(results) != len(stations) {
		t.Fatalf("got %d results, want %d", len(results), len(stations))
	}
	for i, r := range results {
		if r.Station != stations[i] {
			t.Errorf("result %d is for %q, want %q", i, r.Station.Name, stations[i].Name)
		}
	}
}

func TestPredictCancellation(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Stations:  []station.Station{nyc},
		Start:     p.Epoch(),
		Horizon:   24 * time.Hour,
		MaxPasses: 10,
	}

	results := Predict(ctx, p, req)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Error, "cancelled") {
		t.Errorf("error = %q, want cancelled", results[0].Error)
	}
}

func TestPredictDecayedObject(t *testing.T) {
	p := mustPropagator(t, decayLine1, decayLine2)
	req := Request{
		Stations:  []station.Station{nyc},
		Start:     p.Epoch().Add(time.Hour),
		Horizon:   2 * time.Hour,
		MaxPasses: 10,
	}

	res := Predict(context.Background(), p, req)[0]
	if res.Error == "" {
		t.Fatal("expected an error when no step can be propagated")
	}
	if len(res.Passes) != 0 {
		t.Errorf("got %d passes for a decayed object", len(res.Passes))
	}
}

// haversineKm computes the great-circle distance (km) between two geodetic points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// maxGroundDistKm is the largest great-circle distance between a station
// and a subpoint seen at elevation elevDeg from altitude altKm:
// ρ = acos(R·cos(ε)/(R+h)) − ε.
func maxGroundDistKm(elevDeg, altKm float64) float64 {
	const R = 6371.0
	elevRad := elevDeg * math.Pi / 180
	arg := math.Min(R*math.Cos(elevRad)/(R+altKm), 1)
	return R * math.Max(math.Acos(arg)-elevRad, 0)
}

// TestGroundTrackPhysicalConsistency checks each ground-track point against
// the elevation it was reported at.
func TestGroundTrackPhysicalConsistency(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	req := Request{
		Stations:  []station.Station{parrish},
		Start:     p.Epoch(),
		Horizon:   24 * time.Hour,
		MaxPasses: 20,
	}

	res := Predict(context.Background(), p, req)[0]
	if res.Error != "" {
		t.Fatalf("station error: %s", res.Error)
	}
	if len(res.Passes) == 0 {
		t.Fatal("no passes found over Parrish FL in 24h")
	}

	for pi, ps := range res.Passes {
		for gi, gt := range ps.GroundTrack {
			dist := haversineKm(parrish.Latitude, parrish.Longitude, gt.Latitude, gt.Longitude)
			maxPossible := maxGroundDistKm(gt.Elevation, gt.Altitude)
			if maxPossible > 0 && dist > maxPossible*1.5 {
				t.Errorf("pass %d gt[%d]: dist %.0fkm exceeds max physical %.0fkm (el=%.1f° alt=%.0fkm)",
					pi, gi, dist, maxPossible, gt.Elevation, gt.Altitude)
			}
		}
	}
}

func BenchmarkPredict20Stations24h(b *testing.B) {
	p := mustPropagator(b, issLine1, issLine2)
	stations := make([]station.Station, 20)
	for i := range stations {
		stations[i] = station.Station{Name: "S", Latitude: -60 + 6*float64(i), Longitude: float64(18 * i)}
	}
	req := Request{
		Stations:     stations,
		Start:        p.Epoch(),
		Horizon:      24 * time.Hour,
		MinElevation: 10,
		MaxPasses:    10,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Predict(context.Background(), p, req)
	}
}
