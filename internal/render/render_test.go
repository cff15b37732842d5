package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ramones1960/analyze-tle/internal/passes"
	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/station"
	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

const (
	issLine1 = "1 25544U 98067A   25340.55621404  .00016717  00000+0  30129-3 0  9990"
	issLine2 = "2 25544  51.6396 235.9181 0006764 266.3025 210.1504 15.49479342528251"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var (
	t0       = time.Date(2025, 12, 6, 13, 20, 56, 893_000_000, time.UTC)
	svalbard = station.Station{Name: "Svalbard", Latitude: 78.2298, Longitude: 15.4078}
)

// sampleDoc is a small hand-built document crossing the antimeridian.
func sampleDoc() Document {
	lons := []float64{170, 175, 179.5, -179.5, -175}
	doc := Document{
		Name:      "TEST <SAT>",
		Epoch:     EpochString(t0),
		EpochTime: t0,
		Stations:  []station.Station{svalbard},
		Passes: []passes.StationPasses{{
			Station: svalbard,
			Passes: []passes.PassEvent{{
				StartTime:       t0,
				EndTime:         t0.Add(8 * time.Minute),
				MaxElevation:    42.5,
				DurationSeconds: 480,
			}},
		}},
	}
	for i, lon := range lons {
		doc.Samples = append(doc.Samples, Point{
			Index:      i,
			Time:       t0.Add(time.Duration(i) * time.Minute),
			Latitude:   float64(i) * 5,
			Longitude:  lon,
			AltitudeKm: 420,
			ECI:        Vector{X: 6800, Y: float64(i), Z: 1},
			ECEF:       Vector{X: 1, Y: 6800, Z: float64(i)},
		})
	}
	return doc
}

func TestEpochString(t *testing.T) {
	if got, want := EpochString(t0), "2025-Dec-06 13:20:56.893 UTC"; got != want {
		t.Errorf("EpochString = %q, want %q", got, want)
	}
	local := t0.In(time.FixedZone("JST", 9*3600))
	if got := EpochString(local); got != "2025-Dec-06 13:20:56.893 UTC" {
		t.Errorf("EpochString in JST = %q", got)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"ISS (ZARYA)", "png", "ISS_(ZARYA)_ground_track.png"},
		{" STARLINK-1234 ", ".json", "STARLINK-1234_ground_track.json"},
		{"A/B", "csv", "A_B_ground_track.csv"},
		{"", "html", "Unknown_ground_track.html"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FileName(tt.name, tt.ext); got != tt.want {
				t.Errorf("FileName(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
			}
		})
	}
}

func TestNewDocumentFromSeries(t *testing.T) {
	e, err := tle.NewEntry("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	p, err := propagation.NewPropagator(e.Name, e.Elements, sgp4.WGS72, transform.TimeScale{})
	if err != nil {
		t.Fatal(err)
	}
	series, err := propagation.NewSampler(propagation.Config{Workers: 2}, testLogger()).
		Sample(context.Background(), p, p.Epoch(), time.Minute, 30)
	if err != nil {
		t.Fatal(err)
	}
	series.Skipped = []propagation.StepError{{Index: 30, Time: p.Epoch().Add(30 * time.Minute), Err: errors.New("boom")}}

	doc := NewDocument(p.Name(), p.Epoch(), series, []station.Station{svalbard}, nil)

	if doc.Epoch != "2025-Dec-06 13:20:56.893 UTC" {
		t.Errorf("epoch = %q", doc.Epoch)
	}
	if len(doc.Samples) != 30 {
		t.Fatalf("got %d points, want 30", len(doc.Samples))
	}
	for i, pt := range doc.Samples {
		s := series.Samples[i]
		if pt.Index != s.Index || !pt.Time.Equal(s.Time) || pt.Latitude != s.Geodetic.LatDeg ||
			pt.ECI.X != s.State.TEME.Position.X || pt.ECEF.Z != s.State.ECEF.Position.Z {
			t.Fatalf("point %d does not match sample: %+v", i, pt)
		}
	}
	if len(doc.Skipped) != 1 || doc.Skipped[0].Error != "boom" {
		t.Errorf("skipped = %+v", doc.Skipped)
	}
	if !reflect.DeepEqual(doc.Stations, []station.Station{svalbard}) {
		t.Errorf("stations = %+v", doc.Stations)
	}
}

func TestNewDocumentNilSeries(t *testing.T) {
	doc := NewDocument("X", t0, nil, nil, nil)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"samples": []`) {
		t.Errorf("empty document should carry an empty samples array:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleDoc()); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"name", "epoch", "epoch_time", "samples", "stations", "passes"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := got["skipped"]; ok {
		t.Error("skipped should be omitted when empty")
	}

	first := got["samples"].([]any)[0].(map[string]any)
	for _, key := range []string{"time", "latitude", "longitude", "altitude_km", "eci", "ecef"} {
		if _, ok := first[key]; !ok {
			t.Errorf("sample missing key %q", key)
		}
	}
	if first["time"] != "2025-12-06T13:20:56.893Z" {
		t.Errorf("time = %v", first["time"])
	}
}

func TestWriteCSV(t *testing.T) {
	doc := sampleDoc()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, doc); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(doc.Samples)+1 {
		t.Fatalf("got %d rows, want %d", len(rows), len(doc.Samples)+1)
	}
	if !reflect.DeepEqual(rows[0], csvHeader) {
		t.Errorf("header = %v", rows[0])
	}
	if rows[4][3] != "-179.500000" || rows[1][4] != "420.000000" {
		t.Errorf("unexpected row values: %v %v", rows[1], rows[4])
	}
}

func TestTrackSegments(t *testing.T) {
	segs := trackSegments(sampleDoc().Samples)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2: %q", len(segs), segs)
	}
	if segs[0] != "350,90 355,85 359.5,80" {
		t.Errorf("first segment = %q", segs[0])
	}
	if segs[1] != "0.5,75 5,70" {
		t.Errorf("second segment = %q", segs[1])
	}

	if got := trackSegments(sampleDoc().Samples[:1]); len(got) != 0 {
		t.Errorf("single point produced segments %q", got)
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"TEST &lt;SAT&gt;",
		"2025-Dec-06 13:20:56.893 UTC",
		`<polyline class="track" points="350,90 355,85 359.5,80"/>`,
		"<title>Svalbard</title>",
		"42.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(out, "<SAT>") {
		t.Error("object name was not escaped")
	}
}

func TestWritePNG(t *testing.T) {
	doc := sampleDoc()
	plot := Plot{Width: 361, Height: 181}

	var buf bytes.Buffer
	if err := WritePNG(&buf, doc, plot); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 361 || b.Dy() != 181 {
		t.Fatalf("size = %v", b)
	}

	// One pixel per degree: Svalbard lands at (195, 12).
	r, g, b, _ := img.At(195, 12).RGBA()
	if uint8(r>>8) != stationColor.R || uint8(g>>8) != stationColor.G || uint8(b>>8) != stationColor.B {
		t.Errorf("station pixel = %v", img.At(195, 12))
	}
	r, g, b, _ = img.At(350, 90).RGBA()
	if uint8(r>>8) != trackColor.R || uint8(g>>8) != trackColor.G || uint8(b>>8) != trackColor.B {
		t.Errorf("track pixel = %v", img.At(350, 90))
	}

	if err := WritePNG(io.Discard, doc, Plot{}); err == nil {
		t.Error("expected error for empty plot size")
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      string
		want    []Format
		wantErr bool
	}{
		{"json", []Format{FormatJSON}, false},
		{"json, CSV,html,png", []Format{FormatJSON, FormatCSV, FormatHTML, FormatPNG}, false},
		{"png,png", []Format{FormatPNG}, false},
		{"pdf", nil, true},
		{" , ", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormats(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("error = %v, want ErrUnknownFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	doc := sampleDoc()
	doc.Name = "ISS (ZARYA)"

	paths, err := WriteFiles(dir, doc, []Format{FormatJSON, FormatCSV, FormatHTML, FormatPNG}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 4 {
		t.Fatalf("wrote %d files, want 4", len(paths))
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
		if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temp file left behind for %s", p)
		}
	}
	if filepath.Base(paths[3]) != "ISS_(ZARYA)_ground_track.png" {
		t.Errorf("png path = %s", paths[3])
	}
}
