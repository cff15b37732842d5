package render

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ramones1960/analyze-tle/web"
)

const htmlTemplate = "templates/ground_track.html.tmpl"

var (
	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error
)

func groundTrackTemplate() (*template.Template, error) {
	tmplOnce.Do(func() {
		tmpl, tmplErr = template.ParseFS(web.Templates, htmlTemplate)
	})
	return tmpl, tmplErr
}

// The map uses an equirectangular SVG frame: x = lon + 180, y = 90 - lat.
type svgPoint struct{ X, Y float64 }

func project(lat, lon float64) svgPoint {
	return svgPoint{X: round2(lon + 180), Y: round2(90 - lat)}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type axisLabel struct {
	X, Y float64
	Text string
}

type stationMark struct {
	Name   string
	X, Y   float64
	LabelY float64
}

type passRow struct {
	Station         string
	Rise, Set       string
	MaxElevation    float64
	DurationSeconds float64
}

type htmlView struct {
	Name        string
	Epoch       string
	SampleCount int
	Skipped     int
	First, Last string
	Meridians   []float64
	Parallels   []float64
	LonLabels   []axisLabel
	LatLabels   []axisLabel
	Segments    []string
	StartPoint  *svgPoint
	Stations    []stationMark
	Passes      []passRow
}

// WriteHTML renders doc as a standalone HTML page with an SVG ground-track
// map, station markers and a pass table.
func WriteHTML(w io.Writer, doc Document) error {
	t, err := groundTrackTemplate()
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := t.ExecuteTemplate(w, "ground_track.html.tmpl", newHTMLView(doc)); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

func newHTMLView(doc Document) htmlView {
	v := htmlView{
		Name:        doc.Name,
		Epoch:       doc.Epoch,
		SampleCount: len(doc.Samples),
		Skipped:     len(doc.Skipped),
		Segments:    trackSegments(doc.Samples),
	}

	for lon := -180.0; lon <= 180; lon += 30 {
		x := lon + 180
		v.Meridians = append(v.Meridians, x)
		v.LonLabels = append(v.LonLabels, axisLabel{X: x, Text: strconv.Itoa(int(lon)) + "°"})
	}
	for lat := -90.0; lat <= 90; lat += 30 {
		y := 90 - lat
		v.Parallels = append(v.Parallels, y)
		v.LatLabels = append(v.LatLabels, axisLabel{Y: y, Text: strconv.Itoa(int(lat)) + "°"})
	}

	if n := len(doc.Samples); n > 0 {
		first, last := doc.Samples[0], doc.Samples[n-1]
		v.First = first.Time.UTC().Format(time.RFC3339)
		v.Last = last.Time.UTC().Format(time.RFC3339)
		p := project(first.Latitude, first.Longitude)
		v.StartPoint = &p
	}

	for _, s := range doc.Stations {
		p := project(s.Latitude, s.Longitude)
		v.Stations = append(v.Stations, stationMark{Name: s.Name, X: p.X, Y: p.Y, LabelY: p.Y - 2})
	}

	for _, sp := range doc.Passes {
		for _, ps := range sp.Passes {
			v.Passes = append(v.Passes, passRow{
				Station:         sp.Station.Name,
				Rise:            ps.StartTime.UTC().Format(time.DateTime),
				Set:             ps.EndTime.UTC().Format(time.DateTime),
				MaxElevation:    ps.MaxElevation,
				DurationSeconds: ps.DurationSeconds,
			})
		}
	}
	return v
}

// trackSegments returns SVG polyline point lists for the ground track. The
// track is split wherever consecutive samples jump across the antimeridian so
// no line is drawn across the whole map.
func trackSegments(points []Point) []string {
	var (
		segments []string
		b        strings.Builder
		n        int
	)
	flush := func() {
		if n > 1 {
			segments = append(segments, b.String())
		}
		b.Reset()
		n = 0
	}

	for i, p := range points {
		if i > 0 && math.Abs(p.Longitude-points[i-1].Longitude) > 180 {
			flush()
		}
		sp := project(p.Latitude, p.Longitude)
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(sp.X, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(sp.Y, 'f', -1, 64))
		n++
	}
	flush()
	return segments
}
