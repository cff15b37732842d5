package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"index", "time", "latitude", "longitude", "altitude_km",
	"eci_x", "eci_y", "eci_z", "ecef_x", "ecef_y", "ecef_z",
}

// WriteCSV writes one row per sample.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, p := range doc.Samples {
		row := []string{
			strconv.Itoa(p.Index),
			p.Time.UTC().Format(time.RFC3339Nano),
			f(p.Latitude), f(p.Longitude), f(p.AltitudeKm),
			f(p.ECI.X), f(p.ECI.Y), f(p.ECI.Z),
			f(p.ECEF.X), f(p.ECEF.Y), f(p.ECEF.Z),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", p.Index, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}
