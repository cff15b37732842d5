// Package station loads ground station lists. Stations are fixed points
// supplied by the caller and are passed through to rendering unchanged.
package station

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Station is a named ground site in geodetic degrees.
type Station struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// columnAliases maps accepted header names to the canonical column.
var columnAliases = map[string]string{
	"name":      "name",
	"lat":       "lat",
	"latitude":  "lat",
	"lon":       "lon",
	"lng":       "lon",
	"long":      "lon",
	"longitude": "lon",
}

// Load reads a station CSV file.
func Load(path string) ([]Station, error) {
	//nolint:gosec // G304: path comes from the command line.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stations file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stations, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stations, nil
}

// Parse reads a CSV with a header naming name, lat and lon columns in any
// order. latitude/longitude are accepted as column names too.
func Parse(r io.Reader) ([]Station, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("stations CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if canon, ok := columnAliases[key]; ok {
			idx[canon] = i
		}
	}
	for _, want := range []string{"name", "lat", "lon"} {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("invalid CSV header %v: missing %q column", header, want)
		}
	}

	stations := make([]Station, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV record: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		s, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		stations = append(stations, s)
	}

	return stations, nil
}

func parseRecord(record []string, idx map[string]int) (Station, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	name, err := field("name")
	if err != nil {
		return Station{}, err
	}
	latStr, err := field("lat")
	if err != nil {
		return Station{}, err
	}
	lonStr, err := field("lon")
	if err != nil {
		return Station{}, err
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return Station{}, fmt.Errorf("invalid latitude for station %s: %w", name, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return Station{}, fmt.Errorf("invalid longitude for station %s: %w", name, err)
	}
	return Station{Name: name, Latitude: lat, Longitude: lon}, nil
}
