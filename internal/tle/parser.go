package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LineLength is the fixed width of both element lines, checksum included.
const LineLength = 69

// Parse decodes the two element lines into Elements. Trailing whitespace is
// ignored; any length, checksum or field problem returns an error wrapping
// ErrMalformedElementSet.
func Parse(line1, line2 string) (Elements, error) {
	line1 = strings.TrimRight(line1, "\r\n\t ")
	line2 = strings.TrimRight(line2, "\r\n\t ")

	if err := checkLine(1, line1); err != nil {
		return Elements{}, err
	}
	if err := checkLine(2, line2); err != nil {
		return Elements{}, err
	}

	var el Elements
	if err := parseLine1(columns{line: 1, text: line1}, &el); err != nil {
		return Elements{}, err
	}
	sat2, err := parseLine2(columns{line: 2, text: line2}, &el)
	if err != nil {
		return Elements{}, err
	}
	if sat2 != el.CatalogNumber {
		return Elements{}, &FieldError{Line: 2, Field: "catalog number", Start: 3, End: 7, Value: line2[2:7],
			Reason: fmt.Sprintf("does not match line 1 (%d)", el.CatalogNumber)}
	}
	return el, nil
}

func checkLine(n int, line string) error {
	if len(line) != LineLength {
		return &FieldError{Line: n, Field: "length", Reason: fmt.Sprintf("got %d columns, want %d", len(line), LineLength)}
	}
	if line[0] != byte('0'+n) || line[1] != ' ' {
		return &FieldError{Line: n, Field: "line number", Start: 1, End: 2, Value: line[:2], Reason: fmt.Sprintf("want %q", fmt.Sprintf("%d ", n))}
	}
	return verifyChecksum(n, line)
}

func parseLine1(c columns, el *Elements) error {
	var err error
	if el.CatalogNumber, err = c.catalog("catalog number", 3, 7); err != nil {
		return err
	}
	el.Classification = c.text[7]
	el.IntlDesignator = strings.TrimSpace(c.raw(10, 17))

	year, err := c.integer("epoch year", 19, 20)
	if err != nil {
		return err
	}
	day, err := c.decimal("epoch day", 21, 32)
	if err != nil {
		return err
	}
	if limit := float64(daysInYear(fullYear(year)) + 1); day < 1 || day >= limit {
		return c.fail("epoch day", 21, 32, fmt.Sprintf("out of range [1, %g)", limit))
	}
	el.Epoch = epochFromYearDay(year, day)

	if el.MeanMotionDot, err = c.decimal("mean motion dot", 34, 43); err != nil {
		return err
	}
	if el.MeanMotionDDot, err = c.exponential("mean motion ddot", 45, 52); err != nil {
		return err
	}
	if el.BStar, err = c.exponential("bstar", 54, 61); err != nil {
		return err
	}
	if el.EphemerisType, err = c.integer("ephemeris type", 63, 63); err != nil {
		return err
	}
	if el.ElementSetNumber, err = c.integer("element set number", 65, 68); err != nil {
		return err
	}
	return nil
}

func parseLine2(c columns, el *Elements) (int, error) {
	sat, err := c.catalog("catalog number", 3, 7)
	if err != nil {
		return 0, err
	}
	angles := []struct {
		name       string
		start, end int
		max        float64
		inclusive  bool
		dst        *float64
	}{
		{"inclination", 9, 16, 180, true, &el.Inclination},
		{"right ascension", 18, 25, 360, false, &el.RAAN},
		{"argument of perigee", 35, 42, 360, false, &el.ArgPerigee},
		{"mean anomaly", 44, 51, 360, false, &el.MeanAnomaly},
	}
	for _, a := range angles {
		v, err := c.decimal(a.name, a.start, a.end)
		if err != nil {
			return 0, err
		}
		if v < 0 || v > a.max || (!a.inclusive && v == a.max) {
			bound := ")"
			if a.inclusive {
				bound = "]"
			}
			return 0, c.fail(a.name, a.start, a.end, fmt.Sprintf("out of range [0, %g%s", a.max, bound))
		}
		*a.dst = v
	}

	if el.Eccentricity, err = c.impliedDecimal("eccentricity", 27, 33); err != nil {
		return 0, err
	}
	if el.MeanMotion, err = c.decimal("mean motion", 53, 63); err != nil {
		return 0, err
	}
	if el.MeanMotion <= 0 {
		return 0, c.fail("mean motion", 53, 63, "must be positive")
	}
	if el.RevolutionNumber, err = c.integer("revolution number", 64, 68); err != nil {
		return 0, err
	}
	return sat, nil
}

// epochFromYearDay resolves the two-digit year with the 57 pivot:
// 57-99 map to the 1900s and 00-56 to the 2000s. Day 1.0 is Jan 1 00:00 UTC.
// fullYear applies the 57 pivot to a two-digit epoch year.
func fullYear(yy int) int {
	if yy >= 57 {
		return yy + 1900
	}
	return yy + 2000
}

func daysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

func epochFromYearDay(yy int, day float64) time.Time {
	start := time.Date(fullYear(yy), 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour)))
}

// NewEntry parses a named element set.
func NewEntry(name, line1, line2 string) (Entry, error) {
	el, err := Parse(line1, line2)
	if err != nil {
		return Entry{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unknown"
	}
	return Entry{
		Name:     name,
		Line1:    strings.TrimRight(line1, "\r\n\t "),
		Line2:    strings.TrimRight(line2, "\r\n\t "),
		Elements: el,
	}, nil
}

// ParseSets reads two-line or three-line (name first) element sets from r.
// Malformed sets are skipped with a warning log.
func ParseSets(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n\t ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		name, named := "", false
		if !strings.HasPrefix(lines[i], "1 ") {
			name, named = strings.TrimPrefix(lines[i], "0 "), true
			i++
		}
		if i+1 >= len(lines) {
			logger.Warn("skipping truncated TLE entry", "line_index", i, "name", name)
			break
		}
		line1, line2 := lines[i], lines[i+1]
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			// A consumed name line already advanced i; the current line
			// may itself start the next set.
			if !named {
				i++
			}
			continue
		}
		i += 2

		entry, err := NewEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
