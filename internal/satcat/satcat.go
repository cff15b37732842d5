// Package satcat searches the CelesTrak satellite catalog by launch date.
package satcat

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ramones1960/analyze-tle/internal/tle"
)

// DefaultSourceURL is the full catalog as CSV.
const DefaultSourceURL = "https://celestrak.org/pub/satcat.csv"

// DateLayout is the launch date format used by the catalog and the CLI.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for a launch date not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid launch date")

// Launch is one catalog row.
type Launch struct {
	ObjectName string `json:"object_name"`
	ObjectID   string `json:"object_id"`
	NoradCatID int    `json:"norad_cat_id"`
	ObjectType string `json:"object_type,omitempty"`
	Owner      string `json:"owner,omitempty"`
	LaunchDate string `json:"launch_date"`
	LaunchSite string `json:"launch_site,omitempty"`
	DecayDate  string `json:"decay_date,omitempty"`
}

// Client downloads the catalog through a tle.Fetcher, sharing its retry and
// body limit behaviour.
type Client struct {
	fetcher *tle.Fetcher
	logger  *slog.Logger
}

// NewClient creates a catalog client for sourceURL.
func NewClient(sourceURL string, logger *slog.Logger, opts ...tle.FetcherOption) *Client {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Client{
		fetcher: tle.NewFetcher(sourceURL, logger, opts...),
		logger:  logger,
	}
}

// ValidateDate checks that date is a calendar date in YYYY-MM-DD form.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w %q: want YYYY-MM-DD", ErrInvalidDate, date)
	}
	return nil
}

// LaunchesOn returns the catalog objects launched on date.
func (c *Client) LaunchesOn(ctx context.Context, date string) ([]Launch, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	body, err := c.fetcher.Fetch(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch satcat: %w", err)
	}

	launches, err := Filter(bytes.NewReader(body), date)
	if err != nil {
		return nil, err
	}
	c.logger.Info("satcat search complete", "component", "satcat", "date", date, "matches", len(launches), "bytes", len(body))
	return launches, nil
}

// Filter reads catalog CSV from r and keeps rows whose LAUNCH_DATE equals date.
func Filter(r io.Reader, date string) ([]Launch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read satcat header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	if _, ok := col["LAUNCH_DATE"]; !ok {
		return nil, fmt.Errorf("satcat header %v has no LAUNCH_DATE column", header)
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	launches := []Launch{}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read satcat record: %w", err)
		}
		if get(rec, "LAUNCH_DATE") != date {
			continue
		}

		catnr, _ := strconv.Atoi(get(rec, "NORAD_CAT_ID"))
		launches = append(launches, Launch{
			ObjectName: get(rec, "OBJECT_NAME"),
			ObjectID:   get(rec, "OBJECT_ID"),
			NoradCatID: catnr,
			ObjectType: get(rec, "OBJECT_TYPE"),
			Owner:      get(rec, "OWNER"),
			LaunchDate: get(rec, "LAUNCH_DATE"),
			LaunchSite: get(rec, "LAUNCH_SITE"),
			DecayDate:  get(rec, "DECAY_DATE"),
		})
	}
	return launches, nil
}
