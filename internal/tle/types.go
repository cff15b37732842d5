package tle

import "time"

// Elements holds the mean elements decoded from one two-line element set.
// Angles are in degrees and mean motion in revolutions per day, as printed.
// Conversion to propagator units happens in the sgp4 package.
type Elements struct {
	CatalogNumber    int
	Classification   byte
	IntlDesignator   string
	Epoch            time.Time
	MeanMotionDot    float64 // first derivative of mean motion / 2, rev/day^2
	MeanMotionDDot   float64 // second derivative of mean motion / 6, rev/day^3
	BStar            float64 // drag term, 1/earth radii
	EphemerisType    int
	ElementSetNumber int

	Inclination      float64
	RAAN             float64
	Eccentricity     float64
	ArgPerigee       float64
	MeanAnomaly      float64
	MeanMotion       float64
	RevolutionNumber int
}

// Period returns the nominal orbital period derived from the printed mean motion.
func (e Elements) Period() time.Duration {
	if e.MeanMotion <= 0 {
		return 0
	}
	return time.Duration(float64(24*time.Hour) / e.MeanMotion)
}

// Entry is a named element set as delivered by a data source.
type Entry struct {
	Name     string
	Line1    string
	Line2    string
	Elements Elements
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete set of element sets from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a Dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt.UTC(),
		Satellites: entries,
	}
	for i, e := range entries {
		ep := e.Elements.Epoch
		if i == 0 || ep.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = ep
		}
		if i == 0 || ep.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = ep
		}
	}
	return ds
}
