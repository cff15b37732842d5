package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Observer is a ground site. The ECEF position is computed once so it can be
// reused across many look-angle evaluations.
type Observer struct {
	LatRad, LonRad float64
	AltKm          float64
	ECEF           r3.Vec // km
}

// LookAngles holds azimuth, elevation and range from an observer to a target.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver places an observer at geodetic latitude and longitude (degrees)
// and altitude (km) above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	return WGS84.Observer(latDeg, lonDeg, altKm)
}

// Observer places an observer on e.
func (e Ellipsoid) Observer(latDeg, lonDeg, altKm float64) Observer {
	lat := latDeg * deg2rad
	lon := lonDeg * deg2rad
	return Observer{
		LatRad: lat,
		LonRad: lon,
		AltKm:  altKm,
		ECEF:   e.ToECEF(lat, lon, altKm),
	}
}

// ToECEF converts geodetic latitude and longitude (radians) and altitude (km)
// to an ECEF position.
func (e Ellipsoid) ToECEF(lat, lon, altKm float64) r3.Vec {
	e2 := e.E2()
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)

	return r3.Vec{
		X: (n + altKm) * cosLat * math.Cos(lon),
		Y: (n + altKm) * cosLat * math.Sin(lon),
		Z: (n*(1-e2) + altKm) * sinLat,
	}
}

// LookAt returns the look angles from o to an ECEF position in km, using the
// SEZ (South-East-Zenith) rotation of Vallado Section 4.4.
func (o Observer) LookAt(target r3.Vec) LookAngles {
	rho := r3.Sub(target, o.ECEF)

	sinLat := math.Sin(o.LatRad)
	cosLat := math.Cos(o.LatRad)
	sinLon := math.Sin(o.LonRad)
	cosLon := math.Cos(o.LonRad)

	south := sinLat*cosLon*rho.X + sinLat*sinLon*rho.Y - cosLat*rho.Z
	east := -sinLon*rho.X + cosLon*rho.Y
	zenith := cosLat*cosLon*rho.X + cosLat*sinLon*rho.Y + sinLat*rho.Z

	rng := r3.Norm(rho)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	// North is -South, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: math.Asin(zenith/rng) * rad2deg,
		RangeKm:      rng,
	}
}
