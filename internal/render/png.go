package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
)

// Plot sizes the PNG ground-track plot.
type Plot struct {
	Width, Height int
}

// DefaultPlot is a 2:1 equirectangular frame.
var DefaultPlot = Plot{Width: 1440, Height: 720}

var (
	oceanColor   = color.RGBA{R: 0x16, G: 0x31, B: 0x4f, A: 0xff}
	gridColor    = color.RGBA{R: 0x4c, G: 0x56, B: 0x6a, A: 0xff}
	equatorColor = color.RGBA{R: 0x81, G: 0xa1, B: 0xc1, A: 0xff}
	trackColor   = color.RGBA{R: 0xff, G: 0x40, B: 0x40, A: 0xff}
	stationColor = color.RGBA{R: 0x50, G: 0xfa, B: 0x7b, A: 0xff}
)

// WritePNG draws the ground track as a scatter of subpoints over a 30 degree
// graticule, with stations as squares.
func WritePNG(w io.Writer, doc Document, plot Plot) error {
	if plot.Width <= 0 || plot.Height <= 0 {
		return fmt.Errorf("invalid plot size %dx%d", plot.Width, plot.Height)
	}

	img := plot.Image(doc)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Image rasterizes doc without encoding it.
func (p Plot) Image(doc Document) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: oceanColor}, image.Point{}, draw.Src)

	for lon := -180.0; lon <= 180; lon += 30 {
		x, _ := p.pixel(0, lon)
		for y := 0; y < p.Height; y++ {
			img.SetRGBA(x, y, gridColor)
		}
	}
	for lat := -90.0; lat <= 90; lat += 30 {
		_, y := p.pixel(lat, 0)
		c := gridColor
		if lat == 0 {
			c = equatorColor
		}
		for x := 0; x < p.Width; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	for _, s := range doc.Samples {
		x, y := p.pixel(s.Latitude, s.Longitude)
		fillSquare(img, x, y, 1, trackColor)
	}
	for _, s := range doc.Stations {
		x, y := p.pixel(s.Latitude, s.Longitude)
		fillSquare(img, x, y, 3, stationColor)
	}
	return img
}

// pixel maps geodetic degrees to a pixel inside the frame.
func (p Plot) pixel(lat, lon float64) (int, int) {
	x := int(math.Round((lon + 180) / 360 * float64(p.Width-1)))
	y := int(math.Round((90 - lat) / 180 * float64(p.Height-1)))
	return clampInt(x, 0, p.Width-1), clampInt(y, 0, p.Height-1)
}

func fillSquare(img *image.RGBA, cx, cy, half int, c color.RGBA) {
	r := image.Rect(cx-half, cy-half, cx+half+1, cy+half+1).Intersect(img.Bounds())
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
