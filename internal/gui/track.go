package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
)

// Track sizing shared by the drag widgets
const (
	trackHeight     float32 = 6
	handleDiameter  float32 = 16
	handleHitRadius float32 = 14
	controlHeight   float32 = 20
)

// percentAt maps a pointer x offset on a track of the given width to [0, 1].
// A zero-width track maps everything to 0.
func percentAt(x, width float32) float64 {
	if width <= 0 {
		return 0
	}
	p := float64(x / width)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// valueAt maps a track fraction into [min, max]
func valueAt(min, max, percent float64) float64 {
	return min + (max-min)*percent
}

// fractionOf maps value back onto the track. A degenerate domain maps to 0.
func fractionOf(value, min, max float64) float64 {
	if max <= min {
		return 0
	}
	f := (value - min) / (max - min)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// newTrackBar builds the unfilled track background
func newTrackBar() *canvas.Rectangle {
	r := canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground))
	r.CornerRadius = trackHeight / 2
	return r
}

// newTrackFill builds the filled part of a track
func newTrackFill() *canvas.Rectangle {
	r := canvas.NewRectangle(theme.Color(theme.ColorNamePrimary))
	r.CornerRadius = trackHeight / 2
	return r
}

func newHandle() *canvas.Circle {
	c := canvas.NewCircle(color.White)
	c.StrokeColor = theme.Color(theme.ColorNamePrimary)
	c.StrokeWidth = 2
	c.Resize(fyne.NewSquareSize(handleDiameter))
	return c
}

// layoutBar places a bar segment [from, to] (fractions) vertically centred in size
func layoutBar(r *canvas.Rectangle, size fyne.Size, from, to float64) {
	y := (size.Height - trackHeight) / 2
	x := float32(from) * size.Width
	w := float32(to-from) * size.Width
	if w < 0 {
		w = 0
	}
	r.Move(fyne.NewPos(x, y))
	r.Resize(fyne.NewSize(w, trackHeight))
}

// layoutHandle centres a handle on the track at fraction f
func layoutHandle(c *canvas.Circle, size fyne.Size, f float64) {
	x := float32(f)*size.Width - handleDiameter/2
	y := (size.Height - handleDiameter) / 2
	c.Move(fyne.NewPos(x, y))
	c.Resize(fyne.NewSquareSize(handleDiameter))
}
