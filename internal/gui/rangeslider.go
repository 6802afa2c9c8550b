package gui

import (
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/kikiluvv/trimplayer/internal/trim"
)

type rangeHandle int

const (
	handleNone rangeHandle = iota
	handleStart
	handleEnd
)

// RangeControl edits a trim range with two handles over [min, max]. It never
// emits an inverted range: a start drag at or past the end, or an end drag at
// or before the start, is dropped.
type RangeControl struct {
	widget.BaseWidget

	// OnChange receives every accepted range
	OnChange func(trim.Range)

	min, max float64
	value    trim.Range
	active   rangeHandle
}

var (
	_ fyne.Draggable    = (*RangeControl)(nil)
	_ desktop.Mouseable = (*RangeControl)(nil)
)

// NewRangeControl creates a range control over [min, max]
func NewRangeControl(min, max float64, onChange func(trim.Range)) *RangeControl {
	r := &RangeControl{
		OnChange: onChange,
		min:      min,
		max:      max,
		value:    trim.Default(),
	}
	r.ExtendBaseWidget(r)
	return r
}

// SetDomain changes [min, max]
func (r *RangeControl) SetDomain(min, max float64) {
	if r.min == min && r.max == max {
		return
	}
	r.min, r.max = min, max
	r.Refresh()
}

// SetRange changes the displayed range without emitting
func (r *RangeControl) SetRange(v trim.Range) {
	if r.value.Equal(v) {
		return
	}
	r.value = v.Clone()
	r.Refresh()
}

// Range returns the displayed range
func (r *RangeControl) Range() trim.Range {
	return r.value.Clone()
}

// Dragging reports whether a handle is held
func (r *RangeControl) Dragging() bool {
	return r.active != handleNone
}

func (r *RangeControl) startFraction() float64 {
	return fractionOf(r.value.Start, r.min, r.max)
}

func (r *RangeControl) endFraction() float64 {
	if r.value.End == nil {
		return 1
	}
	return fractionOf(*r.value.End, r.min, r.max)
}

// handleAt returns the handle within hit range of x, preferring the closer one
func (r *RangeControl) handleAt(x float32) rangeHandle {
	width := r.Size().Width
	if width <= 0 || r.max <= r.min {
		return handleNone
	}

	ds := math.Abs(float64(x) - r.startFraction()*float64(width))
	de := math.Abs(float64(x) - r.endFraction()*float64(width))
	hit := float64(handleHitRadius)

	switch {
	case ds > hit && de > hit:
		return handleNone
	case ds < de:
		return handleStart
	case de < ds:
		return handleEnd
	case x > float32(r.startFraction())*width:
		// handles overlap: dragging right can only move the end
		return handleEnd
	default:
		return handleStart
	}
}

func (r *RangeControl) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	r.active = r.handleAt(ev.Position.X)
}

func (r *RangeControl) MouseUp(*desktop.MouseEvent) {
	r.active = handleNone
}

func (r *RangeControl) Dragged(ev *fyne.DragEvent) {
	if r.active == handleNone {
		origin := ev.Position.Subtract(ev.Dragged)
		r.active = r.handleAt(origin.X)
		if r.active == handleNone {
			return
		}
	}
	if r.max <= r.min {
		return
	}

	value := valueAt(r.min, r.max, percentAt(ev.Position.X, r.Size().Width))
	r.moveHandle(r.active, value)
}

func (r *RangeControl) DragEnd() {
	r.active = handleNone
}

// moveHandle applies a candidate value to a handle, enforcing start < end
func (r *RangeControl) moveHandle(h rangeHandle, value float64) {
	var next trim.Range
	switch h {
	case handleStart:
		if r.value.End != nil && value >= *r.value.End {
			return
		}
		// an open end sits at max
		if r.value.End == nil && value >= r.max {
			return
		}
		next = r.value.WithStart(value)
	case handleEnd:
		if value <= r.value.Start {
			return
		}
		next = r.value.WithEnd(value)
	default:
		return
	}
	if next.Equal(r.value) {
		return
	}

	r.value = next
	r.Refresh()
	if r.OnChange != nil {
		r.OnChange(next.Clone())
	}
}

func (r *RangeControl) CreateRenderer() fyne.WidgetRenderer {
	rr := &rangeRenderer{
		r:     r,
		bar:   newTrackBar(),
		fill:  newTrackFill(),
		start: newHandle(),
		end:   newHandle(),
	}
	rr.objects = []fyne.CanvasObject{rr.bar, rr.fill, rr.start, rr.end}
	return rr
}

type rangeRenderer struct {
	r          *RangeControl
	bar, fill  *canvas.Rectangle
	start, end *canvas.Circle
	objects    []fyne.CanvasObject
}

func (rr *rangeRenderer) Layout(size fyne.Size) {
	from, to := rr.r.startFraction(), rr.r.endFraction()
	layoutBar(rr.bar, size, 0, 1)
	layoutBar(rr.fill, size, from, to)
	layoutHandle(rr.start, size, from)
	layoutHandle(rr.end, size, to)
}

func (rr *rangeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(handleDiameter*4, controlHeight)
}

func (rr *rangeRenderer) Refresh() {
	rr.Layout(rr.r.Size())
	canvas.Refresh(rr.r)
}

func (rr *rangeRenderer) Objects() []fyne.CanvasObject {
	return rr.objects
}

func (rr *rangeRenderer) Destroy() {}
