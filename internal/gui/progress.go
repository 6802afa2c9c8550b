package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// ProgressControl is a seek bar over [0, duration]. It only reports requested
// positions; the caller decides what the playback position becomes.
type ProgressControl struct {
	widget.BaseWidget

	// OnChange receives the requested position in seconds
	OnChange func(seconds float64)

	current  float64
	duration float64
	dragging bool
}

var (
	_ fyne.Draggable    = (*ProgressControl)(nil)
	_ desktop.Mouseable = (*ProgressControl)(nil)
)

// NewProgressControl creates an empty seek bar
func NewProgressControl(onChange func(seconds float64)) *ProgressControl {
	p := &ProgressControl{OnChange: onChange}
	p.ExtendBaseWidget(p)
	return p
}

// SetValues updates the rendered position
func (p *ProgressControl) SetValues(current, duration float64) {
	if p.current == current && p.duration == duration {
		return
	}
	p.current = current
	p.duration = duration
	p.Refresh()
}

// Fraction returns the rendered fill fraction
func (p *ProgressControl) Fraction() float64 {
	return fractionOf(p.current, 0, p.duration)
}

// Dragging reports whether a pointer gesture is in progress
func (p *ProgressControl) Dragging() bool {
	return p.dragging
}

func (p *ProgressControl) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	p.dragging = true
	p.emit(ev.Position.X)
}

func (p *ProgressControl) MouseUp(*desktop.MouseEvent) {
	p.dragging = false
}

// Dragged keeps tracking the pointer even when it leaves the widget; Fyne
// keeps routing drag events to the object the drag started on.
func (p *ProgressControl) Dragged(ev *fyne.DragEvent) {
	p.dragging = true
	p.emit(ev.Position.X)
}

func (p *ProgressControl) DragEnd() {
	p.dragging = false
}

func (p *ProgressControl) emit(x float32) {
	seconds := percentAt(x, p.Size().Width) * p.duration
	if p.OnChange != nil {
		p.OnChange(seconds)
	}
}

func (p *ProgressControl) CreateRenderer() fyne.WidgetRenderer {
	r := &progressRenderer{
		p:    p,
		bar:  newTrackBar(),
		fill: newTrackFill(),
	}
	r.objects = []fyne.CanvasObject{r.bar, r.fill}
	return r
}

type progressRenderer struct {
	p       *ProgressControl
	bar     *canvas.Rectangle
	fill    *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *progressRenderer) Layout(size fyne.Size) {
	layoutBar(r.bar, size, 0, 1)
	layoutBar(r.fill, size, 0, r.p.Fraction())
}

func (r *progressRenderer) MinSize() fyne.Size {
	return fyne.NewSize(handleDiameter*4, controlHeight)
}

func (r *progressRenderer) Refresh() {
	r.Layout(r.p.Size())
	canvas.Refresh(r.p)
}

func (r *progressRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *progressRenderer) Destroy() {}
