// Package trim holds the per-video trim range and its persistent store.
package trim

import (
	"fmt"
	"math"
)

// Range is the [Start, End] sub-interval of a video that playback is constrained to,
// in seconds from the start of the media. A nil End means the range runs to the end
// of the media.
type Range struct {
	Start float64  `json:"start" yaml:"start"`
	End   *float64 `json:"end,omitempty" yaml:"end,omitempty"`
}

// Default is the range used for a video with no stored trim
func Default() Range {
	return Range{Start: 0}
}

// New builds a bounded range
func New(start, end float64) Range {
	return Range{Start: start, End: &end}
}

// HasEnd reports whether the range has an explicit end
func (r Range) HasEnd() bool {
	return r.End != nil
}

// WithEnd returns a copy of r ending at end
func (r Range) WithEnd(end float64) Range {
	return Range{Start: r.Start, End: &end}
}

// WithStart returns a copy of r starting at start
func (r Range) WithStart(start float64) Range {
	out := r.Clone()
	out.Start = start
	return out
}

// Clone returns a copy of r that shares no memory with it
func (r Range) Clone() Range {
	if r.End == nil {
		return Range{Start: r.Start}
	}
	end := *r.End
	return Range{Start: r.Start, End: &end}
}

// Equal reports whether two ranges describe the same interval
func (r Range) Equal(o Range) bool {
	if r.Start != o.Start {
		return false
	}
	if r.End == nil || o.End == nil {
		return r.End == nil && o.End == nil
	}
	return *r.End == *o.End
}

// Validate checks the range invariant: start >= 0, and end > start when end is set.
// A nil End is measured against duration when duration is known (> 0).
func (r Range) Validate(duration float64) error {
	if math.IsNaN(r.Start) || r.Start < 0 {
		return fmt.Errorf("trim start must be >= 0, got %v", r.Start)
	}
	if r.End != nil {
		if math.IsNaN(*r.End) || *r.End <= r.Start {
			return fmt.Errorf("trim end %v must be greater than start %v", *r.End, r.Start)
		}
		return nil
	}
	if duration > 0 && duration <= r.Start {
		return fmt.Errorf("trim start %v must be before the end of the media (%v)", r.Start, duration)
	}
	return nil
}

// Bounds returns the effective [lo, hi] playback window for a media of the given
// duration. Before the duration is known (duration <= 0) hi is End or 0. Once it is
// known hi never exceeds it. hi is never below lo.
func (r Range) Bounds(duration float64) (lo, hi float64) {
	lo = r.Start
	if r.End != nil {
		hi = *r.End
		if duration > 0 && hi > duration {
			hi = duration
		}
	} else if duration > 0 {
		hi = duration
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Clamp pins t into the effective playback window
func (r Range) Clamp(t, duration float64) float64 {
	lo, hi := r.Bounds(duration)
	return Clamp(t, lo, hi)
}

// Length returns the playable length of the range
func (r Range) Length(duration float64) float64 {
	lo, hi := r.Bounds(duration)
	return hi - lo
}

// String renders the range for logs
func (r Range) String() string {
	if r.End == nil {
		return fmt.Sprintf("[%.3f, end]", r.Start)
	}
	return fmt.Sprintf("[%.3f, %.3f]", r.Start, *r.End)
}

// Clamp pins v into [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
