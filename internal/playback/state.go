package playback

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/trim"
)

// Status is the controller's position in its state machine
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPaused
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a snapshot of the controller. Snapshots share no memory with the
// controller and may be kept.
type State struct {
	Status    Status
	Video     *catalog.VideoRef
	SessionID uuid.UUID

	IsPlaying   bool
	IsReady     bool
	IsMuted     bool
	CurrentTime float64
	Duration    float64
	Trim        trim.Range

	// AtTrimEnd is set when playback auto-paused at the trim end
	AtTrimEnd bool
	// Err is the last initialization or player failure, cleared on reselect
	Err error
}

// Bounds returns the effective playback window
func (s State) Bounds() (lo, hi float64) {
	return s.Trim.Bounds(s.Duration)
}

// Progress returns CurrentTime as a fraction of Duration, 0 before the duration is known
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return trim.Clamp(s.CurrentTime/s.Duration, 0, 1)
}

// Listener receives state snapshots
type Listener func(State)
