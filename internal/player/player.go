// Package player wraps an external media player behind a two-phase session handle.
package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotReady is returned for calls made before the player signalled ready
	ErrNotReady = errors.New("player: not ready")
	// ErrDisposed is returned for calls made after the session was destroyed
	ErrDisposed = errors.New("player: session disposed")
	// ErrPlayerExited reports that the player process went away
	ErrPlayerExited = errors.New("player: process exited")
	// ErrCommandTimeout reports a player command that got no reply in time
	ErrCommandTimeout = errors.New("player: command timed out")
	// ErrStartupTimeout reports a player that never became ready
	ErrStartupTimeout = errors.New("player: startup timed out")
)

// EventKind classifies player notifications
type EventKind int

const (
	EventReady EventKind = iota
	EventStateChange
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventStateChange:
		return "state-change"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// State is the playback state reported by the player itself
type State int

const (
	StateUnstarted State = iota
	StatePlaying
	StatePaused
	StateEnded
	StateBuffering
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateBuffering:
		return "buffering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an asynchronous notification from a player. SessionID identifies the
// session that produced it so consumers can drop events from superseded sessions.
type Event struct {
	SessionID uuid.UUID
	Kind      EventKind
	State     State
	Err       error
}

// LoadOptions controls how a video is loaded
type LoadOptions struct {
	Autoplay     bool
	Muted        bool
	HideControls bool
}

// Notifier receives events from a backend. Backends must never call it from
// inside Load; notifications are always asynchronous.
type Notifier func(Event)

// Backend is the capability set of an embeddable player. Calls may fail at any
// time once the underlying player goes away.
type Backend interface {
	Load(ctx context.Context, videoID string, opts LoadOptions) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SeekTo(ctx context.Context, seconds float64) error
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	CurrentTime(ctx context.Context) (float64, error)
	Duration(ctx context.Context) (float64, error)
	Destroy() error
}

// BackendFactory builds a fresh backend reporting to notify
type BackendFactory func(notify Notifier) (Backend, error)
