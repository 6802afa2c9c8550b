// Package playertest provides an in-memory player backend for tests.
package playertest

import (
	"context"
	"errors"
	"sync"

	"github.com/kikiluvv/trimplayer/internal/player"
)

// ErrInjected is returned by calls configured to fail
var ErrInjected = errors.New("playertest: injected failure")

// Backend records every call and lets tests drive player events
type Backend struct {
	notify player.Notifier

	mu        sync.Mutex
	videoID   string
	opts      player.LoadOptions
	duration  float64
	time      float64
	playing   bool
	muted     bool
	destroyed bool
	calls     []string
	seeks     []float64
	failing   map[string]error
}

// Factory builds fake backends and remembers them
type Factory struct {
	// Duration is reported by every backend created afterwards
	Duration float64
	// LoadErr makes Load fail when set
	LoadErr error

	mu       sync.Mutex
	backends []*Backend
}

// New implements player.BackendFactory
func (f *Factory) New(notify player.Notifier) (player.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b := &Backend{
		notify:   notify,
		duration: f.Duration,
		failing:  make(map[string]error),
	}
	if f.LoadErr != nil {
		b.failing["load"] = f.LoadErr
	}
	f.backends = append(f.backends, b)
	return b, nil
}

// Backends returns every backend created so far
func (f *Factory) Backends() []*Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Backend, len(f.backends))
	copy(out, f.backends)
	return out
}

// Last returns the most recent backend, or nil
func (f *Factory) Last() *Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.backends) == 0 {
		return nil
	}
	return f.backends[len(f.backends)-1]
}

// Live counts backends that have not been destroyed
func (f *Factory) Live() int {
	n := 0
	for _, b := range f.Backends() {
		if !b.Destroyed() {
			n++
		}
	}
	return n
}

func (b *Backend) record(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
	if b.destroyed {
		return player.ErrDisposed
	}
	return b.failing[name]
}

// Fail makes the named call ("play", "seek", "time", ...) return err. A nil err clears it.
func (b *Backend) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failing, name)
		return
	}
	b.failing[name] = err
}

// FireReady delivers the ready signal the way a real player would
func (b *Backend) FireReady() {
	b.notify(player.Event{Kind: player.EventReady})
}

// FireState delivers a player-side state change
func (b *Backend) FireState(state player.State) {
	b.mu.Lock()
	switch state {
	case player.StatePlaying:
		b.playing = true
	case player.StatePaused, player.StateEnded:
		b.playing = false
	}
	b.mu.Unlock()
	b.notify(player.Event{Kind: player.EventStateChange, State: state})
}

// FireError delivers an asynchronous player error
func (b *Backend) FireError(err error) {
	b.notify(player.Event{Kind: player.EventError, Err: err})
}

// SetTime moves the live playback position
func (b *Backend) SetTime(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.time = t
}

// SetDuration changes the reported duration
func (b *Backend) SetDuration(d float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.duration = d
}

func (b *Backend) VideoID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.videoID
}

func (b *Backend) Options() player.LoadOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

func (b *Backend) Time() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.time
}

func (b *Backend) Playing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

func (b *Backend) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

func (b *Backend) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Seeks returns every position passed to SeekTo
func (b *Backend) Seeks() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.seeks))
	copy(out, b.seeks)
	return out
}

// Count returns how many times the named call was made
func (b *Backend) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (b *Backend) Load(_ context.Context, videoID string, opts player.LoadOptions) error {
	if err := b.record("load"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.videoID = videoID
	b.opts = opts
	b.muted = opts.Muted
	return nil
}

func (b *Backend) Play(context.Context) error {
	if err := b.record("play"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = true
	return nil
}

func (b *Backend) Pause(context.Context) error {
	if err := b.record("pause"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = false
	return nil
}

func (b *Backend) SeekTo(_ context.Context, seconds float64) error {
	if err := b.record("seek"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.time = seconds
	b.seeks = append(b.seeks, seconds)
	return nil
}

func (b *Backend) Mute(context.Context) error {
	if err := b.record("mute"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = true
	return nil
}

func (b *Backend) Unmute(context.Context) error {
	if err := b.record("unmute"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = false
	return nil
}

func (b *Backend) CurrentTime(context.Context) (float64, error) {
	if err := b.record("time"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.time, nil
}

func (b *Backend) Duration(context.Context) (float64, error) {
	if err := b.record("duration"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration, nil
}

func (b *Backend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "destroy")
	b.destroyed = true
	b.playing = false
	return nil
}
