package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/player"
	"github.com/kikiluvv/trimplayer/internal/player/playertest"
	"github.com/kikiluvv/trimplayer/internal/trim"
)

// manualTicker only fires when a test sends on it
type manualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

type manualTickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (m *manualTickers) New(time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	tk := &manualTicker{ch: make(chan time.Time)}
	m.all = append(m.all, tk)
	return tk
}

func (m *manualTickers) created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.all)
}

func (m *manualTickers) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tk := range m.all {
		tk.mu.Lock()
		if !tk.stopped {
			n++
		}
		tk.mu.Unlock()
	}
	return n
}

// tryTick fires the newest ticker and reports whether the controller consumed it
func (m *manualTickers) tryTick(wait time.Duration) bool {
	m.mu.Lock()
	if len(m.all) == 0 {
		m.mu.Unlock()
		return false
	}
	tk := m.all[len(m.all)-1]
	m.mu.Unlock()

	select {
	case tk.ch <- time.Now():
		return true
	case <-time.After(wait):
		return false
	}
}

func (m *manualTickers) tick(t *testing.T) {
	t.Helper()
	if !m.tryTick(time.Second) {
		t.Fatal("poll tick was not consumed")
	}
}

// memStore is an in-memory trim.Store
type memStore struct {
	mu    sync.Mutex
	m     map[string]trim.Range
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string]trim.Range)}
}

func (s *memStore) Load(videoID string) (trim.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[videoID]
	return r.Clone(), ok
}

func (s *memStore) Save(videoID string, r trim.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.m[videoID] = r.Clone()
	return nil
}

type harness struct {
	c     *Controller
	f     *playertest.Factory
	store *memStore
	ticks *manualTickers
}

func newHarness(t *testing.T, duration float64, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		f:     &playertest.Factory{Duration: duration},
		store: newMemStore(),
		ticks: &manualTickers{},
	}
	opts = append([]Option{WithTicker(h.ticks.New)}, opts...)
	h.c = New(zerolog.Nop(), h.store, h.f.New, opts...)
	t.Cleanup(h.c.Close)
	return h
}

func video(id string) catalog.VideoRef {
	return catalog.VideoRef{VideoID: id, Title: "Video " + id}
}

func waitFor(t *testing.T, c *Controller, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.State()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, state %+v", what, s)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ready selects id and brings its session to Ready/Playing
func (h *harness) ready(t *testing.T, id string) *playertest.Backend {
	t.Helper()
	h.c.Select(video(id))
	b := h.f.Last()
	b.FireReady()
	waitFor(t, h.c, "playing", func(s State) bool { return s.IsPlaying })
	return b
}

func TestDefaultTrimFromDuration(t *testing.T) {
	h := newHarness(t, 120)

	h.c.Select(video("a"))
	s := h.c.State()
	if s.Status != StatusLoading || s.IsReady || s.IsPlaying {
		t.Fatalf("expected loading state, got %+v", s)
	}
	if s.Trim.HasEnd() || s.Trim.Start != 0 {
		t.Errorf("trim before ready should be {0}, got %s", s.Trim)
	}
	if s.SessionID == uuid.Nil {
		t.Error("expected a session id")
	}

	b := h.f.Last()
	b.FireReady()
	s = waitFor(t, h.c, "playing", func(s State) bool { return s.IsPlaying })

	if !s.Trim.Equal(trim.New(0, 120)) {
		t.Errorf("expected trim [0, 120], got %s", s.Trim)
	}
	if s.Duration != 120 || !s.IsReady || s.Status != StatusPlaying {
		t.Errorf("unexpected ready state %+v", s)
	}
	if seeks := b.Seeks(); len(seeks) != 1 || seeks[0] != 0 {
		t.Errorf("expected a seek to the trim start, got %v", seeks)
	}
	if b.Count("play") != 1 {
		t.Errorf("expected one play, got %d", b.Count("play"))
	}
	if h.ticks.active() != 1 {
		t.Errorf("expected one live poll ticker, got %d", h.ticks.active())
	}
	if b.Options().Autoplay || b.Options().Muted {
		t.Errorf("unexpected load options %+v", b.Options())
	}
}

func TestAutoPauseAtTrimEndExactlyOnce(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	b.SetTime(60)
	h.ticks.tick(t)
	if s := h.c.State(); !s.IsPlaying || s.CurrentTime != 60 {
		t.Fatalf("expected playing at 60, got %+v", s)
	}

	b.SetTime(120)
	h.ticks.tick(t)

	s := h.c.State()
	if s.IsPlaying || s.Status != StatusPaused || !s.AtTrimEnd {
		t.Fatalf("expected auto-pause at trim end, got %+v", s)
	}
	if s.CurrentTime != 120 {
		t.Errorf("expected current time 120, got %v", s.CurrentTime)
	}
	if b.Count("pause") != 1 {
		t.Errorf("expected exactly one pause, got %d", b.Count("pause"))
	}

	if h.ticks.tryTick(50 * time.Millisecond) {
		t.Error("poll ticker should be stopped after auto-pause")
	}
	if h.ticks.active() != 0 {
		t.Errorf("expected no live tickers, got %d", h.ticks.active())
	}
	if b.Count("pause") != 1 {
		t.Errorf("repeated ticks must not pause again, got %d", b.Count("pause"))
	}
}

func TestTickClampsDriftIntoTrim(t *testing.T) {
	h := newHarness(t, 120)
	h.store.Save("a", trim.New(10, 20))
	b := h.ready(t, "a")

	if seeks := b.Seeks(); len(seeks) != 1 || seeks[0] != 10 {
		t.Fatalf("expected ready to seek to 10, got %v", seeks)
	}

	b.SetTime(15)
	h.ticks.tick(t)
	if s := h.c.State(); s.CurrentTime != 15 || len(b.Seeks()) != 1 {
		t.Errorf("in-range tick should not seek, time %v seeks %v", s.CurrentTime, b.Seeks())
	}

	b.SetTime(4)
	h.ticks.tick(t)
	if s := h.c.State(); s.CurrentTime != 10 || !s.IsPlaying {
		t.Errorf("expected clamp to 10 while playing, got %+v", s)
	}

	b.SetTime(25)
	h.ticks.tick(t)
	s := h.c.State()
	seeks := b.Seeks()
	if seeks[len(seeks)-1] != 20 {
		t.Errorf("expected seek back to 20, got %v", seeks)
	}
	if s.CurrentTime != 20 || s.IsPlaying {
		t.Errorf("expected paused at 20, got %+v", s)
	}
	if b.Count("pause") != 1 {
		t.Errorf("expected one pause, got %d", b.Count("pause"))
	}
}

func TestTrimChangeReclampsCurrentTime(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	b.SetTime(50)
	h.ticks.tick(t)

	h.c.TrimChange(trim.New(60, 90))
	s := h.c.State()
	if s.CurrentTime != 60 {
		t.Errorf("expected current time re-clamped to 60, got %v", s.CurrentTime)
	}
	if seeks := b.Seeks(); seeks[len(seeks)-1] != 60 {
		t.Errorf("expected a seek to 60, got %v", seeks)
	}
	if r, ok := h.store.Load("a"); !ok || !r.Equal(trim.New(60, 90)) {
		t.Errorf("trim not persisted, got %s ok=%v", r, ok)
	}

	h.c.TrimChange(trim.New(10, 40))
	if s := h.c.State(); s.CurrentTime != 40 {
		t.Errorf("expected current time re-clamped to 40, got %v", s.CurrentTime)
	}

	seeks := len(b.Seeks())
	h.c.TrimChange(trim.New(5, 100))
	if s := h.c.State(); s.CurrentTime != 40 || len(b.Seeks()) != seeks {
		t.Errorf("time inside new range should not move, got %v with seeks %v", s.CurrentTime, b.Seeks())
	}
}

func TestTrimChangeProperty(t *testing.T) {
	h := newHarness(t, 100)
	b := h.ready(t, "a")

	ranges := []trim.Range{
		trim.New(0, 100), trim.New(30, 31), trim.New(99, 100),
		trim.New(0, 1), trim.New(45.5, 70.25), trim.New(10, 90),
	}
	positions := []float64{0, 0.5, 29, 30.5, 50, 99.9, 100}

	for _, pos := range positions {
		for _, r := range ranges {
			h.c.SeekTo(0)
			h.c.TrimChange(trim.New(0, 100))
			b.SetTime(pos)
			h.ticks.tick(t)

			h.c.TrimChange(r)
			s := h.c.State()
			lo, hi := r.Start, *r.End
			if s.CurrentTime < lo || s.CurrentTime > hi {
				t.Fatalf("pos %v range %s: current time %v outside range", pos, r, s.CurrentTime)
			}

			if !h.c.State().IsPlaying {
				h.c.PlayPause()
			}
		}
	}
}

func TestTrimRoundTripAcrossSelections(t *testing.T) {
	h := newHarness(t, 120)
	h.ready(t, "a")

	h.c.TrimChange(trim.New(5, 15))
	h.ready(t, "b")

	h.c.Select(video("a"))
	if s := h.c.State(); !s.Trim.Equal(trim.New(5, 15)) {
		t.Errorf("expected restored trim [5, 15], got %s", s.Trim)
	}

	h.f.Last().FireReady()
	s := waitFor(t, h.c, "playing", func(s State) bool { return s.IsPlaying })
	if !s.Trim.Equal(trim.New(5, 15)) || s.CurrentTime != 5 {
		t.Errorf("expected playback from 5 within [5, 15], got %+v", s)
	}
}

func TestSelectingReplacesSession(t *testing.T) {
	h := newHarness(t, 120)

	h.ready(t, "a")
	first := h.f.Last()

	h.c.Select(video("b"))
	second := h.f.Last()

	if !first.Destroyed() {
		t.Error("previous session must be destroyed")
	}
	if h.f.Live() != 1 || second.VideoID() != "b" {
		t.Errorf("expected exactly one live session for b, got %d live, last %s", h.f.Live(), second.VideoID())
	}
	if h.ticks.active() != 0 {
		t.Errorf("no poll ticker may outlive its session, got %d", h.ticks.active())
	}
	if h.ticks.tryTick(50 * time.Millisecond) {
		t.Error("tick from the previous session was consumed")
	}

	s := h.c.State()
	if s.Status != StatusLoading || s.Video.VideoID != "b" || s.CurrentTime != 0 || s.Duration != 0 {
		t.Errorf("expected fresh loading state for b, got %+v", s)
	}
}

func TestRapidSelectionIgnoresStaleReady(t *testing.T) {
	h := newHarness(t, 120)

	h.c.Select(video("a"))
	a := h.f.Last()
	h.c.Select(video("b"))
	b := h.f.Last()

	a.FireReady()
	time.Sleep(20 * time.Millisecond)

	s := h.c.State()
	if s.IsReady || s.Status != StatusLoading {
		t.Fatalf("stale ready must be ignored, got %+v", s)
	}
	if a.Count("play") != 0 || a.Count("seek") != 0 {
		t.Error("stale session received commands")
	}

	b.FireReady()
	s = waitFor(t, h.c, "playing b", func(s State) bool { return s.IsPlaying })
	if s.Video.VideoID != "b" || h.f.Live() != 1 {
		t.Errorf("expected b playing alone, got %+v", s)
	}
}

func TestReadyFailureDowngrades(t *testing.T) {
	tests := []struct {
		name string
		call string
	}{
		{"duration", "duration"},
		{"seek", "seek"},
		{"play", "play"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 120)
			h.c.Select(video("a"))
			b := h.f.Last()
			b.Fail(tt.call, playertest.ErrInjected)

			b.FireReady()
			s := waitFor(t, h.c, "failed init", func(s State) bool { return s.Err != nil })

			if s.IsReady || s.IsPlaying || s.Status != StatusPaused {
				t.Errorf("expected paused not-ready state, got %+v", s)
			}
			if !errors.Is(s.Err, playertest.ErrInjected) {
				t.Errorf("unexpected error %v", s.Err)
			}
			if h.ticks.active() != 0 {
				t.Error("no poll ticker after failed init")
			}

			// controls are no-ops while not ready
			h.c.PlayPause()
			if h.c.State().IsPlaying {
				t.Error("play must not start on a failed session")
			}
		})
	}
}

func TestZeroDurationFailsInit(t *testing.T) {
	h := newHarness(t, 0)
	h.c.Select(video("a"))
	h.f.Last().FireReady()

	s := waitFor(t, h.c, "failed init", func(s State) bool { return s.Err != nil })
	if s.IsReady {
		t.Errorf("zero duration must not be ready, got %+v", s)
	}
}

func TestLoadFailureLeavesControllerUsable(t *testing.T) {
	h := newHarness(t, 120)
	h.f.LoadErr = errors.New("no such video")

	h.c.Select(video("a"))
	s := h.c.State()
	if s.Err == nil || s.IsReady || s.Status != StatusPaused {
		t.Errorf("expected failed selection, got %+v", s)
	}

	h.f.LoadErr = nil
	h.ready(t, "a")
}

func TestPlayPauseResumesFromTrackedTime(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	h.c.PlayPause()
	s := h.c.State()
	if s.IsPlaying || s.Status != StatusPaused || b.Count("pause") != 1 {
		t.Fatalf("expected paused, got %+v", s)
	}
	if h.ticks.active() != 0 {
		t.Error("ticker must stop on pause")
	}

	h.c.SeekTo(30)
	if s := h.c.State(); s.CurrentTime != 30 {
		t.Fatalf("expected tracked time 30, got %v", s.CurrentTime)
	}

	h.c.PlayPause()
	s = h.c.State()
	if !s.IsPlaying || s.CurrentTime != 30 {
		t.Fatalf("expected resume at 30, got %+v", s)
	}
	if seeks := b.Seeks(); seeks[len(seeks)-1] != 30 {
		t.Errorf("resume should continue from 30, got %v", seeks)
	}
	if h.ticks.active() != 1 {
		t.Errorf("expected one ticker after resume, got %d", h.ticks.active())
	}

	b.SetTime(125)
	h.ticks.tick(t)
	if h.c.State().IsPlaying {
		t.Fatal("expected auto-pause at end")
	}

	h.c.PlayPause()
	s = h.c.State()
	if !s.IsPlaying || s.CurrentTime != 0 {
		t.Errorf("resume at trim end should restart from trim start, got %+v", s)
	}
}

func TestSeekToClamps(t *testing.T) {
	h := newHarness(t, 120)
	h.store.Save("a", trim.New(10, 20))
	b := h.ready(t, "a")
	plays := b.Count("play")

	h.c.SeekTo(50)
	if s := h.c.State(); s.CurrentTime != 20 {
		t.Errorf("expected clamp to 20, got %v", s.CurrentTime)
	}
	if seeks := b.Seeks(); seeks[len(seeks)-1] != 20 {
		t.Errorf("expected clamped seek, got %v", seeks)
	}
	if b.Count("play") != plays+1 {
		t.Error("seek while playing should re-assert play")
	}

	h.c.SeekTo(-5)
	if s := h.c.State(); s.CurrentTime != 10 {
		t.Errorf("expected clamp to 10, got %v", s.CurrentTime)
	}

	h.c.PlayPause()
	plays = b.Count("play")
	h.c.SeekTo(15)
	if b.Count("play") != plays {
		t.Error("seek while paused must not start playback")
	}
}

func TestMuteToggle(t *testing.T) {
	h := newHarness(t, 120)

	h.c.MuteToggle()
	if !h.c.State().IsMuted {
		t.Fatal("expected muted")
	}

	b := h.ready(t, "a")
	if !b.Options().Muted {
		t.Error("mute state should carry into the new session")
	}
	if b.Count("mute") != 1 || !b.Muted() {
		t.Errorf("expected mute applied on ready, got %d calls", b.Count("mute"))
	}

	h.c.MuteToggle()
	s := h.c.State()
	if s.IsMuted || b.Count("unmute") != 1 || b.Muted() {
		t.Errorf("expected unmuted, got %+v", s)
	}
	if !s.IsPlaying || s.CurrentTime != 0 {
		t.Errorf("mute must not touch playback, got %+v", s)
	}
}

func TestControlErrorsAreSwallowed(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	b.Fail("time", player.ErrDisposed)
	h.ticks.tick(t)
	if s := h.c.State(); !s.IsPlaying {
		t.Errorf("failed time read must be a no-op, got %+v", s)
	}

	b.Fail("time", nil)
	b.Fail("pause", player.ErrDisposed)
	h.c.PlayPause()
	if s := h.c.State(); s.IsPlaying {
		t.Errorf("pause intent should still stop polling, got %+v", s)
	}

	b.Fail("seek", player.ErrDisposed)
	h.c.SeekTo(40)
	if s := h.c.State(); s.CurrentTime != 40 {
		t.Errorf("tracked time should still move, got %v", s.CurrentTime)
	}
}

func TestStoreFailureKeepsTrim(t *testing.T) {
	h := newHarness(t, 120)
	h.ready(t, "a")

	h.store.err = errors.New("disk full")
	h.c.TrimChange(trim.New(3, 9))

	if s := h.c.State(); !s.Trim.Equal(trim.New(3, 9)) {
		t.Errorf("in-memory trim should not roll back, got %s", s.Trim)
	}
}

func TestExternalStateChanges(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	b.FireState(player.StatePaused)
	waitFor(t, h.c, "paused", func(s State) bool { return !s.IsPlaying })
	if h.ticks.active() != 0 {
		t.Error("external pause should stop polling")
	}

	b.FireState(player.StatePlaying)
	waitFor(t, h.c, "playing", func(s State) bool { return s.IsPlaying })
	if h.ticks.active() != 1 {
		t.Errorf("external play should resume polling, got %d tickers", h.ticks.active())
	}

	b.FireState(player.StateEnded)
	s := waitFor(t, h.c, "ended", func(s State) bool { return !s.IsPlaying })
	if !s.AtTrimEnd {
		t.Error("end of media should count as the trim end")
	}
}

func TestPlayerReportedEndShortOfDuration(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	// the player holds the last frame just before the duration
	b.SetTime(119.96)
	b.FireState(player.StateEnded)
	s := waitFor(t, h.c, "trim end", func(s State) bool { return s.AtTrimEnd })
	if s.IsPlaying || s.CurrentTime != 120 {
		t.Errorf("expected paused at 120, got %+v", s)
	}
	if h.ticks.active() != 0 {
		t.Error("polling should stop at the end of media")
	}

	h.c.PlayPause()
	s = h.c.State()
	if !s.IsPlaying || s.AtTrimEnd {
		t.Errorf("expected playback to restart, got %+v", s)
	}
	seeks := b.Seeks()
	if len(seeks) != 2 || seeks[1] != 0 {
		t.Errorf("expected resume to seek to the trim start, got %v", seeks)
	}
}

func TestOwnPauseNotificationIgnored(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	h.c.PlayPause()
	h.c.PlayPause()
	if s := h.c.State(); !s.IsPlaying {
		t.Fatalf("expected playing after resume, got %+v", s)
	}
	created := h.ticks.created()

	// notifications for the pause and the resume arrive late
	b.FireState(player.StatePaused)
	b.FireState(player.StatePlaying)
	// a pause from the player itself still stops playback
	b.FireState(player.StatePaused)
	waitFor(t, h.c, "paused", func(s State) bool { return !s.IsPlaying })

	if n := h.ticks.created(); n != created {
		t.Errorf("late pause notification restarted polling: %d tickers, want %d", n, created)
	}
	if h.ticks.active() != 0 {
		t.Error("external pause should stop polling")
	}
}

func TestPlayerErrorAfterReady(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	b.FireError(player.ErrPlayerExited)
	s := waitFor(t, h.c, "error", func(s State) bool { return s.Err != nil })
	if s.IsReady || s.IsPlaying {
		t.Errorf("expected not-ready paused state, got %+v", s)
	}
	if h.ticks.active() != 0 {
		t.Error("ticker must stop after a player failure")
	}
}

func TestClear(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	h.c.Clear()
	s := h.c.State()
	if s.Status != StatusIdle || s.Video != nil || s.IsPlaying {
		t.Errorf("expected idle, got %+v", s)
	}
	if !b.Destroyed() || h.ticks.active() != 0 {
		t.Error("clear must destroy the session and stop polling")
	}

	// commands without a selection are ignored
	h.c.SeekTo(10)
	h.c.TrimChange(trim.New(1, 2))
	if h.store.saves != 0 {
		t.Errorf("nothing should be persisted without a selection, got %d saves", h.store.saves)
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, 120)

	var mu sync.Mutex
	var seen []Status
	cancel := h.c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})

	h.ready(t, "a")
	cancel()
	h.c.PlayPause()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 || seen[0] != StatusLoading || seen[len(seen)-1] != StatusPlaying {
		t.Errorf("unexpected notifications %v", seen)
	}
}

func TestCloseTearsDown(t *testing.T) {
	h := newHarness(t, 120)
	b := h.ready(t, "a")

	h.c.Close()
	if !b.Destroyed() {
		t.Error("close must destroy the session")
	}
	if h.ticks.active() != 0 {
		t.Error("close must stop polling")
	}

	returned := make(chan struct{})
	go func() {
		h.c.PlayPause()
		h.c.Select(video("b"))
		_ = h.c.State()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("calls after close must not block")
	}
}

func TestPollInterval(t *testing.T) {
	var mu sync.Mutex
	var got time.Duration
	ticks := &manualTickers{}
	f := &playertest.Factory{Duration: 10}

	c := New(zerolog.Nop(), newMemStore(), f.New,
		WithTicker(func(d time.Duration) Ticker {
			mu.Lock()
			got = d
			mu.Unlock()
			return ticks.New(d)
		}),
		WithPollInterval(40*time.Millisecond),
	)
	defer c.Close()

	c.Select(video("a"))
	f.Last().FireReady()
	waitFor(t, c, "playing", func(s State) bool { return s.IsPlaying })

	mu.Lock()
	defer mu.Unlock()
	if got != 40*time.Millisecond {
		t.Errorf("expected 40ms poll interval, got %v", got)
	}
}
