// Package playback keeps an external player inside a per-video trim range.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/catalog"
	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/internal/player"
	"github.com/kikiluvv/trimplayer/internal/trim"
)

// DefaultPollInterval is the live-time read cadence while playing
const DefaultPollInterval = 100 * time.Millisecond

const eventBuffer = 16

// Option configures a Controller
type Option func(*Controller)

// WithPollInterval sets the poll cadence
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTicker replaces the poll ticker source
func WithTicker(fn TickerFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newTicker = fn
		}
	}
}

// WithLoadOptions sets how sessions load their video. Autoplay is always
// forced off; playback starts once the trim start has been applied.
func WithLoadOptions(opts player.LoadOptions) Option {
	return func(c *Controller) {
		c.loadOpts = opts
		c.isMuted = opts.Muted
	}
}

// Controller owns the player session, the trim range and the tracked clock of
// the selected video. All state lives on one goroutine; public methods hand it
// work and wait for it to finish.
type Controller struct {
	logger       zerolog.Logger
	store        trim.Store
	factory      player.BackendFactory
	pollInterval time.Duration
	newTicker    TickerFunc
	loadOpts     player.LoadOptions

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	events chan player.Event
	done   chan struct{}

	// owned by the loop goroutine
	video       *catalog.VideoRef
	session     *player.Session
	storedTrim  bool
	trim        trim.Range
	status      Status
	isPlaying   bool
	isReady     bool
	isMuted     bool
	currentTime float64
	duration    float64
	atTrimEnd   bool
	err         error
	// pause notifications still owed by the player for pauses issued here
	pauseEchoes int
	ticker      Ticker
	tickC       <-chan time.Time
	listeners   map[int]Listener
	nextID      int

	snapMu sync.RWMutex
	snap   State
}

// New starts a controller. Close must be called to release it.
func New(logger zerolog.Logger, store trim.Store, factory player.BackendFactory, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		logger:       logging.Component(logger, "playback"),
		store:        store,
		factory:      factory,
		pollInterval: DefaultPollInterval,
		newTicker:    NewTimeTicker,
		ctx:          ctx,
		cancel:       cancel,
		cmds:         make(chan func()),
		events:       make(chan player.Event, eventBuffer),
		done:         make(chan struct{}),
		trim:         trim.Default(),
		listeners:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = c.snapshot()

	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)

	for {
		select {
		case fn := <-c.cmds:
			fn()
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.tickC:
			c.tick()
		case <-c.ctx.Done():
			c.teardown()
			c.logger.Debug().Msg("playback controller stopped")
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it. It reports false once the
// controller is closed.
func (c *Controller) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(finished) }:
	case <-c.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-c.done:
		return false
	}
}

// Select tears down the current session and starts loading video
func (c *Controller) Select(video catalog.VideoRef) {
	c.do(func() { c.selectVideo(video) })
}

// Clear tears down the current session and returns to idle
func (c *Controller) Clear() {
	c.do(func() {
		c.teardown()
		c.video = nil
		c.resetPlayback()
		c.trim = trim.Default()
		c.storedTrim = false
		c.status = StatusIdle
		c.publish()
	})
}

// PlayPause toggles playback. Resuming continues from the tracked time
// clamped into the trim range, or from the trim start when already at its end.
func (c *Controller) PlayPause() {
	c.do(c.playPause)
}

// SeekTo moves playback to t clamped into the trim range
func (c *Controller) SeekTo(t float64) {
	c.do(func() { c.seekTo(t) })
}

// TrimChange replaces the trim range of the selected video and persists it.
// Ranges are expected to be valid; the range control never emits inverted ones.
func (c *Controller) TrimChange(r trim.Range) {
	c.do(func() { c.trimChange(r) })
}

// MuteToggle flips the mute state. It carries over to later sessions.
func (c *Controller) MuteToggle() {
	c.do(c.muteToggle)
}

// State returns the current snapshot
func (c *Controller) State() State {
	var s State
	if c.do(func() { s = c.snapshot() }) {
		return s
	}
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Subscribe registers fn for state changes. fn runs on the controller
// goroutine and must not call back into the controller synchronously.
func (c *Controller) Subscribe(fn Listener) (cancel func()) {
	id := -1
	c.do(func() {
		id = c.nextID
		c.nextID++
		c.listeners[id] = fn
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.do(func() { delete(c.listeners, id) })
		})
	}
}

// Close destroys the session, stops polling and stops the controller
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}

// Done is closed once the controller has stopped
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) selectVideo(video catalog.VideoRef) {
	c.teardown()

	v := video
	c.video = &v
	c.resetPlayback()

	if r, ok := c.store.Load(v.VideoID); ok {
		c.trim = r
		c.storedTrim = true
	} else {
		c.trim = trim.Default()
		c.storedTrim = false
	}

	opts := c.loadOpts
	opts.Autoplay = false
	opts.Muted = c.isMuted

	log := c.logger.With().Str("video_id", v.VideoID).Logger()
	session, err := player.NewSession(c.ctx, log, player.SessionConfig{
		Factory: c.factory,
		VideoID: v.VideoID,
		Options: opts,
		Events:  c.events,
		Done:    c.done,
	})
	if err != nil {
		c.failInit(err)
		c.publish()
		return
	}

	c.session = session
	c.status = StatusLoading
	log.Info().
		Str("session", session.ID().String()).
		Str("trim", c.trim.String()).
		Msg("loading video")
	c.publish()
}

func (c *Controller) resetPlayback() {
	c.currentTime = 0
	c.duration = 0
	c.isPlaying = false
	c.isReady = false
	c.atTrimEnd = false
	c.err = nil
	c.pauseEchoes = 0
}

// teardown destroys the session and cancels polling
func (c *Controller) teardown() {
	c.stopTicker()
	if c.session == nil {
		return
	}
	if err := c.session.Destroy(); err != nil {
		c.logger.Warn().Err(err).Str("session", c.session.ID().String()).Msg("destroy player session")
	}
	c.session = nil
}

func (c *Controller) handleEvent(ev player.Event) {
	if c.session == nil || ev.SessionID != c.session.ID() {
		c.logger.Debug().
			Str("session", ev.SessionID.String()).
			Stringer("kind", ev.Kind).
			Msg("dropping stale player event")
		return
	}

	switch ev.Kind {
	case player.EventReady:
		c.onReady()
	case player.EventStateChange:
		c.onStateChange(ev.State)
	case player.EventError:
		c.onPlayerError(ev.Err)
	}
	c.publish()
}

func (c *Controller) onReady() {
	d, err := c.session.Duration(c.ctx)
	if err != nil {
		c.failInit(err)
		return
	}
	if d <= 0 {
		c.failInit(player.ErrNotReady)
		return
	}
	c.duration = d

	if r, ok := c.store.Load(c.video.VideoID); ok {
		c.trim = r
		c.storedTrim = true
	} else if !c.storedTrim {
		c.trim = trim.New(0, d)
	}

	lo, _ := c.trim.Bounds(c.duration)
	c.currentTime = lo
	if err := c.session.SeekTo(c.ctx, lo); err != nil {
		c.failInit(err)
		return
	}
	if c.isMuted {
		if err := c.session.Mute(c.ctx); err != nil {
			c.failInit(err)
			return
		}
	}
	if err := c.session.Play(c.ctx); err != nil {
		c.failInit(err)
		return
	}

	c.isReady = true
	c.startPlaying()
	c.logger.Info().
		Str("video_id", c.video.VideoID).
		Float64("duration", d).
		Str("trim", c.trim.String()).
		Msg("player ready")
}

// failInit downgrades to a paused, not-ready state
func (c *Controller) failInit(err error) {
	c.logger.Error().Err(err).Msg("player initialization failed")
	c.err = err
	c.isReady = false
	c.stopPlaying()
}

func (c *Controller) onStateChange(state player.State) {
	if !c.isReady {
		return
	}
	switch state {
	case player.StatePlaying:
		if !c.isPlaying {
			c.startPlaying()
		}
	case player.StatePaused:
		if c.pauseEchoes > 0 {
			// our own pause, possibly overtaken by a resume since
			c.pauseEchoes--
			return
		}
		if c.isPlaying {
			c.stopPlaying()
		}
	case player.StateEnded:
		// the player may stop short of the duration, so end of media counts as the trim end
		_, hi := c.trim.Bounds(c.duration)
		c.currentTime = hi
		c.stopPlaying()
		c.atTrimEnd = true
		c.logger.Debug().Float64("end", hi).Msg("player reached end of media")
	}
}

func (c *Controller) onPlayerError(err error) {
	if !c.isReady {
		c.failInit(err)
		return
	}
	c.logger.Error().Err(err).Msg("player failed")
	c.err = err
	c.isReady = false
	c.stopPlaying()
}

func (c *Controller) playPause() {
	if !c.isReady {
		c.logger.Debug().Msg("play/pause ignored, player not ready")
		return
	}

	if c.isPlaying {
		c.pause()
		c.stopPlaying()
		c.publish()
		return
	}

	lo, hi := c.trim.Bounds(c.duration)
	t := trim.Clamp(c.currentTime, lo, hi)
	if t >= hi {
		t = lo
	}
	c.currentTime = t
	c.control("seek", c.session.SeekTo(c.ctx, t))
	if c.control("play", c.session.Play(c.ctx)) {
		c.startPlaying()
	}
	c.publish()
}

func (c *Controller) seekTo(t float64) {
	if c.video == nil {
		return
	}

	c.currentTime = c.trim.Clamp(t, c.duration)
	if c.isReady {
		c.control("seek", c.session.SeekTo(c.ctx, c.currentTime))
		if c.isPlaying {
			c.control("play", c.session.Play(c.ctx))
		}
	}
	c.publish()
}

func (c *Controller) trimChange(r trim.Range) {
	if c.video == nil {
		return
	}

	c.trim = r.Clone()
	c.storedTrim = true
	if err := c.store.Save(c.video.VideoID, c.trim); err != nil {
		c.logger.Warn().Err(err).Str("video_id", c.video.VideoID).Msg("failed to persist trim")
	}

	if t := c.trim.Clamp(c.currentTime, c.duration); t != c.currentTime {
		c.currentTime = t
		if c.isReady {
			c.control("seek", c.session.SeekTo(c.ctx, t))
		}
	}
	c.publish()
}

func (c *Controller) muteToggle() {
	c.isMuted = !c.isMuted
	if c.isReady {
		if c.isMuted {
			c.control("mute", c.session.Mute(c.ctx))
		} else {
			c.control("unmute", c.session.Unmute(c.ctx))
		}
	}
	c.publish()
}

func (c *Controller) tick() {
	if c.session == nil || !c.isPlaying {
		c.stopTicker()
		return
	}

	raw, err := c.session.CurrentTime(c.ctx)
	if err != nil {
		c.control("current time", err)
		return
	}

	lo, hi := c.trim.Bounds(c.duration)
	t := trim.Clamp(raw, lo, hi)
	if t != raw {
		c.control("seek", c.session.SeekTo(c.ctx, t))
	}
	c.currentTime = t

	if raw >= hi {
		c.pause()
		c.stopPlaying()
		c.atTrimEnd = true
		c.logger.Debug().Float64("time", raw).Float64("end", hi).Msg("reached trim end")
	}
	c.publish()
}

// pause pauses the player and expects the matching state notification
func (c *Controller) pause() {
	if c.control("pause", c.session.Pause(c.ctx)) {
		c.pauseEchoes++
	}
}

// control logs a failed player call and reports whether it succeeded
func (c *Controller) control(op string, err error) bool {
	if err == nil {
		return true
	}
	ev := c.logger.Warn().Err(err).Str("op", op)
	if c.session != nil {
		ev = ev.Str("session", c.session.ID().String())
	}
	ev.Msg("player call failed")
	return false
}

func (c *Controller) startPlaying() {
	c.isPlaying = true
	c.atTrimEnd = false
	c.status = StatusPlaying
	if c.ticker == nil {
		c.ticker = c.newTicker(c.pollInterval)
		c.tickC = c.ticker.C()
	}
}

func (c *Controller) stopPlaying() {
	c.isPlaying = false
	if c.video != nil {
		c.status = StatusPaused
	}
	c.stopTicker()
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.ticker = nil
	c.tickC = nil
}

func (c *Controller) snapshot() State {
	s := State{
		Status:      c.status,
		IsPlaying:   c.isPlaying,
		IsReady:     c.isReady,
		IsMuted:     c.isMuted,
		CurrentTime: c.currentTime,
		Duration:    c.duration,
		Trim:        c.trim.Clone(),
		AtTrimEnd:   c.atTrimEnd,
		Err:         c.err,
	}
	if c.video != nil {
		v := *c.video
		s.Video = &v
	}
	if c.session != nil {
		s.SessionID = c.session.ID()
	}
	return s
}

// publish stores the snapshot and notifies listeners in subscription order
func (c *Controller) publish() {
	s := c.snapshot()

	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()

	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fn(s)
		}
	}
}
