package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the lifecycle position of a Session
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseReady
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseReady:
		return "ready"
	case PhaseDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Session is one backend bound to one video. It moves Uninitialized -> Ready ->
// Disposed and never back. Every event it forwards carries its ID.
type Session struct {
	id      uuid.UUID
	videoID string
	logger  zerolog.Logger
	backend Backend

	events chan<- Event
	done   <-chan struct{}

	mu        sync.Mutex
	phase     Phase
	closed    chan struct{}
	closeOnce sync.Once
}

// SessionConfig wires a session to its consumer
type SessionConfig struct {
	Factory BackendFactory
	VideoID string
	Options LoadOptions
	// Events receives every event of the session, tagged with its ID
	Events chan<- Event
	// Done unblocks pending deliveries when the consumer stops reading
	Done <-chan struct{}
}

// NewSession creates a backend and starts loading the video. The session is
// Uninitialized until the backend reports ready.
func NewSession(ctx context.Context, logger zerolog.Logger, cfg SessionConfig) (*Session, error) {
	s := &Session{
		id:      uuid.New(),
		videoID: cfg.VideoID,
		events:  cfg.Events,
		done:    cfg.Done,
		closed:  make(chan struct{}),
	}
	s.logger = logger.With().
		Str("session", s.id.String()).
		Str("video_id", cfg.VideoID).
		Logger()

	backend, err := cfg.Factory(s.deliver)
	if err != nil {
		s.dispose()
		return nil, fmt.Errorf("create player: %w", err)
	}
	s.mu.Lock()
	s.backend = backend
	s.mu.Unlock()

	if err := backend.Load(ctx, cfg.VideoID, cfg.Options); err != nil {
		s.dispose()
		if derr := backend.Destroy(); derr != nil {
			s.logger.Debug().Err(derr).Msg("destroy after failed load")
		}
		return nil, fmt.Errorf("load %s: %w", cfg.VideoID, err)
	}

	s.logger.Debug().Msg("player session created")
	return s, nil
}

// ID returns the session identity
func (s *Session) ID() uuid.UUID {
	return s.id
}

// VideoID returns the video the session is bound to
func (s *Session) VideoID() string {
	return s.videoID
}

// Phase returns the lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// deliver tags and forwards a backend event. Events after disposal and repeated
// ready signals are dropped.
func (s *Session) deliver(ev Event) {
	ev.SessionID = s.id

	s.mu.Lock()
	switch {
	case s.phase == PhaseDisposed:
		s.mu.Unlock()
		return
	case ev.Kind == EventReady && s.phase != PhaseUninitialized:
		s.mu.Unlock()
		s.logger.Debug().Msg("dropping duplicate ready signal")
		return
	case ev.Kind == EventReady:
		s.phase = PhaseReady
	}
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-s.closed:
	case <-s.done:
	}
}

// usable returns the backend when the session accepts commands
func (s *Session) usable() (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseUninitialized:
		return nil, ErrNotReady
	case PhaseDisposed:
		return nil, ErrDisposed
	}
	if s.backend == nil {
		return nil, ErrNotReady
	}
	return s.backend, nil
}

func (s *Session) Play(ctx context.Context) error {
	b, err := s.usable()
	if err != nil {
		return err
	}
	return b.Play(ctx)
}

func (s *Session) Pause(ctx context.Context) error {
	b, err := s.usable()
	if err != nil {
		return err
	}
	return b.Pause(ctx)
}

func (s *Session) SeekTo(ctx context.Context, seconds float64) error {
	b, err := s.usable()
	if err != nil {
		return err
	}
	return b.SeekTo(ctx, seconds)
}

func (s *Session) Mute(ctx context.Context) error {
	b, err := s.usable()
	if err != nil {
		return err
	}
	return b.Mute(ctx)
}

func (s *Session) Unmute(ctx context.Context) error {
	b, err := s.usable()
	if err != nil {
		return err
	}
	return b.Unmute(ctx)
}

func (s *Session) CurrentTime(ctx context.Context) (float64, error) {
	b, err := s.usable()
	if err != nil {
		return 0, err
	}
	return b.CurrentTime(ctx)
}

func (s *Session) Duration(ctx context.Context) (float64, error) {
	b, err := s.usable()
	if err != nil {
		return 0, err
	}
	return b.Duration(ctx)
}

// Destroy disposes the session and its backend. Safe to call more than once.
func (s *Session) Destroy() error {
	if !s.dispose() {
		return nil
	}
	s.logger.Debug().Msg("player session destroyed")

	s.mu.Lock()
	b := s.backend
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Destroy()
}

// dispose moves to Disposed and reports whether this call did it
func (s *Session) dispose() bool {
	first := false
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.phase = PhaseDisposed
		s.mu.Unlock()
		close(s.closed)
		first = true
	})
	return first
}
