package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/pkg/util"
)

// property observer ids
const (
	observePause int64 = iota + 1
	observeEOF
)

// MPVConfig configures mpv backends
type MPVConfig struct {
	BinaryPath     string
	SocketDir      string
	ExtraArgs      []string
	StartupTimeout time.Duration
	CommandTimeout time.Duration
}

// NewMPVFactory resolves the mpv binary once and returns a factory that
// starts one mpv process per backend
func NewMPVFactory(logger zerolog.Logger, cfg MPVConfig) (BackendFactory, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "mpv"
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	cfg.BinaryPath = path

	if cfg.SocketDir == "" {
		cfg.SocketDir = os.TempDir()
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 15 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Second
	}

	log := logging.Component(logger, "mpv")
	return func(notify Notifier) (Backend, error) {
		return &MPV{
			logger: log,
			cfg:    cfg,
			notify: notify,
		}, nil
	}, nil
}

// MPV drives an mpv process over its JSON IPC socket
type MPV struct {
	logger zerolog.Logger
	cfg    MPVConfig
	notify Notifier

	mu        sync.Mutex
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	conn      *ipcConn
	socket    string
	destroyed bool

	readyOnce sync.Once
}

// MediaTarget maps a catalog video id to something mpv can open. URLs and
// existing files pass through; bare ids become YouTube watch links, which mpv
// resolves through its ytdl hook.
func MediaTarget(videoID string) string {
	if strings.Contains(videoID, "://") || util.FileExists(videoID) {
		return videoID
	}
	return "https://www.youtube.com/watch?v=" + videoID
}

func (m *MPV) buildArgs(target, socket string, opts LoadOptions) []string {
	args := []string{
		"--input-ipc-server=" + socket,
		"--force-window=yes",
		"--keep-open=yes",
		"--idle=no",
		"--msg-level=all=warn",
	}
	if !opts.Autoplay {
		args = append(args, "--pause")
	}
	if opts.Muted {
		args = append(args, "--mute=yes")
	}
	if opts.HideControls {
		args = append(args, "--osc=no", "--no-input-default-bindings", "--input-vo-keyboard=no")
	}
	args = append(args, m.cfg.ExtraArgs...)
	return append(args, target)
}

// Load starts mpv and returns once the process is running. Readiness is
// reported through the notifier.
func (m *MPV) Load(ctx context.Context, videoID string, opts LoadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrDisposed
	}
	if m.cmd != nil {
		return fmt.Errorf("mpv already loaded")
	}
	if err := util.EnsureDir(m.cfg.SocketDir); err != nil {
		return fmt.Errorf("socket dir: %w", err)
	}

	socket := filepath.Join(m.cfg.SocketDir, "trimplayer-"+uuid.NewString()+".sock")
	args := m.buildArgs(MediaTarget(videoID), socket, opts)

	m.logger.Debug().
		Str("cmd", "mpv").
		Strs("args", args).
		Msg("starting mpv")

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, m.cfg.BinaryPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start mpv: %w", err)
	}

	m.cmd = cmd
	m.cancel = cancel
	m.socket = socket

	go m.streamOutput(stderr)
	go m.wait(cmd)
	go m.connect(ctx, socket)

	return nil
}

// streamOutput forwards mpv's terminal output to the logger
func (m *MPV) streamOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}
}

func (m *MPV) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return
	}

	m.logger.Warn().Err(err).Msg("mpv exited")
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrPlayerExited, err)
	} else {
		err = ErrPlayerExited
	}
	m.notify(Event{Kind: EventError, Err: err})
}

// connect attaches to the IPC socket, subscribes to state changes and
// reports ready once the file is loaded
func (m *MPV) connect(ctx context.Context, socket string) {
	startCtx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	conn, err := dialIPC(startCtx, socket)
	if err != nil {
		m.fail(fmt.Errorf("%w: %v", ErrStartupTimeout, err))
		return
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	loaded := make(chan struct{})
	go m.handleEvents(conn, loaded)

	if err := conn.Observe(startCtx, observePause, "pause"); err != nil {
		m.fail(fmt.Errorf("observe pause: %w", err))
		return
	}
	if err := conn.Observe(startCtx, observeEOF, "eof-reached"); err != nil {
		m.fail(fmt.Errorf("observe eof: %w", err))
		return
	}

	// the file may have finished loading before we connected
	if d, err := conn.GetFloat(startCtx, "duration"); err == nil && d > 0 {
		m.markReady()
		return
	}

	select {
	case <-loaded:
		m.markReady()
	case <-conn.Closed():
	case <-startCtx.Done():
		m.fail(ErrStartupTimeout)
	}
}

func (m *MPV) handleEvents(conn *ipcConn, loaded chan<- struct{}) {
	var once sync.Once
	for ev := range conn.Events() {
		switch ev.Event {
		case "file-loaded":
			once.Do(func() { close(loaded) })
		case "property-change":
			m.handleProperty(ev)
		case "end-file":
			if ev.Reason == "error" {
				m.notify(Event{Kind: EventError, Err: fmt.Errorf("mpv could not play the file")})
			}
		}
	}
}

func (m *MPV) handleProperty(ev ipcMessage) {
	var on bool
	if err := json.Unmarshal(ev.Data, &on); err != nil {
		return
	}

	switch ev.ID {
	case observePause:
		state := StatePlaying
		if on {
			state = StatePaused
		}
		m.notify(Event{Kind: EventStateChange, State: state})
	case observeEOF:
		if on {
			m.notify(Event{Kind: EventStateChange, State: StateEnded})
		}
	}
}

func (m *MPV) markReady() {
	m.readyOnce.Do(func() {
		m.logger.Debug().Msg("mpv ready")
		m.notify(Event{Kind: EventReady})
	})
}

func (m *MPV) fail(err error) {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return
	}
	m.logger.Error().Err(err).Msg("mpv failed to start")
	m.notify(Event{Kind: EventError, Err: err})
}

func (m *MPV) client() (*ipcConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, ErrDisposed
	}
	if m.conn == nil {
		return nil, ErrNotReady
	}
	return m.conn, nil
}

// withTimeout bounds a command by the configured timeout unless ctx is tighter
func (m *MPV) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.CommandTimeout)
}

func (m *MPV) setProperty(ctx context.Context, name string, value any) error {
	conn, err := m.client()
	if err != nil {
		return err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return conn.SetProperty(ctx, name, value)
}

func (m *MPV) getFloat(ctx context.Context, name string) (float64, error) {
	conn, err := m.client()
	if err != nil {
		return 0, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return conn.GetFloat(ctx, name)
}

func (m *MPV) Play(ctx context.Context) error {
	return m.setProperty(ctx, "pause", false)
}

func (m *MPV) Pause(ctx context.Context) error {
	return m.setProperty(ctx, "pause", true)
}

func (m *MPV) SeekTo(ctx context.Context, seconds float64) error {
	conn, err := m.client()
	if err != nil {
		return err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	_, err = conn.Command(ctx, "seek", seconds, "absolute")
	return err
}

func (m *MPV) Mute(ctx context.Context) error {
	return m.setProperty(ctx, "mute", true)
}

func (m *MPV) Unmute(ctx context.Context) error {
	return m.setProperty(ctx, "mute", false)
}

func (m *MPV) CurrentTime(ctx context.Context) (float64, error) {
	return m.getFloat(ctx, "time-pos")
}

func (m *MPV) Duration(ctx context.Context) (float64, error) {
	return m.getFloat(ctx, "duration")
}

// Destroy kills the process and drops the socket. It does not wait for the
// process to exit.
func (m *MPV) Destroy() error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil
	}
	m.destroyed = true
	conn := m.conn
	cancel := m.cancel
	socket := m.socket
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	if socket != "" {
		util.CleanupFiles(socket)
	}

	m.logger.Debug().Msg("mpv destroyed")
	return nil
}
