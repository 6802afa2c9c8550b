package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

const ipcEventBuffer = 64

// ipcRequest is one mpv JSON IPC command
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is any line mpv writes: a command reply or an event
type ipcMessage struct {
	// replies
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`

	// events
	Event  string `json:"event"`
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (m ipcMessage) isEvent() bool {
	return m.Event != ""
}

// ipcConn multiplexes mpv commands and events over one socket
type ipcConn struct {
	conn net.Conn

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage

	events    chan ipcMessage
	closed    chan struct{}
	closeOnce sync.Once
}

// dialIPC connects to the mpv socket, retrying until ctx expires. mpv creates
// the socket some time after the process starts.
func dialIPC(ctx context.Context, path string) (*ipcConn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return newIPCConn(conn), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial mpv ipc %s: %w", path, err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func newIPCConn(conn net.Conn) *ipcConn {
	c := &ipcConn{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		pending: make(map[int64]chan ipcMessage),
		events:  make(chan ipcMessage, ipcEventBuffer),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events delivers mpv events in order. The channel closes with the connection.
func (c *ipcConn) Events() <-chan ipcMessage {
	return c.events
}

// Closed is closed once the connection is gone
func (c *ipcConn) Closed() <-chan struct{} {
	return c.closed
}

func (c *ipcConn) readLoop() {
	defer close(c.events)
	defer c.Close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		if msg.isEvent() {
			select {
			case c.events <- msg:
			case <-c.closed:
				return
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// Command sends a command and waits for its reply
func (c *ipcConn) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	ch := make(chan ipcMessage, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.enc.Encode(ipcRequest{Command: args, RequestID: id})
	c.writeMu.Unlock()
	if err != nil {
		select {
		case <-c.closed:
			return nil, ErrPlayerExited
		default:
		}
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("mpv %v: %w", args[0], ErrCommandTimeout)
		}
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrPlayerExited
	}
}

// GetFloat reads a numeric property
func (c *ipcConn) GetFloat(ctx context.Context, name string) (float64, error) {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return 0, err
	}
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("decode %s: %w", name, err)
	}
	if v == nil {
		return 0, fmt.Errorf("mpv property %s unavailable", name)
	}
	return *v, nil
}

// SetProperty writes a property
func (c *ipcConn) SetProperty(ctx context.Context, name string, value any) error {
	_, err := c.Command(ctx, "set_property", name, value)
	return err
}

// Observe subscribes to property-change events for name, tagged with id
func (c *ipcConn) Observe(ctx context.Context, id int64, name string) error {
	_, err := c.Command(ctx, "observe_property", id, name)
	return err
}

// Close tears down the connection. Safe to call more than once.
func (c *ipcConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
