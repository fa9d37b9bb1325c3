// Package telemetry manages the websocket to the IMU device and turns its frames into samples.
//
// All state lives on the event loop goroutine: Connect, Disconnect, Send and the
// OnStateChange/OnSample callbacks run there. The dialer and the frame reader run on their own
// goroutines and hand results back with eventloop.Dispatcher.Post.
package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gyroview/internal/eventloop"
	"gyroview/internal/logger"
)

// DefaultPort is the websocket port served by the device firmware.
const DefaultPort = 81

const (
	defaultDialTimeout = 5 * time.Second
	writeTimeout       = 250 * time.Millisecond
	closeGrace         = 100 * time.Millisecond
)

// Commands understood by the device.
const (
	CommandStatus = "status"
	CommandReset  = "reset"
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Channel is the device connection. It holds at most one session; a new Connect replaces it.
type Channel struct {
	dialer  Dialer
	loop    eventloop.Dispatcher
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time

	// OnStateChange is called after every transition. err is set when the transition was caused
	// by a transport failure (Failed, and the Disconnected that follows it).
	OnStateChange func(state ConnectionState, err error)
	// OnSample receives the newest decoded sample while Connected.
	OnSample func(SensorSample)

	state ConnectionState
	sess  *session

	received atomic.Uint64
	dropped  atomic.Uint64
}

// session is one dial attempt and, once open, its connection. The latest-sample mailbox is the
// only field shared with the reader goroutine.
type session struct {
	url    string
	cancel context.CancelFunc
	conn   *websocket.Conn

	mu      sync.Mutex
	latest  SensorSample
	pending bool
}

// offer stores s as the newest sample and reports whether a delivery must be scheduled.
func (s *session) offer(sample SensorSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = sample
	if s.pending {
		return false
	}
	s.pending = true
	return true
}

func (s *session) take() SensorSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	return s.latest
}

// NewChannel returns a disconnected channel. A nil dialer uses websocket.DefaultDialer.
func NewChannel(dialer Dialer, loop eventloop.Dispatcher, log *logger.Logger) *Channel {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Channel{
		dialer:  dialer,
		loop:    loop,
		log:     log,
		timeout: defaultDialTimeout,
		now:     time.Now,
	}
}

// SetDialTimeout bounds how long Connecting may last before the attempt fails.
func (c *Channel) SetDialTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	return c.state
}

// URL returns the endpoint of the current session, or "" when there is none.
func (c *Channel) URL() string {
	if c.sess == nil {
		return ""
	}
	return c.sess.url
}

// SamplesReceived is the running count of frames decoded into samples. Safe from any goroutine.
func (c *Channel) SamplesReceived() uint64 {
	return c.received.Load()
}

// Dropped is the running count of frames discarded by Decode. Safe from any goroutine.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// URL builds ws://address:port. Port 0 selects DefaultPort; a leading ws:// on address is accepted.
func URL(address string, port int) (string, error) {
	address = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(address), "ws://"), "/")
	if address == "" {
		return "", fmt.Errorf("telemetry: empty device address")
	}
	if host, p, err := net.SplitHostPort(address); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("telemetry: bad port in %q", address)
		}
		address, port = host, n
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("telemetry: port %d out of range", port)
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, strconv.Itoa(port))}
	return u.String(), nil
}

// Connect starts dialing ws://address:port and moves to Connecting. Any open session is closed
// first. The outcome arrives later through OnStateChange; the only synchronous error is an
// unusable address. On open the channel sends "status" to request an initial state dump.
func (c *Channel) Connect(address string, port int) error {
	target, err := URL(address, port)
	if err != nil {
		return err
	}
	c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	s := &session{url: target, cancel: cancel}
	c.sess = s
	c.log.Logf("connecting to %s", target)
	c.setState(Connecting, nil)

	go func() {
		conn, _, err := c.dialer.DialContext(ctx, target, nil)
		c.loop.Post(func() { c.opened(s, conn, err) })
	}()
	return nil
}

// Disconnect closes the session, if any, and moves to Disconnected. Safe to call repeatedly.
func (c *Channel) Disconnect() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	s.cancel()
	if s.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		_ = s.conn.Close()
	}
	c.log.Logf("disconnected from %s", s.url)
	c.setState(Disconnected, nil)
}

// Send writes command as a text frame. Outside Connected it logs a warning and returns ErrNotConnected.
func (c *Channel) Send(command string) error {
	s := c.sess
	if c.state != Connected || s == nil || s.conn == nil {
		c.log.Warnf("cannot send %q: not connected", command)
		return ErrNotConnected
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(command)); err != nil {
		return &TransportError{Op: "write", URL: s.url, Err: err}
	}
	c.log.Logf("sent %q", command)
	return nil
}

func (c *Channel) opened(s *session, conn *websocket.Conn, err error) {
	s.cancel()
	if c.sess != s {
		// superseded by Disconnect or a newer Connect while dialing
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.fail(s, &TransportError{Op: "dial", URL: s.url, Err: err})
		return
	}
	s.conn = conn
	c.log.Logf("connected to %s", s.url)
	c.setState(Connected, nil)
	go c.read(s)
	if err := c.Send(CommandStatus); err != nil {
		c.log.Warnf("status request: %v", err)
	}
}

func (c *Channel) read(s *session) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			c.loop.Post(func() { c.closed(s, err) })
			return
		}
		sample, err := Decode(msg, c.now())
		if err != nil {
			c.dropped.Add(1)
			c.log.Warnf("dropping frame: %v", err)
			continue
		}
		c.received.Add(1)
		if s.offer(sample) {
			c.loop.Post(func() { c.deliver(s) })
		}
	}
}

func (c *Channel) deliver(s *session) {
	sample := s.take()
	if c.sess != s || c.state != Connected {
		return
	}
	if c.OnSample != nil {
		c.OnSample(sample)
	}
}

func (c *Channel) closed(s *session, err error) {
	if c.sess != s {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.sess = nil
		_ = s.conn.Close()
		c.log.Logf("%s closed by device", s.url)
		c.setState(Disconnected, nil)
		return
	}
	c.fail(s, &TransportError{Op: "read", URL: s.url, Err: err})
}

func (c *Channel) fail(s *session, err error) {
	if c.sess == s {
		c.sess = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	c.log.Errorf("%v", err)
	c.setState(Failed, err)
	c.setState(Disconnected, err)
}

func (c *Channel) setState(state ConnectionState, err error) {
	if c.state == state && err == nil {
		return
	}
	c.state = state
	if c.OnStateChange != nil {
		c.OnStateChange(state, err)
	}
}
