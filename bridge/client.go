package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("funge.bridge")

// Client is the interpreter side of a bridge session. Requests are strictly
// sequential: a request is written, flushed, and its single response read
// before the next request may start.
type Client struct {
	mu       sync.Mutex
	conn     io.ReadWriteCloser
	r        *bufio.Reader
	w        *bufio.Writer
	maxFrame int
	broken   error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxFrame sets the largest response frame the client will accept.
func WithMaxFrame(n int) ClientOption {
	return func(c *Client) { c.maxFrame = n }
}

// NewClient wraps an established connection.
func NewClient(conn io.ReadWriteCloser, opts ...ClientOption) *Client {
	c := &Client{
		conn:     conn,
		r:        bufio.NewReader(conn),
		w:        bufio.NewWriter(conn),
		maxFrame: DefaultMaxFrame,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the companion listening on endpoint. A non-zero timeout
// bounds connection establishment only; requests never time out here.
func Dial(ctx context.Context, endpoint string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := DialConn(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	log.Infof("connected to %s", ParseEndpoint(endpoint))
	return NewClient(conn, opts...), nil
}

// Request sends req and blocks for its response, which is checked against
// the kind req requires.
func (c *Client) Request(req *Message) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, &ProtocolError{Request: req.Kind, Reason: "request after close", Err: ErrClosed}
	}
	if c.broken != nil {
		return nil, &ProtocolError{Request: req.Kind, Reason: "session failed earlier", Err: c.broken}
	}
	want, ok := req.Kind.Reply()
	if !ok {
		return nil, &ProtocolError{Request: req.Kind, Reason: "not a request kind"}
	}

	resp, err := c.exchange(req)
	if err != nil {
		if c.closed.Load() {
			err.Err = errors.Join(ErrClosed, err.Err)
		}
		c.broken = err
		return nil, err
	}
	switch resp.Kind {
	case want:
		return resp, nil
	case KindNack:
		err = &ProtocolError{Request: req.Kind, Reason: fmt.Sprintf("rejected by companion: %s", resp.Text)}
	default:
		err = &ProtocolError{Request: req.Kind, Reason: fmt.Sprintf("unexpected response %s, want %s", resp, want)}
	}
	c.broken = err
	return nil, err
}

func (c *Client) exchange(req *Message) (*Message, *ProtocolError) {
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("-> %s", req)
	}
	if err := WriteFrame(c.w, req); err != nil {
		return nil, &ProtocolError{Request: req.Kind, Reason: "write failed", Err: err}
	}
	if err := c.w.Flush(); err != nil {
		return nil, &ProtocolError{Request: req.Kind, Reason: "write failed", Err: err}
	}
	resp, err := ReadFrame(c.r, c.maxFrame)
	if err != nil {
		reason := "read failed"
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
			reason = "companion disconnected"
		}
		return nil, &ProtocolError{Request: req.Kind, Reason: reason, Err: err}
	}
	if log.AllowLevel(commonlog.Debug) {
		log.Debugf("<- %s", resp)
	}
	return resp, nil
}

// PrintInt asks the companion to print v as a decimal integer.
func (c *Client) PrintInt(v int64) error {
	_, err := c.Request(&Message{Kind: KindPrintInt, Int: v})
	return err
}

// PrintASCII asks the companion to print one character.
func (c *Client) PrintASCII(ch byte) error {
	_, err := c.Request(&Message{Kind: KindPrintASCII, Int: int64(ch)})
	return err
}

// ReadInt asks the companion for an integer from the user.
func (c *Client) ReadInt() (int64, error) {
	resp, err := c.Request(&Message{Kind: KindReadInt})
	if err != nil {
		return 0, err
	}
	return resp.Int, nil
}

// ReadASCII asks the companion for one character from the user.
func (c *Client) ReadASCII() (byte, error) {
	resp, err := c.Request(&Message{Kind: KindReadASCII})
	if err != nil {
		return 0, err
	}
	if resp.Int < 0 || resp.Int > 255 {
		return 0, c.fail(&ProtocolError{Request: KindReadASCII, Reason: fmt.Sprintf("character %d out of range", resp.Int)})
	}
	return byte(resp.Int), nil
}

// Random asks the companion for a direction index in [0,4).
func (c *Client) Random() (int, error) {
	resp, err := c.Request(&Message{Kind: KindRandom})
	if err != nil {
		return 0, err
	}
	if resp.Int < 0 || resp.Int > 3 {
		return 0, c.fail(&ProtocolError{Request: KindRandom, Reason: fmt.Sprintf("direction %d out of range", resp.Int)})
	}
	return int(resp.Int), nil
}

// DivByZero asks the companion what a/b should evaluate to when b is zero.
func (c *Client) DivByZero(a, b int64) (int64, error) {
	resp, err := c.Request(&Message{Kind: KindDivByZero, A: a, B: b})
	if err != nil {
		return 0, err
	}
	return resp.Int, nil
}

// ModByZero asks the companion what a%b should evaluate to when b is zero.
func (c *Client) ModByZero(a, b int64) (int64, error) {
	resp, err := c.Request(&Message{Kind: KindModByZero, A: a, B: b})
	if err != nil {
		return 0, err
	}
	return resp.Int, nil
}

// Flush asks the companion to write out any buffered output.
func (c *Client) Flush() error {
	_, err := c.Request(&Message{Kind: KindFlush})
	return err
}

// Debug sends one line of diagnostic text.
func (c *Client) Debug(text string) error {
	_, err := c.Request(&Message{Kind: KindDebug, Text: text})
	return err
}

// Close ends the session. After the companion acknowledges, the connection
// is released and every further request fails with ErrClosed.
func (c *Client) Close(shutdown bool) error {
	_, err := c.Request(&Message{Kind: KindClose, Shutdown: shutdown})
	if rerr := c.Release(); err == nil && rerr != nil && !errors.Is(rerr, net.ErrClosed) {
		err = rerr
	}
	return err
}

// Release drops the connection without a Close exchange. It may be called
// from another goroutine to abort a request that is blocked on the
// companion, and is safe to call more than once.
func (c *Client) Release() error {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.broken = err
	c.mu.Unlock()
	return err
}
