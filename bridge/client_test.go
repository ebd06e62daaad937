package bridge

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// script runs a fake companion on the far end of a pipe. Each handler gets
// one request and returns the response to send; a nil response hangs up.
func script(t *testing.T, handlers ...func(*Message) *Message) (*Client, <-chan []*Message) {
	t.Helper()
	near, far := net.Pipe()
	seen := make(chan []*Message, 1)
	go func() {
		defer far.Close()
		var got []*Message
		defer func() { seen <- got }()
		r := bufio.NewReader(far)
		for _, h := range handlers {
			req, err := ReadFrame(r, 0)
			if err != nil {
				return
			}
			got = append(got, req)
			resp := h(req)
			if resp == nil {
				return
			}
			if err := WriteFrame(far, resp); err != nil {
				return
			}
		}
	}()
	c := NewClient(near)
	t.Cleanup(func() { c.Release() })
	return c, seen
}

func reply(kind Kind, v int64) func(*Message) *Message {
	return func(*Message) *Message { return &Message{Kind: kind, Int: v} }
}

func TestClientRequests(t *testing.T) {
	c, seen := script(t,
		reply(KindAck, 0),
		reply(KindReadIntAns, -5),
		reply(KindReadASCIIAns, 'q'),
		reply(KindRandomAns, 3),
		reply(KindDivByZeroAns, 11),
		reply(KindModByZeroAns, 12),
		reply(KindAck, 0),
		reply(KindAck, 0),
	)

	if err := c.PrintInt(9); err != nil {
		t.Fatalf("PrintInt: %v", err)
	}
	if v, err := c.ReadInt(); err != nil || v != -5 {
		t.Fatalf("ReadInt = %d, %v", v, err)
	}
	if v, err := c.ReadASCII(); err != nil || v != 'q' {
		t.Fatalf("ReadASCII = %d, %v", v, err)
	}
	if v, err := c.Random(); err != nil || v != 3 {
		t.Fatalf("Random = %d, %v", v, err)
	}
	if v, err := c.DivByZero(8, 0); err != nil || v != 11 {
		t.Fatalf("DivByZero = %d, %v", v, err)
	}
	if v, err := c.ModByZero(7, 0); err != nil || v != 12 {
		t.Fatalf("ModByZero = %d, %v", v, err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := c.Close(true); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := <-seen
	want := []string{
		"PrintInt(9)", "ReadInt", "ReadASCII", "Random",
		"DivByZero(8,0)", "ModByZero(7,0)", "Flush", "Close(shutdown=true)",
	}
	if len(got) != len(want) {
		t.Fatalf("companion saw %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("request %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestClientRequestAfterClose(t *testing.T) {
	c, _ := script(t, reply(KindAck, 0))
	if err := c.Close(false); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := c.PrintInt(1)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Request != KindPrintInt {
		t.Errorf("err = %v, want *ProtocolError for PrintInt", err)
	}
}

func TestClientNack(t *testing.T) {
	c, _ := script(t, func(*Message) *Message {
		return &Message{Kind: KindNack, Text: "input closed"}
	})
	_, err := c.ReadInt()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
	if !strings.Contains(pe.Reason, "input closed") {
		t.Errorf("reason = %q", pe.Reason)
	}
	// The session is unusable afterwards.
	if err := c.Flush(); err == nil || !strings.Contains(err.Error(), "session failed earlier") {
		t.Errorf("request after failure = %v", err)
	}
}

func TestClientWrongResponseKind(t *testing.T) {
	c, _ := script(t, reply(KindAck, 0))
	_, err := c.ReadInt()
	var pe *ProtocolError
	if !errors.As(err, &pe) || !strings.Contains(pe.Reason, "unexpected response Ack") {
		t.Errorf("err = %v, want unexpected response", err)
	}
}

func TestClientDisconnect(t *testing.T) {
	c, _ := script(t, func(*Message) *Message { return nil })
	err := c.PrintASCII('x')
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
	if pe.Reason != "companion disconnected" {
		t.Errorf("reason = %q, want companion disconnected", pe.Reason)
	}
}

func TestClientRandomOutOfRange(t *testing.T) {
	c, _ := script(t, reply(KindRandomAns, 4))
	if _, err := c.Random(); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("err = %v, want out of range", err)
	}
}

func TestClientReleaseUnblocksRequest(t *testing.T) {
	near, far := net.Pipe()
	defer far.Close()
	go func() {
		// Swallow the request and never answer.
		ReadFrame(far, 0)
	}()

	c := NewClient(near)
	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadInt()
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	c.Release()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Release did not unblock the pending request")
	}
	if err := c.Release(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.Errorf("second Release = %v", err)
	}
}

func TestDialUnixSocket(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "io.sock")
	ln, err := Listen(endpoint)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			req, err := ReadFrame(r, 0)
			if err != nil {
				return
			}
			want, _ := req.Kind.Reply()
			WriteFrame(conn, &Message{Kind: want, Int: 2})
		}
	}()

	c, err := Dial(context.Background(), endpoint, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if v, err := c.Random(); err != nil || v != 2 {
		t.Errorf("Random = %d, %v", v, err)
	}
	if err := c.Close(false); err != nil {
		t.Errorf("Close: %v", err)
	}
}
