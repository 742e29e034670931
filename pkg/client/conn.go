package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"nhooyr.io/websocket"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

type conn interface {
	send(ctx context.Context, f protocol.Frame) error
	recv(ctx context.Context) (protocol.Frame, error)
	close() error
}

type tcpConn struct {
	c net.Conn
	r *protocol.Reader
}

func (t *tcpConn) send(ctx context.Context, f protocol.Frame) error {
	dl, _ := ctx.Deadline()
	_ = t.c.SetWriteDeadline(dl)
	return protocol.WriteFrame(t.c, f)
}

func (t *tcpConn) recv(ctx context.Context) (protocol.Frame, error) {
	dl, _ := ctx.Deadline()
	_ = t.c.SetReadDeadline(dl)
	return t.r.ReadFrame()
}

func (t *tcpConn) close() error { return t.c.Close() }

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) send(ctx context.Context, f protocol.Frame) error {
	b, err := protocol.Encode(f.Command, f.Payload)
	if err != nil {
		return err
	}
	return w.c.Write(ctx, websocket.MessageText, b)
}

func (w *wsConn) recv(ctx context.Context) (protocol.Frame, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.Decode(data)
}

func (w *wsConn) close() error { return w.c.Close(websocket.StatusNormalClosure, "bye") }

// Dial connects to the trivia protocol port at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: &tcpConn{c: c, r: protocol.NewReader(c)}}, nil
}

// DialWebSocket connects to the server's /ws endpoint, e.g. ws://host:8080/ws.
func DialWebSocket(ctx context.Context, url string) (*Client, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: &wsConn{c: c}}, nil
}

func isClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
