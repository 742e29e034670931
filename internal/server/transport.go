package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

// Transport carries frames for one client connection. ReadFrame and WriteFrame are
// only called from the connection's own goroutine; Close may be called from any.
type Transport interface {
	ReadFrame(ctx context.Context) (protocol.Frame, error)
	WriteFrame(ctx context.Context, f protocol.Frame) error
	Close() error
	RemoteAddr() string
}

type tcpTransport struct {
	conn         net.Conn
	r            *protocol.Reader
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

func NewTCPTransport(conn net.Conn, idleTimeout, writeTimeout time.Duration) Transport {
	return &tcpTransport{
		conn:         conn,
		r:            protocol.NewReader(conn),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

func (t *tcpTransport) ReadFrame(_ context.Context) (protocol.Frame, error) {
	if t.idleTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout))
	}
	return t.r.ReadFrame()
}

func (t *tcpTransport) WriteFrame(_ context.Context, f protocol.Frame) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return protocol.WriteFrame(t.conn, f)
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// isDisconnect reports whether err is an ordinary end of the connection.
func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
