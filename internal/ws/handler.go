package ws

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/trivia-backend/internal/server"
	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

type Options struct {
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

// Handler upgrades the request and runs a session over it. Each text message
// carries exactly one frame in both directions.
func Handler(srv *server.Server, log *zap.Logger, opts Options) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept", zap.Error(err))
			return
		}
		conn.SetReadLimit(protocol.MaxCommandSize + protocol.LengthWidth + 2 + protocol.MaxPayloadSize)

		tr := &transport{conn: conn, remote: r.RemoteAddr, opts: opts}
		if err := srv.ServeTransport(r.Context(), tr); err != nil {
			log.Debug("websocket session refused", zap.Error(err))
		}
	}
}

type transport struct {
	conn   *websocket.Conn
	remote string
	opts   Options
}

func (t *transport) ReadFrame(ctx context.Context) (protocol.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.IdleTimeout)
	defer cancel()

	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return protocol.Frame{}, io.EOF
		}
		return protocol.Frame{}, err
	}
	if typ != websocket.MessageText {
		return protocol.Frame{}, fmt.Errorf("%w: binary message", protocol.ErrMalformed)
	}
	return protocol.Decode(data)
}

func (t *transport) WriteFrame(ctx context.Context, f protocol.Frame) error {
	b, err := protocol.Encode(f.Command, f.Payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, t.opts.WriteTimeout)
	defer cancel()
	return t.conn.Write(ctx, websocket.MessageText, b)
}

func (t *transport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (t *transport) RemoteAddr() string { return t.remote }
