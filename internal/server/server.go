package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/trivia-backend/internal/session"
	"github.com/DoyleJ11/trivia-backend/pkg/protocol"
)

var ErrServerClosed = errors.New("server closed")
var ErrPanic = errors.New("panic while handling frame")

type Options struct {
	IdleTimeout   time.Duration
	WriteTimeout  time.Duration
	HighscoreSize int
}

// Server runs one session goroutine per client connection against shared
// account and question state.
type Server struct {
	accounts session.Accounts
	bank     session.Questions
	log      *zap.Logger
	opts     Options

	mu     sync.Mutex
	conns  map[string]Transport
	closed bool
	wg     sync.WaitGroup
}

func New(accts session.Accounts, bank session.Questions, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HighscoreSize <= 0 {
		opts.HighscoreSize = session.DefaultHighscoreSize
	}
	return &Server{
		accounts: accts,
		bank:     bank,
		log:      log,
		opts:     opts,
		conns:    make(map[string]Transport),
	}
}

// Serve accepts TCP connections until ctx is cancelled or the listener fails, then
// closes every live connection and waits for their sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		return nil
	})

	g.Go(func() error {
		s.log.Info("accepting connections", zap.String("addr", ln.Addr().String()))
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			tr := NewTCPTransport(conn, s.opts.IdleTimeout, s.opts.WriteTimeout)
			go func() {
				if err := s.ServeTransport(gctx, tr); err != nil {
					s.log.Warn("connection refused", zap.Error(err))
				}
			}()
		}
	})

	err := g.Wait()
	s.Shutdown()
	return err
}

// Shutdown closes every live connection and waits for their sessions to release
// their accounts. New transports are refused afterwards.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	live := make([]Transport, 0, len(s.conns))
	for _, tr := range s.conns {
		live = append(live, tr)
	}
	s.mu.Unlock()

	for _, tr := range live {
		_ = tr.Close()
	}
	s.wg.Wait()
}

func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(id string, tr Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	s.conns[id] = tr
	s.wg.Add(1)
	return nil
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.wg.Done()
}

// ServeTransport runs the session for tr and returns when the client leaves, the
// session faults, or the server shuts down. tr is always closed on return.
func (s *Server) ServeTransport(ctx context.Context, tr Transport) error {
	connID := uuid.NewString()
	if err := s.track(connID, tr); err != nil {
		_ = tr.Close()
		return err
	}
	defer s.untrack(connID)

	log := s.log.With(zap.String("conn", connID), zap.String("remote", tr.RemoteAddr()))
	log.Info("connected")

	m := session.New(connID, s.accounts, s.bank)
	m.SetHighscoreSize(s.opts.HighscoreSize)
	defer func() {
		if err := m.Close(ctx); err != nil {
			log.Warn("release session", zap.Error(err))
		}
		_ = tr.Close()
		log.Info("disconnected", zap.String("user", m.Username()))
	}()

	for {
		f, err := tr.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				log.Debug("malformed frame", zap.Error(err))
				if werr := tr.WriteFrame(ctx, session.ErrorFrame(err)); werr != nil {
					return nil
				}
				if errors.Is(err, protocol.ErrDesync) {
					return nil
				}
				continue
			}
			if !isDisconnect(err) {
				log.Warn("read frame", zap.Error(err))
			}
			return nil
		}

		frames, err := s.handle(ctx, m, f)
		for _, out := range frames {
			if werr := tr.WriteFrame(ctx, out); werr != nil {
				log.Debug("write frame", zap.Error(werr))
				return nil
			}
		}
		if err != nil {
			if !session.IsRejection(err) {
				log.Error("session fault", zap.Stringer("frame", f), zap.Error(err))
				return nil
			}
			log.Debug("rejected", zap.Stringer("frame", f), zap.Error(err))
		}
		if m.Terminated() {
			return nil
		}
	}
}

func (s *Server) handle(ctx context.Context, m *session.Machine, f protocol.Frame) (frames []protocol.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frames = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return m.Handle(ctx, f)
}
