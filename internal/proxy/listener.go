// Package proxy implements the per-connection Minecraft handshake/login
// state machine, the three routing modes, MOTD handling, and the
// hidden-mode encryption mediator.
package proxy

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"mcredirect/internal/config"
)

// Listener accepts downstream connections and wires each one to a new
// Session. It owns the process-wide Configuration.
type Listener struct {
	cfg config.Config
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// New constructs a Listener for cfg.
func New(cfg config.Config, log zerolog.Logger) *Listener {
	return &Listener{
		cfg:      cfg,
		log:      log,
		sessions: make(map[*Session]struct{}),
	}
}

// Serve accepts connections on cfg.ListenAddr:ListenPort until ctx is
// canceled or Accept returns a non-temporary error.
func (l *Listener) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(l.cfg.ListenAddr, strconv.Itoa(l.cfg.ListenPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	l.log.Info().Str("addr", addr).Str("mode", string(l.cfg.Mode)).Msg("listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				l.log.Warn().Err(err).Msg("accept failed")
				continue
			}
			return err
		}
		s := newSession(conn, l.cfg, l.log)
		l.track(s)
		go func() {
			defer l.untrack(s)
			s.run(ctx)
		}()
	}
}

func (l *Listener) track(s *Session) {
	l.mu.Lock()
	l.sessions[s] = struct{}{}
	l.mu.Unlock()
}

func (l *Listener) untrack(s *Session) {
	l.mu.Lock()
	delete(l.sessions, s)
	l.mu.Unlock()
}
