package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mcredirect/internal/addr"
	"mcredirect/internal/config"
	"mcredirect/internal/protocol"
	"mcredirect/internal/upstream"
)

// phase is the framed-protocol state: handshake, status, login, the
// hidden-only awaiting_login state, and the terminal splice state.
type phase int

const (
	phaseHandshake phase = iota
	phaseStatus
	phaseLogin
	phaseAwaitingLogin
	phaseSplice
)

var errProtocolViolation = errors.New("proxy: protocol violation")

// Session is the per-downstream-connection state machine.
//
// The whole framed state machine runs synchronously on a single
// goroutine per connection: between suspension points (a blocking read,
// a dial, an SRV lookup) all logic runs to completion, so session state
// is never touched from two goroutines at once. Before splice, the only
// background goroutine a Session starts is the SRV resolution lookup,
// which reports back through resolvedCh; runSplice then runs one copy
// goroutine per direction.
type Session struct {
	conn net.Conn
	cfg  config.Config
	log  zerolog.Logger

	frames          *protocol.FrameReader
	mode            phase
	loginExpecting  int
	protocolVersion int32

	preSRVHost string
	preSRVPort int
	resolvedCh chan upstream.ResolvedAddress
	resolved   *upstream.ResolvedAddress

	loginStartBody []byte

	primary *upstream.Conn
	sidecar *upstream.Conn

	closeOnce sync.Once
}

func newSession(conn net.Conn, cfg config.Config, log zerolog.Logger) *Session {
	return &Session{
		conn:       conn,
		cfg:        cfg,
		log:        log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		frames:     protocol.NewFrameReader(conn),
		mode:       phaseHandshake,
		resolvedCh: make(chan upstream.ResolvedAddress, 1),
	}
}

// run drives the session until the connection closes, a protocol
// violation occurs, routing fails, or splice mode is entered (at which
// point run hands off to runSplice and returns once that completes).
func (s *Session) run(ctx context.Context) {
	defer s.closeAll()

	for {
		s.armIdleDeadline()

		pkt, err := s.frames.ReadPacket()
		if err != nil {
			if isTimeout(err) {
				s.log.Info().Msg("idle timeout")
			}
			return
		}

		if err := s.handleDownstreamPacket(ctx, pkt); err != nil {
			s.log.Info().Err(err).Msg("closing session")
			return
		}
		if s.mode == phaseSplice {
			_ = s.conn.SetReadDeadline(time.Time{})
			s.runSplice(ctx)
			return
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// armIdleDeadline rearms the idle timer ahead of the next read; any
// data event restarts it.
func (s *Session) armIdleDeadline() {
	if d := s.cfg.IdleTimeout; d > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// handleDownstreamPacket dispatches a client packet according to the
// current phase.
func (s *Session) handleDownstreamPacket(ctx context.Context, pkt *protocol.Packet) error {
	switch s.mode {
	case phaseHandshake:
		return s.handleHandshake(ctx, pkt)
	case phaseStatus:
		return s.handleStatusPacket(ctx, pkt)
	case phaseLogin:
		return s.handleLoginPacket(ctx, pkt)
	case phaseAwaitingLogin:
		return s.handleAwaitingLoginPacket(ctx, pkt)
	default:
		return errProtocolViolation
	}
}

func (s *Session) handleHandshake(ctx context.Context, pkt *protocol.Packet) error {
	if pkt.ID != protocol.PacketHandshake {
		return errProtocolViolation
	}
	hs, err := protocol.ParseHandshake(pkt.Body)
	if err != nil {
		return errProtocolViolation
	}
	s.protocolVersion = hs.ProtocolVersion

	if err := s.route(ctx, hs); err != nil {
		return err
	}

	switch hs.NextState {
	case protocol.NextStateStatus:
		s.mode = phaseStatus
	case protocol.NextStateLogin:
		s.mode = phaseLogin
	default:
		return errProtocolViolation
	}
	return nil
}

// route picks the upstream target(s) for this session's configured
// mode, and (for non-hidden modes) schedules SRV resolution against the
// chosen target.
func (s *Session) route(ctx context.Context, hs *protocol.Handshake) error {
	switch s.cfg.Mode {
	case config.ModePassThroughDedicated:
		s.preSRVHost, s.preSRVPort = s.cfg.PrimaryHost, s.cfg.PrimaryPort

	case config.ModePassThroughByDomain:
		host, port, err := addr.Decode(hs.ServerAddress, s.cfg.ServerDomain)
		if err != nil {
			s.log.Info().Err(err).Str("requested", hs.ServerAddress).Msg("address decode failed")
			return err // closes the connection with no reply
		}
		s.preSRVHost, s.preSRVPort = host, port

	case config.ModeHidden:
		s.preSRVHost, s.preSRVPort = s.cfg.PrimaryHost, s.cfg.PrimaryPort
		// The sidecar target is fixed configuration; no domain decoding
		// or SRV lookup happens for it.
		s.resolved = &upstream.ResolvedAddress{Host: s.preSRVHost, Port: uint16(s.preSRVPort)}
		return nil
	}

	go s.resolveSRV(ctx)
	return nil
}

func (s *Session) resolveSRV(ctx context.Context) {
	if resolved, ok := upstream.ResolveSRV(ctx, s.preSRVHost, s.preSRVPort, s.cfg.SRVTimeout); ok {
		s.resolvedCh <- resolved
		return
	}
	s.resolvedCh <- upstream.ResolvedAddress{Host: s.preSRVHost, Port: uint16(s.preSRVPort)}
}

// resolveTarget blocks until SRV resolution (if any) has completed; the
// dial always happens after resolution, never before it.
func (s *Session) resolveTarget(ctx context.Context) (upstream.ResolvedAddress, error) {
	if s.resolved != nil {
		return *s.resolved, nil
	}
	select {
	case r := <-s.resolvedCh:
		s.resolved = &r
		return r, nil
	case <-ctx.Done():
		return upstream.ResolvedAddress{}, ctx.Err()
	}
}

func (s *Session) handleStatusPacket(ctx context.Context, pkt *protocol.Packet) error {
	switch pkt.ID {
	case protocol.PacketStatusRequest:
		return s.handleStatusRequest(ctx)
	case protocol.PacketStatusPing:
		// Default echo: reflect the ping payload back unchanged.
		return protocol.WritePacket(s.conn, protocol.PacketStatusPing, pkt.Body)
	default:
		return errProtocolViolation
	}
}

func (s *Session) handleStatusRequest(ctx context.Context) error {
	if !s.cfg.SyncMOTD {
		return writeSynthesizedStatus(s.conn, s.protocolVersion, s.cfg.MOTDDefault)
	}

	target, err := s.resolveTarget(ctx)
	if err != nil {
		return err
	}

	conn, err := upstream.Dial(ctx, "tcp", target.Host, int(target.Port), s.preSRVHost, uint16(s.preSRVPort), s.protocolVersion, upstream.KindStatus, s.cfg.ConnTimeout)
	if err != nil {
		s.log.Warn().Err(err).Msg("motd sync: upstream_connect_failed")
		return err
	}
	defer conn.Close()
	if d := s.cfg.ConnTimeout; d > 0 {
		_ = conn.SetDeadline(time.Now().Add(d))
	}

	if err := protocol.WritePacket(conn, protocol.PacketStatusRequest, nil); err != nil {
		return err
	}
	resp, err := conn.Frames.ReadPacket()
	if err != nil {
		s.log.Warn().Err(err).Msg("motd sync: upstream_closed_prematurely")
		return err
	}
	return protocol.WritePacket(s.conn, protocol.PacketStatusResponse, resp.Body)
}

func (s *Session) handleLoginPacket(ctx context.Context, pkt *protocol.Packet) error {
	if pkt.ID != protocol.PacketLoginStart {
		return errProtocolViolation
	}
	if s.loginExpecting != 0 {
		return errProtocolViolation
	}
	s.loginExpecting = 1
	s.loginStartBody = append([]byte(nil), pkt.Body...)

	if s.cfg.Mode == config.ModeHidden {
		return s.startHiddenLogin(ctx)
	}
	return s.startPassThroughLogin(ctx)
}

// startPassThroughLogin dials the primary upstream (waiting on SRV
// resolution if still pending), replays login_start, then enters
// splice.
func (s *Session) startPassThroughLogin(ctx context.Context) error {
	target, err := s.resolveTarget(ctx)
	if err != nil {
		return err
	}

	conn, err := upstream.Dial(ctx, "tcp", target.Host, int(target.Port), s.preSRVHost, uint16(s.preSRVPort), s.protocolVersion, upstream.KindLogin, s.cfg.ConnTimeout)
	if err != nil {
		s.log.Warn().Err(err).Msg("upstream_connect_failed")
		return err
	}
	if err := protocol.WritePacket(conn, protocol.PacketLoginStart, s.loginStartBody); err != nil {
		conn.Close()
		return err
	}

	s.primary = conn
	s.mode = phaseSplice
	return nil
}

// runSplice is the terminal action of the state machine: from here on
// bytes are copied verbatim in both directions, with no further codec
// involvement.
func (s *Session) runSplice(ctx context.Context) {
	primary := s.primary
	if primary == nil {
		return
	}
	_ = s.conn.SetDeadline(time.Time{})
	_ = primary.SetDeadline(time.Time{})

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := io.Copy(primary, s.frames.Underlying())
		_ = primary.Close()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(s.conn, primary)
		_ = s.conn.Close()
		return err
	})
	_ = g.Wait()
}

func (s *Session) closeAll() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		if s.primary != nil {
			_ = s.primary.Close()
		}
		if s.sidecar != nil {
			_ = s.sidecar.Close()
		}
	})
}
