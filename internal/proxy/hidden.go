package proxy

import (
	"context"
	"time"

	"mcredirect/internal/protocol"
	"mcredirect/internal/upstream"
)

// startHiddenLogin dials the sidecar, replays login_start to it, then
// blocks for its login_encryption_request and relays that to the
// client.
func (s *Session) startHiddenLogin(ctx context.Context) error {
	sidecar, err := upstream.Dial(ctx, "tcp", s.cfg.SidecarHost, s.cfg.SidecarPort, s.cfg.SidecarHost, uint16(s.cfg.SidecarPort), s.protocolVersion, upstream.KindLogin, s.cfg.ConnTimeout)
	if err != nil {
		s.log.Warn().Err(err).Msg("hidden: sidecar upstream_connect_failed")
		return err
	}
	if err := protocol.WritePacket(sidecar, protocol.PacketLoginStart, s.loginStartBody); err != nil {
		sidecar.Close()
		return err
	}
	s.sidecar = sidecar

	if d := s.cfg.IdleTimeout; d > 0 {
		_ = sidecar.SetReadDeadline(time.Now().Add(d))
	}
	req, err := sidecar.Frames.ReadPacket()
	if err != nil {
		s.log.Warn().Err(err).Msg("hidden: sidecar upstream_closed_prematurely")
		return err
	}
	if req.ID != protocol.PacketEncryptionRequest {
		return errProtocolViolation
	}
	if err := protocol.WritePacket(s.conn, protocol.PacketEncryptionRequest, req.Body); err != nil {
		return err
	}

	s.mode = phaseAwaitingLogin
	return nil
}

// handleAwaitingLoginPacket forwards the client's
// login_encryption_response verbatim to the sidecar, which has now
// served its purpose: no further bytes from it are read.
func (s *Session) handleAwaitingLoginPacket(ctx context.Context, pkt *protocol.Packet) error {
	if pkt.ID != protocol.PacketEncryptionResp {
		return errProtocolViolation
	}
	if err := protocol.WritePacket(s.sidecar, protocol.PacketEncryptionResp, pkt.Body); err != nil {
		return err
	}
	// The sidecar validated the client's shared-secret exchange; it must
	// not be allowed to complete login_success and bind the session to
	// it. Close it now rather than continuing to poll it for bytes we'd
	// only discard.
	_ = s.sidecar.Close()
	s.sidecar = nil

	return s.startHiddenPrimaryConnect(ctx)
}

// startHiddenPrimaryConnect dials the primary immediately after the
// encryption_response has been relayed to the sidecar.
func (s *Session) startHiddenPrimaryConnect(ctx context.Context) error {
	conn, err := upstream.Dial(ctx, "tcp", s.cfg.PrimaryHost, s.cfg.PrimaryPort, s.cfg.PrimaryHost, uint16(s.cfg.PrimaryPort), s.protocolVersion, upstream.KindLogin, s.cfg.ConnTimeout)
	if err != nil {
		s.log.Warn().Err(err).Msg("hidden: primary upstream_connect_failed")
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
