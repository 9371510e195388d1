package upstream

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"mcredirect/internal/protocol"
)

// Kind distinguishes the handshake next_state an upstream dial opens
// with.
type Kind int

const (
	KindStatus Kind = iota
	KindLogin
)

func (k Kind) nextState() protocol.NextState {
	if k == KindStatus {
		return protocol.NextStateStatus
	}
	return protocol.NextStateLogin
}

// Conn is a dialed upstream connection plus a frame reader primed to
// read its reply packets.
type Conn struct {
	net.Conn
	Frames *protocol.FrameReader

	RemoteAddr string
}

// Dial opens a TCP connection to (host, port) and immediately sends the
// Minecraft handshake packet: id 0x00, body =
// VarInt(protocolVersion) || String(host) || u16(port) || VarInt(next),
// using the pre-SRV host/port the caller passes in (handshake content
// must reflect what the client asked for, not any SRV rewrite).
func Dial(ctx context.Context, network, dialHost string, dialPort int, handshakeHost string, handshakePort uint16, protocolVersion int32, kind Kind, connectTimeout time.Duration) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var d net.Dialer
	addr := net.JoinHostPort(dialHost, strconv.Itoa(dialPort))
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	body := protocol.EncodeHandshake(protocolVersion, handshakeHost, handshakePort, kind.nextState())
	if err := protocol.WritePacket(conn, protocol.PacketHandshake, body); err != nil {
		conn.Close()
		return nil, err
	}

	return &Conn{
		Conn:       conn,
		Frames:     protocol.NewFrameReader(conn),
		RemoteAddr: addr,
	}, nil
}

// RawReader exposes the buffered reader so the session can hand off to
// splice mode without dropping bytes already read into the buffer.
func (c *Conn) RawReader() io.Reader {
	return c.Frames.Underlying()
}
