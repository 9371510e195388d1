package protocol

import "bytes"

// Packet IDs used by the handshake/login/status exchange this proxy
// observes. Anything past these is opaque and forwarded verbatim.
const (
	PacketHandshake         int32 = 0x00
	PacketStatusRequest     int32 = 0x00
	PacketStatusResponse    int32 = 0x00
	PacketStatusPing        int32 = 0x01
	PacketLoginStart        int32 = 0x00
	PacketEncryptionRequest int32 = 0x01
	PacketEncryptionResp    int32 = 0x01
)

// NextState mirrors the handshake's next_state field.
type NextState int32

const (
	NextStateStatus NextState = 1
	NextStateLogin  NextState = 2
)

// Handshake is the decoded body of the client's first packet.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       NextState
}

// ParseHandshake decodes a handshake packet body non-destructively: body
// is read but left unchanged. The client's handshake bytes are not
// replayed upstream; the dialer sends its own (see EncodeHandshake).
func ParseHandshake(body []byte) (*Handshake, error) {
	buf := bytes.NewReader(body)

	version, err := ReadVarInt(buf)
	if err != nil {
		return nil, err
	}
	host, err := ReadString(buf)
	if err != nil {
		return nil, err
	}
	port, err := ReadUint16(buf)
	if err != nil {
		return nil, err
	}
	next, err := ReadVarInt(buf)
	if err != nil {
		return nil, err
	}
	return &Handshake{
		ProtocolVersion: version,
		ServerAddress:   host,
		ServerPort:      port,
		NextState:       NextState(next),
	}, nil
}

// EncodeHandshake builds a fresh handshake body, used by the upstream
// dialer, which sends its own handshake rather than replaying the
// client's verbatim bytes (the target host/port and next_state it needs
// may differ from what the client sent, e.g. after SRV rewrite or when
// dialing the sidecar).
func EncodeHandshake(protocolVersion int32, host string, port uint16, next NextState) []byte {
	buf := new(bytes.Buffer)
	WriteVarInt(buf, protocolVersion)
	WriteString(buf, host)
	WriteUint16(buf, port)
	WriteVarInt(buf, int32(next))
	return buf.Bytes()
}
