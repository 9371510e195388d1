package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []int32{0, 1, 127, 128, 255, 2097151, 25565, -1, -2147483648, 2147483647}
	for _, v := range cases {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteVarInt(buf, v))
		got, err := ReadVarInt(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestVarIntTooBig(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadVarInt(buf)
	assert.ErrorIs(t, err, ErrVarIntTooBig)
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "play.example.com", "a string with spaces and 🎮 unicode"}
	for _, s := range cases {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteString(buf, s))
		got, err := ReadString(buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestReadStringTooLong(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteVarInt(buf, MaxStringLen+1))
	_, err := ReadString(buf)
	assert.ErrorIs(t, err, ErrStringTooBig)
}

func TestUint16RoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteUint16(buf, 25565))
	got, err := ReadUint16(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(25565), got)
}

func TestPacketRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	body := EncodeHandshake(47, "play.example.com", 25565, NextStateLogin)
	require.NoError(t, WritePacket(buf, PacketHandshake, body))

	fr := NewFrameReader(buf)
	pkt, err := fr.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, PacketHandshake, pkt.ID)
	assert.Equal(t, body, pkt.Body)
}

func TestFrameReaderHandlesPartialReads(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WritePacket(buf, PacketLoginStart, []byte("playername")))
	full := buf.Bytes()

	pr, pw := newChunkedPipe(full, 1)
	defer pr.Close()
	go pw()

	fr := NewFrameReader(pr)
	pkt, err := fr.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, PacketLoginStart, pkt.ID)
	assert.Equal(t, []byte("playername"), pkt.Body)
}

func TestHandshakeRoundTrip(t *testing.T) {
	body := EncodeHandshake(47, "sub.example.com", 25565, NextStateStatus)
	hs, err := ParseHandshake(body)
	require.NoError(t, err)
	assert.Equal(t, int32(47), hs.ProtocolVersion)
	assert.Equal(t, "sub.example.com", hs.ServerAddress)
	assert.Equal(t, uint16(25565), hs.ServerPort)
	assert.Equal(t, NextStateStatus, hs.NextState)
}
