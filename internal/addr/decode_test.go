package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDomain = "server.domain"

func TestDecodeOkay(t *testing.T) {
	cases := []struct {
		addr string
		host string
		port int
	}{
		{"host.com.server.domain", "host.com", 25565},
		{"my.host.com.25565.server.domain", "my.host.com", 25565},
		{"my.host.com.3000.server.domain", "my.host.com", 3000},
		{"12.34.56.78.3000.server.domain", "12.34.56.78", 3000},
		{"12.34.56.78.server.domain", "12.34.56.78", 25565},
		{"12.34.56.78.25565.server.domain", "12.34.56.78", 25565},
	}
	for _, c := range cases {
		t.Run(c.addr, func(t *testing.T) {
			host, port, err := Decode(c.addr, testDomain)
			require.NoError(t, err)
			assert.Equal(t, c.host, host)
			assert.Equal(t, c.port, port)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		addr string
		kind ErrorKind
	}{
		{"", ErrMustEndWithDomain},
		{"c.server.domain", ErrBadForm},
		{"localhost.25565.server.domain", ErrNoLocalhost},
		{"hello.localhost.server.domain", ErrNoLocalhost},
		{"127.0.0.1.server.domain", ErrNotPublic},
		{"10.0.0.1.server.domain", ErrNotPublic},
		{"192.168.0.1.server.domain", ErrNotPublic},
		{"172.16.0.1.server.domain", ErrNotPublic},
		{"169.254.0.1.server.domain", ErrNotPublic},
		{"100.64.0.1.server.domain", ErrNotPublic},
		{"100.200.300.400.server.domain", ErrInvalidIP},
		{"1.2.3.server.domain", ErrInvalidIP},
		{"host.com.65536.server.domain", ErrPortOutOfRange},
	}
	for _, c := range cases {
		t.Run(c.addr, func(t *testing.T) {
			_, _, err := Decode(c.addr, testDomain)
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, c.kind, de.Kind)
		})
	}
}

func TestDecodeIdempotent(t *testing.T) {
	host1, port1, err1 := Decode("my.host.com.3000.server.domain", testDomain)
	host2, port2, err2 := Decode("my.host.com.3000.server.domain", testDomain)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, host1, host2)
	assert.Equal(t, port1, port2)
}
