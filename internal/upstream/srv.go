// Package upstream dials the primary/sidecar Minecraft backends, and
// resolves `_minecraft._tcp` SRV records ahead of the dial.
package upstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultMinecraftPort is the only target port SRV lookup is attempted
// for; any other port skips the lookup and dials the address directly.
const DefaultMinecraftPort = 25565

// ResolvedAddress is a (host, port) pair.
type ResolvedAddress struct {
	Host string
	Port uint16
}

// ResolveSRV looks up _minecraft._tcp.<host> and returns the first
// answer's (target, port), or ok=false if the lookup should be skipped
// or failed (timeout, NXDOMAIN, or any other error). The caller falls
// back to the original address on failure.
func ResolveSRV(ctx context.Context, host string, port int, timeout time.Duration) (ResolvedAddress, bool) {
	if port != DefaultMinecraftPort {
		return ResolvedAddress{}, false
	}

	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || cfg == nil || len(cfg.Servers) == 0 {
		return ResolvedAddress{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &dns.Client{Timeout: timeout, Net: "udp"}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fmt.Sprintf("_minecraft._tcp.%s", host)), dns.TypeSRV)
	msg.RecursionDesired = true

	server := net.JoinHostPort(cfg.Servers[0], cfg.Port)

	respCh := make(chan *dns.Msg, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, _, exErr := client.ExchangeContext(ctx, msg, server)
		if exErr != nil {
			errCh <- exErr
			return
		}
		respCh <- resp
	}()

	select {
	case <-ctx.Done():
		return ResolvedAddress{}, false
	case <-errCh:
		return ResolvedAddress{}, false
	case resp := <-respCh:
		if resp == nil || resp.Rcode != dns.RcodeSuccess {
			return ResolvedAddress{}, false
		}
		for _, rr := range resp.Answer {
			if srv, ok := rr.(*dns.SRV); ok {
				return ResolvedAddress{
					Host: trimTrailingDot(srv.Target),
					Port: srv.Port,
				}, true
			}
		}
		return ResolvedAddress{}, false
	}
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}
