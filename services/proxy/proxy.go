package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
)

const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 3 * time.Second
	probeInterval    = 30 * time.Minute
)

// Entry is one proxy endpoint with its last probe result
type Entry struct {
	Addr     string        `json:"addr"`
	Scheme   string        `json:"scheme"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

// Pool probes a configured set of proxy endpoints and hands out the
// fastest working one. Endpoints come from configuration, not from
// public proxy lists, so a probe only confirms reachability.
type Pool struct {
	entries   []Entry
	mutex     sync.RWMutex
	lastProbe time.Time
	log       *logger.Logger
}

// NewPool builds a pool from proxy addresses of the form
// "socks5://host:port" or "host:port" (treated as http).
func NewPool(addrs []string) *Pool {
	p := &Pool{log: logger.ForProxy()}
	for _, addr := range addrs {
		scheme, hostport, err := splitAddr(addr)
		if err != nil {
			p.log.Warn().Str("addr", addr).Err(err).Msg("Skipping malformed proxy address")
			continue
		}
		p.entries = append(p.entries, Entry{Addr: scheme + "://" + hostport, Scheme: scheme})
	}
	return p
}

// Size returns how many endpoints the pool holds
func (p *Pool) Size() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.entries)
}

// Probe dial-tests every endpoint concurrently and records latency.
// Repeated calls within the probe interval are no-ops while at least
// one endpoint is known to work.
func (p *Pool) Probe(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if time.Since(p.lastProbe) < probeInterval && p.anyWorkingLocked() {
		return nil
	}
	if len(p.entries) == 0 {
		return apperrors.NewConfiguration("proxy pool is empty", nil)
	}

	var wg sync.WaitGroup
	for i := range p.entries {
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			probeEntry(ctx, e)
		}(&p.entries[i])
	}
	wg.Wait()

	sort.Slice(p.entries, func(i, j int) bool {
		if p.entries[i].Working != p.entries[j].Working {
			return p.entries[i].Working
		}
		return p.entries[i].Latency < p.entries[j].Latency
	})
	p.lastProbe = time.Now()

	working := 0
	for _, e := range p.entries {
		if e.Working {
			working++
		}
	}
	p.log.Info().
		Int("total", len(p.entries)).
		Int("working", working).
		Msg("Proxy pool probed")

	if working == 0 {
		return apperrors.NewNetwork("proxy", "no working proxy in pool", nil)
	}
	return nil
}

// Fastest returns the lowest-latency working endpoint from the last probe
func (p *Pool) Fastest() (string, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	for _, e := range p.entries {
		if e.Working {
			return e.Addr, nil
		}
	}
	return "", apperrors.NewNetwork("proxy", "no working proxy in pool", nil)
}

// Working returns the working endpoints, fastest first
func (p *Pool) Working() []Entry {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	var out []Entry
	for _, e := range p.entries {
		if e.Working {
			out = append(out, e)
		}
	}
	return out
}

func (p *Pool) anyWorkingLocked() bool {
	for _, e := range p.entries {
		if e.Working {
			return true
		}
	}
	return false
}

func probeEntry(ctx context.Context, e *Entry) {
	hostport := strings.TrimPrefix(e.Addr, e.Scheme+"://")

	start := time.Now()
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", hostport)
	if err != nil {
		e.Working = false
		e.Latency = time.Hour
		return
	}
	defer conn.Close()

	if e.Scheme == "socks5" && !socks5Handshake(conn) {
		e.Working = false
		e.Latency = time.Hour
		return
	}

	e.Working = true
	e.Latency = time.Since(start)
	e.LastTest = time.Now()
}

// socks5Handshake sends a no-auth method negotiation and checks the reply
func socks5Handshake(conn net.Conn) bool {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	// [VER=5, NMETHODS=1, METHOD=no-auth]
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return false
	}
	resp := make([]byte, 2)
	if _, err := conn.Read(resp); err != nil {
		return false
	}
	return resp[0] == 0x05 && resp[1] == 0x00
}

// splitAddr normalizes an address into scheme and host:port
func splitAddr(addr string) (scheme, hostport string, err error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", "", fmt.Errorf("empty address")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" {
		return "", "", fmt.Errorf("missing port in %q", addr)
	}
	return u.Scheme, u.Host, nil
}
