// Package breaker guards the proxy's per-request outbound dial with a
// circuit breaker, one per backend address. It deliberately knows nothing
// about scheduling: it never decides which backend to try, it only turns
// a backend that is failing to dial, over and over, into an immediate
// error instead of a fresh multi-second timeout on every request. The
// scheduler's weighted-round-robin sequence is untouched by breaker
// state — see internal/sched.
package breaker

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rxh-proxy/rxh/internal/logging"
)

// Dialer abstracts the outbound TCP dial so tests can substitute a fake
// without opening real sockets.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Breakers holds one circuit breaker per backend address, created lazily
// on first use so a config with a hundred backends doesn't pre-allocate a
// hundred breakers that may never see traffic.
type Breakers struct {
	dialer Dialer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[net.Conn]
}

// New builds a Breakers that dials through dialer. Pass &net.Dialer{} in
// production; tests can supply a stub.
func New(dialer Dialer) *Breakers {
	return &Breakers{dialer: dialer, breakers: make(map[string]*gobreaker.CircuitBreaker[net.Conn])}
}

// Dial opens a connection to address, through that address's breaker. A
// tripped breaker fails fast with gobreaker.ErrOpenState instead of
// attempting the dial at all.
func (b *Breakers) Dial(ctx context.Context, address string) (net.Conn, error) {
	cb := b.breakerFor(address)
	return cb.Execute(func() (net.Conn, error) {
		return b.dialer.DialContext(ctx, "tcp", address)
	})
}

func (b *Breakers) breakerFor(address string) *gobreaker.CircuitBreaker[net.Conn] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[address]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[net.Conn](gobreaker.Settings{
		Name:        address,
		MaxRequests: 1,
		Interval:    0, // never reset counts on a timer; only on a trip
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("backend", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("backend breaker state changed")
		},
	})
	b.breakers[address] = cb
	return cb
}
