package breaker

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDialer struct {
	fail  bool
	calls int
}

func (d *stubDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls++
	if d.fail {
		return nil, errors.New("dial refused")
	}
	c1, c2 := net.Pipe()
	c2.Close()
	return c1, nil
}

func TestBreakers_SuccessfulDialPassesThrough(t *testing.T) {
	dialer := &stubDialer{}
	b := New(dialer)

	conn, err := b.Dial(context.Background(), "127.0.0.1:9000")
	require.NoError(t, err)
	require.NotNil(t, conn)
	conn.Close()
	require.Equal(t, 1, dialer.calls)
}

func TestBreakers_TripsAfterConsecutiveFailures(t *testing.T) {
	dialer := &stubDialer{fail: true}
	b := New(dialer)

	for i := 0; i < 5; i++ {
		_, err := b.Dial(context.Background(), "127.0.0.1:9000")
		require.Error(t, err)
	}

	callsBeforeTrip := dialer.calls
	_, err := b.Dial(context.Background(), "127.0.0.1:9000")
	require.Error(t, err)
	require.Equal(t, callsBeforeTrip, dialer.calls, "a tripped breaker must not reach the dialer")
}

func TestBreakers_SeparateBreakerPerAddress(t *testing.T) {
	dialer := &stubDialer{fail: true}
	b := New(dialer)

	for i := 0; i < 5; i++ {
		_, _ = b.Dial(context.Background(), "127.0.0.1:9000")
	}
	// a different address's breaker must still attempt the dial
	callsBefore := dialer.calls
	_, err := b.Dial(context.Background(), "127.0.0.1:9001")
	require.Error(t, err)
	require.Equal(t, callsBefore+1, dialer.calls)
}
