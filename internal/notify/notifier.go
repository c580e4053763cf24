// Package notify implements a one-shot shutdown broadcast with
// many-reader acknowledgement: a Server tells every in-flight connection
// handler "start draining" exactly once, then waits until every handler
// that was listening has acknowledged before reporting itself done.
//
// Broadcast is a closed channel, not a buffered send, so a handler that
// subscribes a moment before the signal fires still sees it — closing a
// channel wakes every current and future receiver, where a send could
// race a slow subscriber and drop the message.
package notify

import (
	"sync"
	"sync/atomic"
)

// Notifier is the sending half. The zero value is not usable; construct
// with New.
type Notifier struct {
	mu     sync.Mutex
	closed chan struct{}
	fired  bool

	ackWG   sync.WaitGroup
	pending atomic.Int64
}

// New returns a Notifier ready to hand out subscriptions.
func New() *Notifier {
	return &Notifier{closed: make(chan struct{})}
}

// Subscribe registers one more listener for the eventual broadcast and
// returns a Subscription the listener uses to wait for it and to
// acknowledge having seen it. Subscribe must not be called after Send.
func (n *Notifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ackWG.Add(1)
	n.pending.Add(1)
	return &Subscription{closed: n.closed, ack: &n.ackWG, pending: &n.pending}
}

// Pending returns the number of subscriptions handed out so far that
// haven't yet called Done — the "k" in ShuttingDown(PendingConnections(k)).
func (n *Notifier) Pending() int {
	return int(n.pending.Load())
}

// Send broadcasts the shutdown signal to every current and future
// subscription. Safe to call more than once; later calls are no-ops.
func (n *Notifier) Send() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fired {
		return
	}
	n.fired = true
	close(n.closed)
}

// Wait blocks until every subscription handed out so far has called
// Done. Send must have already been called, otherwise subscribers
// have no reason to ever acknowledge and Wait blocks forever.
func (n *Notifier) Wait() {
	n.ackWG.Wait()
}

// Subscription is the receiving half held by one connection handler. A
// handler must call Done exactly once, whether or not shutdown ever
// fired — typically via a single `defer sub.Done()` right after
// subscribing — since Wait only unblocks once every outstanding
// subscription has released its hold on the WaitGroup.
type Subscription struct {
	closed  chan struct{}
	ack     *sync.WaitGroup
	pending *atomic.Int64

	done bool
}

// Signal returns the channel that closes when the notifier sends its
// broadcast. A handler selects on this alongside its own I/O.
func (s *Subscription) Signal() <-chan struct{} {
	return s.closed
}

// Notified reports whether the broadcast has already fired, without
// blocking.
func (s *Subscription) Notified() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Done releases this subscription's hold on the notifier's Wait. Safe to
// call more than once; only the first call has an effect.
func (s *Subscription) Done() {
	if s.done {
		return
	}
	s.done = true
	s.pending.Add(-1)
	s.ack.Done()
}
