// Package lock serializes the critical sections of the ticket and friendship
// engines. Keys name a ticket or an unordered pair of users; the store's row
// locks and version checks remain the final arbiter when a lock expires early.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks by key. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// TicketKey names the lock guarding a single ticket.
func TicketKey(ticketID string) string {
	return "ticket:" + ticketID
}

// PairKey names the lock guarding the relation between two users. The order of
// the arguments does not matter.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("pair:%s:%s", a, b)
}
