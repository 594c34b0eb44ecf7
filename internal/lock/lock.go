// Package lock provides time-bounded mutual exclusion per sale, so that
// at-least-once queue delivery never turns into two workers processing the
// same sale concurrently. The TTL bounds the hold time if a worker dies
// without releasing.
package lock

import "context"

type Locker interface {
	// Acquire returns true iff this caller now owns the sale's lock.
	// A false return is not an error: another attempt owns it.
	Acquire(ctx context.Context, saleID string) (bool, error)
	// Release is best-effort; a failed delete is bounded by the TTL.
	Release(ctx context.Context, saleID string)
}

func key(saleID string) string {
	return "lock:sale:" + saleID
}
