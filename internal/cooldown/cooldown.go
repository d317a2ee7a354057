// Package cooldown throttles repeated actions per key, such as resending a
// password reset mail to the same address.
package cooldown

import "context"

// Store reports whether an action for key may run now. A granted call
// blocks the key until the window passes or Release is called.
type Store interface {
	Acquire(ctx context.Context, key string) (bool, error)
	// Release hands back a grant whose action did not happen.
	Release(ctx context.Context, key string) error
}
