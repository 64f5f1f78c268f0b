// Package lock implements a cluster-wide lease on a single key: acquired with
// SET NX and a TTL, released by a script that deletes the key only while it
// still holds the caller's lease id.
package lock

import (
	"context"
	"matchchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the key no longer holds our lease
// (it expired, or another holder acquired it since).
var ErrNotHeld = errors.New("lock: lease not held")

// KEYS[1] = lock key, ARGV[1] = lease id
// Returns 1 when the key was deleted, 0 when it held another value or was gone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases on fixed keys.
type Locker struct {
	Store storage.KeyValueStore
}

// NewLocker Constructor
func NewLocker(s storage.KeyValueStore) *Locker {
	return &Locker{Store: s}
}

// Lease proves ownership of a lock key until Release or TTL expiry.
type Lease struct {
	Key string
	ID  string
	TTL time.Duration

	locker *Locker
}

// TryAcquire returns (nil, false, nil) when another holder has the key.
// There is no heartbeat: a crashed holder's lease simply expires.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	id := uuid.NewString()
	ok, err := l.Store.SetNX(ctx, key, id, ttl)
	if err != nil {
		return nil, false, errors.Wrapf(err, "acquire %s", key)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{Key: key, ID: id, TTL: ttl, locker: l}, true, nil
}

// Release deletes the key only if it still carries this lease id.
func (le *Lease) Release(ctx context.Context) error {
	res, err := le.locker.Store.RunScript(ctx, releaseScript, []string{le.Key}, le.ID)
	if err != nil {
		return errors.Wrapf(err, "release %s", le.Key)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotHeld
	}
	return nil
}
