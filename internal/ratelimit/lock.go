package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "invoiceflow:lock:"

// compare-and-delete so a lease that outlived its ttl cannot drop a newer holder's key.
const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockHeld      = errors.New("lock_held")
	errEmptyLockName = errors.New("lock name is empty")
	errLockTTL       = errors.New("lock ttl must be positive")
)

// Locker hands out short leases on named redis keys shared by all replicas.
// A nil Locker grants every lease, which is what a single node without redis wants.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

// Lease is one held lock. Release is safe on a nil Lease.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

// Acquire returns ErrLockHeld when another holder owns name.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errEmptyLockName
	}
	if ttl <= 0 {
		return nil, errLockTTL
	}
	if l == nil || l.client == nil {
		return &Lease{}, nil
	}

	lease := &Lease{locker: l, key: lockKeyPrefix + name, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lease, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil || l.token == "" {
		return nil
	}
	return l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Err()
}
