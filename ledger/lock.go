package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"
)

// AccountLock serializes transaction submission per sending account.
// Nonce assignment is only safe while the account's slot is held.
type AccountLock struct {
	mu    sync.Mutex
	slots map[common.Address]*semaphore.Weighted
}

func NewAccountLock() *AccountLock {
	return &AccountLock{slots: make(map[common.Address]*semaphore.Weighted)}
}

// Acquire blocks until the account is free or ctx is done.
// The returned func must be called exactly once to release the account.
func (l *AccountLock) Acquire(ctx context.Context, account common.Address) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[account]
	if !ok {
		slot = semaphore.NewWeighted(1)
		l.slots[account] = slot
	}
	l.mu.Unlock()

	if err := slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { slot.Release(1) }) }, nil
}
