package service

import "context"

// StoreTx provides a transactional boundary for a counter mutation and the
// audit event that records it. Stores reached through the callback's
// context join the transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// passthroughTx runs fn directly. In-memory and Redis counters commit per
// call, so there is nothing to roll back.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
