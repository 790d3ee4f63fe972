package transfer

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pools bounds the two kinds of concurrent work a transfer performs:
// HTTP, which bounds outstanding SDK calls (uploads, downloads, copies)
// against the backend, and Internal, which bounds CPU-bound work
// (AES-CBC encrypt/decrypt) that doesn't touch the network. Grounded
// on spec.md §5's dual-pool concurrency model; implemented with
// golang.org/x/sync/semaphore since Go has no built-in bounded worker
// pool primitive.
type Pools struct {
	HTTP     *semaphore.Weighted
	Internal *semaphore.Weighted
}

// NewPools returns a Pools with the given capacities.
func NewPools(httpSize, internalSize int) *Pools {
	return &Pools{
		HTTP:     semaphore.NewWeighted(int64(httpSize)),
		Internal: semaphore.NewWeighted(int64(internalSize)),
	}
}

// withHTTP runs fn while holding one unit of the HTTP pool.
func (p *Pools) withHTTP(ctx context.Context, fn func() error) error {
	if err := p.HTTP.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.HTTP.Release(1)
	return fn()
}

// withInternal runs fn while holding one unit of the Internal pool.
func (p *Pools) withInternal(ctx context.Context, fn func() error) error {
	if err := p.Internal.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.Internal.Release(1)
	return fn()
}
