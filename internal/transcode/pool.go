package transcode

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Result is the outcome of a pooled task.
type Result[T any] struct {
	Value T
	Err   error
}

// Pool bounds the number of external processes running at once.
type Pool struct {
	pool *ants.Pool
}

// NewPool starts a pool of size workers. Submissions block while every
// worker is busy.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("ants.NewPool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Release stops the pool. Tasks already running finish.
func (p *Pool) Release() {
	p.pool.Release()
}

// Submit runs fn on the pool and returns a future that yields exactly one
// Result.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	err := p.pool.Submit(func() {
		if err := ctx.Err(); err != nil {
			ch <- Result[T]{Err: err}
			return
		}
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	})
	if err != nil {
		ch <- Result[T]{Err: fmt.Errorf("submit task: %w", err)}
	}
	return ch
}
