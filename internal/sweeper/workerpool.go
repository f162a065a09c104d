package sweeper

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool closed")

type WorkerPoolI interface {
	AddTask(ctx context.Context, task Task) error
	Do(ctx context.Context, task Task) error
	Close()
}

type Task func() error

type WorkerPool struct {
	pool chan Task
	quit chan struct{}
	once sync.Once
}

func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	wp := &WorkerPool{
		pool: make(chan Task, size),
		quit: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	for {
		select {
		case <-wp.quit:
			return
		case task := <-wp.pool:
			if err := task(); err != nil {
				zap.L().Debug("Task execution failed", zap.Error(err))
			}
		}
	}
}

// AddTask queues task without waiting for it to run.
func (wp *WorkerPool) AddTask(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-wp.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.quit:
		return ErrPoolClosed
	case wp.pool <- task:
		return nil
	}
}

// Do queues task and waits for its result.
func (wp *WorkerPool) Do(ctx context.Context, task Task) error {
	done := make(chan error, 1)
	err := wp.AddTask(ctx, func() error {
		err := task()
		done <- err
		return err
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.quit:
		return ErrPoolClosed
	}
}

// Close stops the workers. Queued tasks that have not started are dropped.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		close(wp.quit)
	})
}
