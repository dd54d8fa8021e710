// Package batch 提供分批并发执行与超时包装，用于对外部服务（如 Embedding API）限流。
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	applog "docqa/internal/platform/log"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
	DefaultTimeout    = 30 * time.Second
)

// ErrOperationTimeout 操作超过截止时间。底层操作不保证已停止。
var ErrOperationTimeout = errors.New("operation timeout")

// Options 分批参数
type Options struct {
	BatchSize  int           // 每批并发数，<=0 使用 DefaultBatchSize
	BatchDelay time.Duration // 批次之间的固定间隔，0 表示不等待
}

// ParallelProcess 将 items 按 batchSize 切分为连续批次，批内并发、批间串行。
// 结果顺序与 items 一致；任一元素失败时在该批结束后返回错误。
func ParallelProcess[T, R any](ctx context.Context, items []T, op func(ctx context.Context, item T) (R, error), batchSize int) ([]R, error) {
	return Process(ctx, items, op, Options{BatchSize: batchSize})
}

// Process 与 ParallelProcess 相同，但在相邻批次之间插入 BatchDelay，作为对外部配额的粗粒度限流
func Process[T, R any](ctx context.Context, items []T, op func(ctx context.Context, item T) (R, error), opts Options) ([]R, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	results := make([]R, len(items))
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if start > 0 && opts.BatchDelay > 0 {
			if err := sleep(ctx, opts.BatchDelay); err != nil {
				return nil, err
			}
		}

		end := min(start+size, len(items))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				r, err := safeCall(gctx, items[i], op)
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		applog.Debug("[Batch] Batch done", "from", start, "to", end, "total", len(items))
	}

	return results, nil
}

// WithTimeout 让 op 与计时器竞争；计时器先到时返回 ErrOperationTimeout。
// op 不会被取消，只是不再等待其结果，调用方应视为 fire-and-forget。
func WithTimeout[R any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (R, error)) (R, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		val R
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("operation panicked: %v", r)}
			}
		}()
		v, err := op(ctx)
		done <- outcome{val: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero R
	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		return zero, fmt.Errorf("%w after %s", ErrOperationTimeout, timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func safeCall[T, R any](ctx context.Context, item T, op func(ctx context.Context, item T) (R, error)) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("operation panicked: %v", p)
		}
	}()
	return op(ctx, item)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
