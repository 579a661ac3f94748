package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rushteam/adkit/core"
)

// ErrDeadlineExceeded 表示整条链路超过时延预算
var ErrDeadlineExceeded = core.NewDomainError(core.ModulePipeline, core.ErrorCodeDeadlineExceeded, "pipeline: deadline exceeded")

// Bounded 在固定的时延预算内执行一个工作单元。
//
// 超时后立即返回 ErrDeadlineExceeded，不返回部分结果；
// 返回时派生的 ctx 会被取消，工作单元中监听 ctx 的 I/O（Redis、SQL、HTTP）随之停止。
// 调用方 ctx 提前取消（如客户端断开）同样按超时处理。
type Bounded struct {
	Timeout time.Duration
}

// Run 执行 fn，fn 必须使用传入的 ctx。
// 返回 ErrDeadlineExceeded 时 fn 可能仍在退出途中，调用方不得再读取 fn 写入的结果。
func (b Bounded) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = (&core.DefaultRecommendConfig{}).DefaultTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && isContextErr(err) && ctx.Err() != nil {
			return fmt.Errorf("%w after %s: %v", ErrDeadlineExceeded, timeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s: %v", ErrDeadlineExceeded, timeout, ctx.Err())
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
