// Package retry 实现固定间隔的有限次重试。
// 用于下单与平仓这类需要有界重试的交易所调用；
// 与 WebSocket 重连的无限退避不同，这里的尝试次数必须有上限。
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Do 以固定间隔重复执行 fn，直到成功或耗尽尝试次数
// 参数 ctx: 取消后立即停止，不再执行剩余尝试
// 参数 attempts: 最大尝试次数（含首次），必须 >= 1
// 参数 delay: 相邻尝试之间的等待时间
// 返回: 成功为 nil；全部失败时聚合每次尝试的错误
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var errs error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, fmt.Errorf("重试被取消: %w", err))
		}

		err := fn()
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, fmt.Errorf("第 %d 次尝试失败: %w", i+1, err))

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return multierr.Append(errs, fmt.Errorf("重试被取消: %w", ctx.Err()))
		case <-time.After(delay):
		}
	}

	return errs
}
