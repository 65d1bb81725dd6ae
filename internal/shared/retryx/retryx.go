// Package retryx 提供启动阶段的有界重试
//
// 组合器只负责返回最终结果，耗尽后是否终止进程由调用方决定。
package retryx

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Backoff 根据重试次数（从 1 开始）计算等待时长
type Backoff func(attempt int) time.Duration

// Linear 线性退避：base×1, base×2, base×3, ...
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Do 最多执行 op maxAttempts 次，失败后按 backoff 等待
//
// 返回最后一次的错误；ctx 取消时立即中止并返回 ctx.Err()。
func Do(ctx context.Context, maxAttempts int, backoff Backoff, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		return fmt.Errorf("retryx: maxAttempts must be >= 1, got %d", maxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		wait := backoff(attempt)
		log.Printf("[retryx] attempt %d/%d failed: %v (retrying in %s)", attempt, maxAttempts, lastErr, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("retryx: exhausted %d attempts: %w", maxAttempts, lastErr)
}
