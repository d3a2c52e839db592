package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer 控制请求节奏：每次等待 base + [0, jitter*base)。
type Pacer struct {
	Base   time.Duration
	Jitter float64
}

// Wait 按节奏等待；ctx 取消时提前返回。nil Pacer 不等待。
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return Sleep(ctx, p.Next())
}

// Next 返回下一次等待时长。
func (p *Pacer) Next() time.Duration {
	if p == nil || p.Base <= 0 {
		return 0
	}
	d := p.Base
	if span := int64(float64(p.Base) * p.Jitter); span > 0 {
		d += time.Duration(rand.Int64N(span))
	}
	return d
}

// Between 返回 [min, max] 之间的随机时长。
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// Sleep 为可取消的等待。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
