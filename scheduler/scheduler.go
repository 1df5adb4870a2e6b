// Package scheduler 每天在固定时刻触发任务。
package scheduler

import (
	"context"
	"time"
)

// DailyScheduler 按 Location 的墙上时间计算下一次触发时刻。
type DailyScheduler struct {
	Location *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewDailyScheduler() *DailyScheduler {
	return &DailyScheduler{Location: time.Local}
}

// Next 返回 now 之后第一个 hour:minute，正好等于 now 时顺延到第二天。
func (s *DailyScheduler) Next(now time.Time, hour, minute int) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Run 阻塞直到 ctx 结束，每次到点同步执行 job，job 耗时不会造成重复触发。
func (s *DailyScheduler) Run(ctx context.Context, hour, minute int, job func(ctx context.Context)) error {
	for {
		wait := s.Next(s.clock(), hour, minute).Sub(s.clock())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wait(wait):
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		job(ctx)
	}
}

func (s *DailyScheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *DailyScheduler) wait(d time.Duration) <-chan time.Time {
	if s.after != nil {
		return s.after(d)
	}
	return time.After(d)
}
