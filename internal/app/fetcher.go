package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"DomainWatch/domain"
	"DomainWatch/metrics"
	"DomainWatch/registry"
)

// FetchResult 是单个域名的查询结果，Record 和 Err 二选一。
type FetchResult struct {
	Name   string
	Record domain.Record
	Err    error
}

// Fetcher 并发查询注册局，单个域名失败只记日志，不影响整批。
type Fetcher struct {
	Client      registry.Client
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// FetchMany 只返回成功的记录，顺序不保证。
func (f *Fetcher) FetchMany(ctx context.Context, names []string) []domain.Record {
	results := f.Fetch(ctx, names)
	out := make([]domain.Record, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Record)
		}
	}
	return out
}

// Fetch 对去重后的每个域名各查一次，返回每个域名的结果。
func (f *Fetcher) Fetch(ctx context.Context, names []string) []FetchResult {
	logger := f.logger()
	names = dedupe(names)
	if len(names) == 0 {
		return nil
	}
	if f.Client == nil {
		out := make([]FetchResult, len(names))
		for i, n := range names {
			out[i] = FetchResult{Name: n, Err: ErrMissingDependencies}
		}
		return out
	}

	limit := f.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var (
		mu      sync.Mutex
		results = make([]FetchResult, 0, len(names))
	)
	// 每个 goroutine 都返回 nil，errgroup 只用来限并发和等待
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, name := range names {
		g.Go(func() error {
			res := f.fetchOne(ctx, logger, name)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, logger *zap.Logger, name string) FetchResult {
	res := FetchResult{Name: name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		f.Metrics.ObserveLookup("cancelled", 0)
		return res
	}

	lookupCtx := ctx
	cancel := func() {}
	if f.Timeout > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, f.Timeout)
	}
	defer cancel()

	start := time.Now()
	logger.Debug("lookup_started", zap.String("domain", name))
	raw, err := f.Client.Lookup(lookupCtx, name)
	if err == nil {
		res.Record, err = domain.Normalize(raw)
		if err == nil && res.Record.Name != name {
			// 返回了别的域名的数据，不能当成这个域名入库
			err = fmt.Errorf("%w: asked for %s, got %s", domain.ErrMalformedResponse, name, res.Record.Name)
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		res.Err = err
		res.Record = domain.Record{}
		outcome := "failed"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "cancelled"
		case errors.Is(err, domain.ErrMalformedResponse):
			outcome = "malformed"
		}
		f.Metrics.ObserveLookup(outcome, elapsed)
		logger.Warn("lookup_failed", zap.String("domain", name), zap.String("outcome", outcome), zap.Duration("elapsed", elapsed), zap.Error(err))
		return res
	}

	f.Metrics.ObserveLookup("success", elapsed)
	logger.Info("lookup_succeeded", zap.String("domain", name), zap.Stringer("expires", res.Record.ExpirationDate), zap.Duration("elapsed", elapsed))
	return res
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
