package domain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Service 串起 查重 -> 注册局查询 -> 归一化 -> 入库 的流程，
// 命令层和定时任务都只通过它操作域名。
type Service struct {
	Repo    Repository
	Fetcher Fetcher
	Logger  *zap.Logger
}

func NewService(repo Repository, fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Repo: repo, Fetcher: fetcher, Logger: logger}
}

// AddManyResult 描述批量添加的结果。
type AddManyResult struct {
	Added   []Record
	Skipped []string // 已在跟踪列表中
	Failed  []string // 注册局查不到
	Invalid []string // 域名格式不对
}

// RefreshResult 描述批量刷新的结果。
type RefreshResult struct {
	Updated []Record
	Failed  []string
}

func (s *Service) Check(ctx context.Context, raw string) (Record, error) {
	name, err := NormalizeName(raw)
	if err != nil {
		return Record{}, err
	}
	return s.Repo.GetDomain(ctx, name)
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.Repo.ListDomains(ctx)
}

func (s *Service) ListExpiring(ctx context.Context, days int) ([]Record, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative: %d", days)
	}
	return s.Repo.ListExpiring(ctx, days)
}

// Add 添加一个新域名，已存在时返回 ErrAlreadyExists。
func (s *Service) Add(ctx context.Context, raw string) (Record, error) {
	name, err := NormalizeName(raw)
	if err != nil {
		return Record{}, err
	}
	exists, err := s.exists(ctx, name)
	if err != nil {
		return Record{}, err
	}
	if exists {
		return Record{}, ErrAlreadyExists
	}

	rec, err := s.fetchOne(ctx, name)
	if err != nil {
		return Record{}, err
	}
	stored, err := s.Repo.AddDomain(ctx, rec)
	if errors.Is(err, ErrDuplicateKey) {
		return Record{}, ErrAlreadyExists
	}
	if err != nil {
		return Record{}, err
	}
	s.Logger.Info("domain_added", zap.String("domain", stored.Name), zap.Stringer("expires", stored.ExpirationDate))
	return stored, nil
}

// Update 重新查询并整体替换已有域名，不存在时返回 ErrNotFound。
func (s *Service) Update(ctx context.Context, raw string) (Record, error) {
	name, err := NormalizeName(raw)
	if err != nil {
		return Record{}, err
	}
	exists, err := s.exists(ctx, name)
	if err != nil {
		return Record{}, err
	}
	if !exists {
		return Record{}, ErrNotFound
	}

	rec, err := s.fetchOne(ctx, name)
	if err != nil {
		return Record{}, err
	}
	ok, err := s.Repo.UpdateDomain(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		// 查询期间被别的命令删掉了
		return Record{}, ErrNotFound
	}
	s.Logger.Info("domain_updated", zap.String("domain", rec.Name), zap.Stringer("expires", rec.ExpirationDate))
	return s.Repo.GetDomain(ctx, rec.Name)
}

// AddMany 跳过已跟踪的域名，其余的一次性批量查询后逐个入库。
func (s *Service) AddMany(ctx context.Context, raws []string) (AddManyResult, error) {
	var res AddManyResult
	var pending []string
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		name, err := NormalizeName(raw)
		if err != nil {
			res.Invalid = append(res.Invalid, raw)
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		exists, err := s.exists(ctx, name)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		pending = append(pending, name)
	}
	if len(pending) == 0 {
		return res, nil
	}

	fetched := s.fetch(ctx, pending)
	// 请求被取消时不写入任何结果
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, name := range pending {
		rec, ok := fetched[name]
		if !ok {
			res.Failed = append(res.Failed, name)
			continue
		}
		stored, err := s.Repo.AddDomain(ctx, rec)
		if errors.Is(err, ErrDuplicateKey) {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Added = append(res.Added, stored)
	}
	s.Logger.Info("domains_added",
		zap.Int("added", len(res.Added)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("invalid", len(res.Invalid)),
	)
	return res, nil
}

// RefreshExpiring 重新查询窗口期内的域名，已续费的会自然移出提醒列表。
func (s *Service) RefreshExpiring(ctx context.Context, days int) (RefreshResult, error) {
	var res RefreshResult
	records, err := s.ListExpiring(ctx, days)
	if err != nil {
		return res, err
	}
	if len(records) == 0 {
		return res, nil
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	fetched := s.fetch(ctx, names)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, name := range names {
		rec, ok := fetched[name]
		if !ok {
			res.Failed = append(res.Failed, name)
			continue
		}
		updated, err := s.Repo.UpdateDomain(ctx, rec)
		if err != nil {
			return res, err
		}
		if updated {
			res.Updated = append(res.Updated, rec)
		}
	}
	s.Logger.Info("expiring_refreshed", zap.Int("updated", len(res.Updated)), zap.Int("failed", len(res.Failed)))
	return res, nil
}

// Delete 删除域名，不存在也不报错。
func (s *Service) Delete(ctx context.Context, raw string) (string, error) {
	name, err := NormalizeName(raw)
	if err != nil {
		return "", err
	}
	if err := s.Repo.DeleteDomain(ctx, name); err != nil {
		return "", err
	}
	s.Logger.Info("domain_deleted", zap.String("domain", name))
	return name, nil
}

// DeleteMany 逐个删除，返回实际处理过的域名。
func (s *Service) DeleteMany(ctx context.Context, raws []string) ([]string, error) {
	var deleted []string
	for _, raw := range raws {
		name, err := s.Delete(ctx, raw)
		if errors.Is(err, ErrInvalidName) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, name)
	}
	return deleted, nil
}

func (s *Service) Subscribe(ctx context.Context, chatID int64, name string) (Subscriber, error) {
	sub, err := s.Repo.UpsertSubscriber(ctx, Subscriber{ChatID: chatID, Name: name, Subscribed: true})
	if err != nil {
		return Subscriber{}, err
	}
	s.Logger.Info("chat_subscribed", zap.Int64("chat_id", chatID))
	return sub, nil
}

// Unsubscribe 只把订阅标记为 false，保留记录；返回该聊天是否订阅过。
func (s *Service) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.Repo.SetSubscribed(ctx, chatID, false)
	if err != nil {
		return false, err
	}
	if ok {
		s.Logger.Info("chat_unsubscribed", zap.Int64("chat_id", chatID))
	}
	return ok, nil
}

func (s *Service) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.Repo.GetDomain(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) fetchOne(ctx context.Context, name string) (Record, error) {
	fetched := s.fetch(ctx, []string{name})
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec, ok := fetched[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrFetchFailed, name)
	}
	return rec, nil
}

// fetch 按域名建索引，结果顺序与请求无关。
func (s *Service) fetch(ctx context.Context, names []string) map[string]Record {
	records := s.Fetcher.FetchMany(ctx, names)
	out := make(map[string]Record, len(records))
	for _, r := range records {
		out[r.Name] = r
	}
	return out
}
