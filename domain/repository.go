package domain

import "context"

// Repository 统一管理域名与订阅者的持久化，每个方法都是一个独立事务。
type Repository interface {
	// GetDomain 精确匹配，不存在时返回 ErrNotFound。
	GetDomain(ctx context.Context, name string) (Record, error)
	ListDomains(ctx context.Context) ([]Record, error)
	// ListExpiring 返回 today+days 之前到期的域名，最早到期的排在前面。
	ListExpiring(ctx context.Context, days int) ([]Record, error)
	// AddDomain 只插入，已存在时返回 ErrDuplicateKey。
	AddDomain(ctx context.Context, rec Record) (Record, error)
	// UpdateDomain 整体替换已有记录，不存在时返回 false，不会新建。
	UpdateDomain(ctx context.Context, rec Record) (bool, error)
	// DeleteDomain 不存在时什么也不做。
	DeleteDomain(ctx context.Context, name string) error

	UpsertSubscriber(ctx context.Context, sub Subscriber) (Subscriber, error)
	SetSubscribed(ctx context.Context, chatID int64, subscribed bool) (bool, error)
	ListSubscribed(ctx context.Context) ([]Subscriber, error)
	TouchLastInformed(ctx context.Context, chatID int64) (bool, error)
}

// Fetcher 批量查询注册局，只返回查询成功并完成归一化的记录，顺序不保证。
type Fetcher interface {
	FetchMany(ctx context.Context, names []string) []Record
}
