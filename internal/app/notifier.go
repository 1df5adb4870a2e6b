package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"DomainWatch/callback"
	"DomainWatch/domain"
	"DomainWatch/metrics"
	"DomainWatch/telegram"
)

var ErrMissingDependencies = errors.New("missing dependencies")

// SubscriberStore 是推送需要的订阅者操作。
type SubscriberStore interface {
	ListSubscribed(ctx context.Context) ([]domain.Subscriber, error)
	TouchLastInformed(ctx context.Context, chatID int64) (bool, error)
}

// NotifierService 给每个订阅的聊天发送一份到期摘要。
type NotifierService struct {
	Sender      telegram.Sender
	Subscribers SubscriberStore
	// MinInterval 内已经提醒过的聊天跳过
	MinInterval time.Duration
	// MaxButtons 摘要最多附带多少行域名按钮
	MaxButtons int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	now func() time.Time
}

// NotifyReport 是一次推送的统计。
type NotifyReport struct {
	RunID   string
	Sent    []int64
	Skipped []int64
	Failed  []int64
}

// Notify 没有即将到期的域名时什么也不发。单个聊天发送失败不影响其他聊天。
func (n *NotifierService) Notify(ctx context.Context, records []domain.Record) (NotifyReport, error) {
	report := NotifyReport{RunID: uuid.NewString()}
	if n.Sender == nil || n.Subscribers == nil {
		return report, ErrMissingDependencies
	}
	if len(records) == 0 {
		return report, nil
	}
	logger := n.logger().With(zap.String("run_id", report.RunID))

	subs, err := n.Subscribers.ListSubscribed(ctx)
	if err != nil {
		return report, fmt.Errorf("list subscribers: %w", err)
	}

	now := n.clock()
	msg, buttons := n.digest(records, domain.DateOf(now.UTC()))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if n.MinInterval > 0 && !sub.LastInformed.IsZero() && now.Sub(sub.LastInformed) < n.MinInterval {
			report.Skipped = append(report.Skipped, sub.ChatID)
			n.Metrics.IncNotification("skipped")
			logger.Debug("notify_skipped", zap.Int64("chat_id", sub.ChatID), zap.Time("last_informed", sub.LastInformed))
			continue
		}

		if err := n.Sender.SendWithButtons(ctx, sub.ChatID, msg, buttons); err != nil {
			report.Failed = append(report.Failed, sub.ChatID)
			n.Metrics.IncNotification("failed")
			logger.Warn("notify_failed", zap.Int64("chat_id", sub.ChatID), zap.Error(err))
			continue
		}
		if _, err := n.Subscribers.TouchLastInformed(ctx, sub.ChatID); err != nil {
			logger.Warn("touch_last_informed_failed", zap.Int64("chat_id", sub.ChatID), zap.Error(err))
		}
		report.Sent = append(report.Sent, sub.ChatID)
		n.Metrics.IncNotification("sent")
	}

	logger.Info("notify_finished",
		zap.Int("domains", len(records)),
		zap.Int("sent", len(report.Sent)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (n *NotifierService) digest(records []domain.Record, today domain.Date) (string, [][]telegram.Button) {
	title := fmt.Sprintf("【域名即将到期】共 %d 个", len(records))
	msg := telegram.FormatDigest(title, records, today)

	limit := n.MaxButtons
	if limit <= 0 {
		limit = 10
	}
	var buttons [][]telegram.Button
	for i, rec := range records {
		if i >= limit {
			break
		}
		if row := callback.ExpiryButtons(rec.Name); len(row) > 0 {
			buttons = append(buttons, row)
		}
	}
	if len(records) > limit {
		msg += fmt.Sprintf("\n\n只为前 %d 个域名附带了按钮，其余请用 /update_domain 或 /delete_domain。", limit)
	}
	return msg, buttons
}

func (n *NotifierService) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}

func (n *NotifierService) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}
