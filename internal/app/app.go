package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"DomainWatch/domain"
	"DomainWatch/metrics"
	"DomainWatch/scheduler"
	"DomainWatch/telegram"
)

// ExpiryService 是定时任务需要的域名操作。
type ExpiryService interface {
	RefreshExpiring(ctx context.Context, days int) (domain.RefreshResult, error)
	ListExpiring(ctx context.Context, days int) ([]domain.Record, error)
}

type Notifier interface {
	Notify(ctx context.Context, records []domain.Record) (NotifyReport, error)
}

// App 把 Telegram 监听、每日提醒和管理接口放在一起运行，任何一个退出都会带着其他的一起停。
type App struct {
	Service   ExpiryService
	Notifier  Notifier
	Scheduler *scheduler.DailyScheduler
	Sender    telegram.Sender
	// OnMessage / OnCallback 为空时不启动 Telegram 监听
	OnMessage  func(*tgbotapi.Message)
	OnCallback func(*tgbotapi.CallbackQuery)
	HTTP       *http.Server

	AlertDays  int
	AlertHour  int
	AlertMin   int
	RunOnStart bool
	// Disabled 时只处理命令，不做每日提醒
	Disabled bool
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func (a *App) Run(ctx context.Context) error {
	if a.Service == nil || a.Notifier == nil || a.Scheduler == nil {
		return ErrMissingDependencies
	}
	logger := a.logger()
	g, ctx := errgroup.WithContext(ctx)

	if a.Sender != nil && (a.OnMessage != nil || a.OnCallback != nil) {
		g.Go(func() error {
			onCallback := a.OnCallback
			if onCallback == nil {
				onCallback = func(*tgbotapi.CallbackQuery) {}
			}
			onMessage := a.OnMessage
			if onMessage == nil {
				onMessage = func(*tgbotapi.Message) {}
			}
			err := a.Sender.StartListener(ctx, onCallback, onMessage)
			if err != nil && ctx.Err() == nil {
				logger.Error("telegram_listener_stopped", zap.Error(err))
				return err
			}
			return nil
		})
	}

	if a.HTTP != nil {
		g.Go(func() error {
			logger.Info("http_listening", zap.String("addr", a.HTTP.Addr))
			if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.HTTP.Shutdown(shutdownCtx)
		})
	}

	if a.Disabled {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
		return g.Wait()
	}

	g.Go(func() error {
		if a.RunOnStart {
			a.RunOnce(ctx)
		}
		logger.Info("scheduler_started", zap.Int("hour", a.AlertHour), zap.Int("minute", a.AlertMin), zap.Int("alert_days", a.AlertDays))
		err := a.Scheduler.Run(ctx, a.AlertHour, a.AlertMin, a.RunOnce)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// RunOnce 刷新窗口期内的域名后推送仍未续费的，刷新失败不影响推送。
func (a *App) RunOnce(ctx context.Context) {
	logger := a.logger()
	start := time.Now()

	refreshed, err := a.Service.RefreshExpiring(ctx, a.AlertDays)
	if err != nil {
		logger.Warn("refresh_expiring_failed", zap.Error(err))
	} else {
		logger.Info("refresh_expiring_done", zap.Int("updated", len(refreshed.Updated)), zap.Int("failed", len(refreshed.Failed)))
	}

	records, err := a.Service.ListExpiring(ctx, a.AlertDays)
	if err != nil {
		logger.Error("list_expiring_failed", zap.Error(err))
		return
	}
	a.Metrics.RecordRun(len(records), time.Now())

	report, err := a.Notifier.Notify(ctx, records)
	if err != nil {
		logger.Error("notify_failed", zap.String("run_id", report.RunID), zap.Error(err))
		return
	}
	logger.Info("daily_run_finished",
		zap.String("run_id", report.RunID),
		zap.Int("expiring", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
