package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"DomainWatch/callback"
	"DomainWatch/config"
	"DomainWatch/domain"
	"DomainWatch/httpapi"
	"DomainWatch/internal/app"
	"DomainWatch/logging"
	"DomainWatch/metrics"
	"DomainWatch/registry"
	"DomainWatch/scheduler"
	"DomainWatch/storage"
	"DomainWatch/telegram"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "domainwatch",
	Short: "域名到期提醒机器人",
	Long: `domainwatch 跟踪域名的注册信息，并在到期前通过 Telegram 提醒订阅的聊天。

配置来自 YAML 文件、.env 和环境变量，后者覆盖前者。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file, empty to use environment only")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(expiringCmd)
}

// env 是每个子命令共用的依赖。
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *storage.Store
	metrics *metrics.Metrics
	service *domain.Service
}

// setup 加载配置、打开数据库并按需迁移；调用方负责 close。
func setup(ctx context.Context) (*env, error) {
	path := cfgFile
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
			// 默认配置文件不存在时只用环境变量
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if !cfg.Database.SkipMigrate {
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	client, err := registry.New(cfg.Registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	fetcher := &app.Fetcher{
		Client:      client,
		Timeout:     cfg.Registry.Timeout,
		Concurrency: cfg.Registry.Concurrency,
		Logger:      logger,
		Metrics:     m,
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		service: domain.NewService(store, fetcher, logger),
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("store_close_failed", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动 Telegram 机器人、每日提醒和管理接口",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()
		cfg, logger := e.cfg, e.logger

		// 没有 Telegram 连接时命令无法回复、提醒也发不出去，直接退出
		sender, err := telegram.NewBotSender(cfg.Telegram, logger)
		if err != nil {
			logger.Error("telegram_init_failed", zap.Error(err))
			return fmt.Errorf("连接 Telegram 失败: %w", err)
		}
		defer sender.Close()

		commandHandler := telegram.NewCommandHandler(e.service, sender, cfg, logger, e.metrics)
		callbackHandler := &callback.Handler{
			Service:      e.service,
			Sender:       sender,
			AllowedChats: cfg.Telegram.AllowedChats,
			Timeout:      cfg.Telegram.CommandTimeout,
			Logger:       logger,
		}
		notifier := &app.NotifierService{
			Sender:      sender,
			Subscribers: e.store,
			MinInterval: cfg.Notify.MinInterval,
			Logger:      logger,
			Metrics:     e.metrics,
		}

		var server *http.Server
		if cfg.HTTP.Addr != "" {
			server = &http.Server{
				Addr: cfg.HTTP.Addr,
				Handler: httpapi.NewRouter(&httpapi.Handler{
					DB:        e.store,
					Domains:   e.service,
					AlertDays: cfg.AlertDays,
					Metrics:   e.metrics,
					Logger:    logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}
		}

		if len(cfg.DomainFiles) > 0 {
			go func() {
				if _, err := importNames(ctx, e, cfg.DomainFiles, false, ""); err != nil {
					logger.Warn("startup_import_failed", zap.Error(err))
				}
			}()
		}

		if cfg.Schedule.Disabled {
			logger.Info("schedule_disabled")
		}
		application := &app.App{
			Service:    e.service,
			Notifier:   notifier,
			Scheduler:  scheduler.NewDailyScheduler(),
			Sender:     sender,
			OnMessage:  commandHandler.HandleMessage,
			OnCallback: callbackHandler.HandleCallback,
			HTTP:       server,
			AlertDays:  cfg.AlertDays,
			AlertHour:  cfg.Schedule.Hour,
			AlertMin:   cfg.Schedule.Minute,
			Disabled:   cfg.Schedule.Disabled,
			RunOnStart: cfg.Schedule.RunOnStart,
			Logger:     logger,
			Metrics:    e.metrics,
		}
		if err := application.Run(ctx); err != nil {
			logger.Error("app_stopped", zap.Error(err))
			return err
		}
		logger.Info("app_stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()
		if e.cfg.Database.SkipMigrate {
			// setup 跳过了迁移，这里显式执行
			if err := e.store.Migrate(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
