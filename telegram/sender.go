package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"DomainWatch/config"
)

// Sender 抽象出 Telegram 发送能力，便于替换和测试。
type Sender interface {
	Send(ctx context.Context, chatID int64, msg string) error
	SendWithButtons(ctx context.Context, chatID int64, msg string, buttons [][]Button) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error
}

// ErrNotConnected 表示没有可用的 Telegram 连接，消息没有发出。
var ErrNotConnected = errors.New("telegram not connected")

// NoopSender 是没有连接时的占位实现，所有发送都返回 ErrNotConnected。
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, chatID int64, msg string) error { return ErrNotConnected }
func (NoopSender) SendWithButtons(ctx context.Context, chatID int64, msg string, buttons [][]Button) error {
	return ErrNotConnected
}
func (NoopSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return ErrNotConnected
}
func (NoopSender) StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error {
	<-ctx.Done()
	return nil
}

// BotSender 实现了带简单重试和节流的 Telegram 发送能力。
type BotSender struct {
	bot        *tgbotapi.BotAPI
	retryTimes int
	rate       *time.Ticker
	timeout    time.Duration
	logger     *zap.Logger
}

func NewBotSender(cfg config.Telegram, logger *zap.Logger) (*BotSender, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = time.Second
	}
	logger.Info("telegram_connected", zap.String("bot", bot.Self.UserName))
	return &BotSender{
		bot:        bot,
		retryTimes: cfg.RetryTimes,
		rate:       time.NewTicker(interval),
		timeout:    cfg.SendTimeout,
		logger:     logger,
	}, nil
}

func (s *BotSender) Close() {
	s.rate.Stop()
}

const tgMaxLen = 3800

func (s *BotSender) Send(ctx context.Context, chatID int64, msg string) error {
	return s.SendWithButtons(ctx, chatID, msg, nil)
}

// SendWithButtons 超长消息会被拆成多段，按钮只挂在最后一段上。
func (s *BotSender) SendWithButtons(ctx context.Context, chatID int64, msg string, buttons [][]Button) error {
	parts := splitTelegramText(msg, tgMaxLen)
	for i, p := range parts {
		if len(parts) > 1 {
			p = fmt.Sprintf("(%d/%d)\n%s", i+1, len(parts), p)
		}
		message := tgbotapi.NewMessage(chatID, p)
		message.DisableWebPagePreview = true
		if i == len(parts)-1 && len(buttons) > 0 {
			message.ReplyMarkup = inlineKeyboard(buttons)
		}
		if err := s.sendWithRetry(ctx, message); err != nil {
			s.logger.Warn("telegram_send_failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *BotSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	_, err := s.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func splitTelegramText(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{""}
	}
	if len(s) <= limit {
		return []string{s}
	}

	var out []string
	for len(s) > limit {
		// 1) 优先在 limit 以内找最后一个换行
		cut := strings.LastIndex(s[:limit], "\n")
		// 2) 换行不好用，再找空格
		if cut < limit/3 {
			cut = strings.LastIndex(s[:limit], " ")
		}
		// 3) 还是没有就硬切，退到 UTF-8 字符边界
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8Start(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}

		part := strings.TrimSpace(s[:cut])
		if part != "" {
			out = append(out, part)
		}
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func (s *BotSender) sendWithRetry(ctx context.Context, msg tgbotapi.Chattable) error {
	for attempt := 0; attempt <= s.retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.rate.C:
			result := make(chan error, 1)
			sendCtx := ctx
			cancel := func() {}
			if s.timeout > 0 {
				sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
			}

			go func() {
				_, err := s.bot.Send(msg)
				result <- err
			}()

			select {
			case <-sendCtx.Done():
				cancel()
				if attempt == s.retryTimes {
					return fmt.Errorf("发送 Telegram 超时: %w", sendCtx.Err())
				}
				continue
			case err := <-result:
				cancel()
				if err == nil {
					return nil
				}
				if attempt == s.retryTimes {
					return fmt.Errorf("发送 Telegram 失败: %w", err)
				}
				time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			}
		}
	}
	return nil
}

// StartListener 长轮询更新，直到 ctx 结束。回调的应答交给 handleCallback 自己做。
func (s *BotSender) StartListener(ctx context.Context, handleCallback func(cb *tgbotapi.CallbackQuery), handleMessage func(msg *tgbotapi.Message)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.CallbackQuery != nil && handleCallback != nil {
				handleCallback(up.CallbackQuery)
			}
			if up.Message != nil && handleMessage != nil {
				handleMessage(up.Message)
			}
		}
	}
}
