package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *CommandHandler) handleCheck(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	name := firstArg(args)
	if name == "" {
		return "用法: /check <domain.com>", nil
	}
	rec, err := h.Service.Check(ctx, name)
	if err != nil {
		return describeError(name, err), err
	}
	return FormatRecord(rec, h.today()), nil
}

func (h *CommandHandler) handleAddDomain(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	name := firstArg(args)
	if name == "" {
		return "用法: /add_domain <domain.com>", nil
	}
	rec, err := h.Service.Add(ctx, name)
	if err != nil {
		return describeError(name, err), err
	}
	return "已添加\n" + FormatRecord(rec, h.today()), nil
}

func (h *CommandHandler) handleUpdateDomain(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	name := firstArg(args)
	if name == "" {
		return "用法: /update_domain <domain.com>", nil
	}
	rec, err := h.Service.Update(ctx, name)
	if err != nil {
		return describeError(name, err), err
	}
	return "已更新\n" + FormatRecord(rec, h.today()), nil
}

func (h *CommandHandler) handleDeleteDomain(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	name := firstArg(args)
	if name == "" {
		return "用法: /delete_domain <domain.com>", nil
	}
	deleted, err := h.Service.Delete(ctx, name)
	if err != nil {
		return describeError(name, err), err
	}
	return fmt.Sprintf("已删除域名 %s\n操作人: %s", deleted, FormatOperator(msg.From)), nil
}
