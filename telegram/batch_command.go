package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"DomainWatch/cfclient"
	"DomainWatch/config"
	"DomainWatch/domain"
)

func (h *CommandHandler) handleAddDomains(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	names, invalid := domain.ParseNames(args)
	if len(names) == 0 && len(invalid) == 0 {
		return "用法: /add_domains <a.com,b.com,...>", nil
	}
	res, err := h.Service.AddMany(ctx, names)
	res.Invalid = append(invalid, res.Invalid...)
	if err != nil {
		return formatAddMany(res, h.today()) + "\n" + describeError("批量添加", err), err
	}
	return formatAddMany(res, h.today()), nil
}

func (h *CommandHandler) handleDeleteDomains(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	names, invalid := domain.ParseNames(args)
	if len(names) == 0 {
		if len(invalid) > 0 {
			return "没有可删除的有效域名: " + joinNames(invalid), nil
		}
		return "用法: /delete_domains <a.com,b.com,...>", nil
	}
	deleted, err := h.Service.DeleteMany(ctx, names)

	var b strings.Builder
	if len(deleted) > 0 {
		fmt.Fprintf(&b, "已删除 %d 个域名: %s", len(deleted), joinNames(deleted))
	}
	if len(invalid) > 0 {
		fmt.Fprintf(&b, "\n格式错误: %s", joinNames(invalid))
	}
	if err != nil {
		fmt.Fprintf(&b, "\n%s", describeError("批量删除", err))
		return strings.TrimSpace(b.String()), err
	}
	return strings.TrimSpace(b.String()), nil
}

// handleImportCF 把 Cloudflare 账号下的 Zone 加入跟踪列表，参数为账号标签，省略时导入全部账号。
func (h *CommandHandler) handleImportCF(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	if h.CFClient == nil || len(h.Accounts) == 0 {
		return "未配置 Cloudflare 账号，无法导入。", nil
	}
	accounts := h.Accounts
	if label := firstArg(args); label != "" {
		acc, ok := config.FindAccount(h.Accounts, label)
		if !ok {
			labels := make([]string, 0, len(h.Accounts))
			for _, a := range h.Accounts {
				labels = append(labels, a.Label)
			}
			return fmt.Sprintf("未找到账号 %s，可用账号: %s", label, joinNames(labels)), nil
		}
		accounts = []config.CF{acc}
	}

	names, err := cfclient.CollectDomains(ctx, h.CFClient, accounts, h.Logger)
	if err != nil {
		return fmt.Sprintf("获取 Cloudflare 域名失败: %v", err), err
	}
	if len(names) == 0 {
		return "Cloudflare 账号下没有域名。", nil
	}
	res, err := h.Service.AddMany(ctx, names)
	reply := fmt.Sprintf("Cloudflare 共 %d 个域名\n%s", len(names), formatAddMany(res, h.today()))
	if err != nil {
		return reply + "\n" + describeError("导入", err), err
	}
	return reply, nil
}

func formatAddMany(res domain.AddManyResult, today domain.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "新增 %d 个", len(res.Added))
	for _, rec := range res.Added {
		fmt.Fprintf(&b, "\n- %s  %s（%s）", rec.Name, rec.ExpirationDate, daysLeftText(rec.DaysLeft(today)))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&b, "\n已存在 %d 个: %s", len(res.Skipped), joinNames(res.Skipped))
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(&b, "\n查询失败 %d 个: %s", len(res.Failed), joinNames(res.Failed))
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(&b, "\n格式错误 %d 个: %s", len(res.Invalid), joinNames(res.Invalid))
	}
	return b.String()
}
