package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"DomainWatch/cfclient"
	"DomainWatch/config"
	"DomainWatch/domain"
)

var (
	importCloudflare bool
	importAccount    string
	expiringDays     int
)

func init() {
	importCmd.Flags().BoolVar(&importCloudflare, "cloudflare", false, "also import zones from the configured Cloudflare accounts")
	importCmd.Flags().StringVar(&importAccount, "account", "", "only import from the Cloudflare account with this label")
	expiringCmd.Flags().IntVar(&expiringDays, "days", 0, "window in days (default alertDays from config)")
}

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "从域名文件或 Cloudflare 批量添加域名",
	Long: `import 读取每行一个域名的文本文件（# 开头为注释），不指定文件时使用配置里的 domainFiles。
已跟踪的域名会被跳过，查询失败的域名会列出来。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		files := args
		if len(files) == 0 {
			files = e.cfg.DomainFiles
		}
		if len(files) == 0 && !importCloudflare {
			return fmt.Errorf("没有可导入的来源：请指定文件、配置 domainFiles 或使用 --cloudflare")
		}

		res, err := importNames(ctx, e, files, importCloudflare, importAccount)
		if err != nil {
			return err
		}
		printAddMany(cmd.OutOrStdout(), res)
		return nil
	},
}

// importNames 合并文件和 Cloudflare 的域名后交给 AddMany。
func importNames(ctx context.Context, e *env, files []string, withCloudflare bool, account string) (domain.AddManyResult, error) {
	var names []string
	if len(files) > 0 {
		fromFiles, err := domain.NewFileSource(files...).LoadNames()
		if err != nil {
			return domain.AddManyResult{}, err
		}
		names = append(names, fromFiles...)
	}

	if withCloudflare {
		accounts := e.cfg.CloudflareAccounts
		if account != "" {
			acc, ok := e.cfg.AccountByLabel(account)
			if !ok {
				return domain.AddManyResult{}, fmt.Errorf("未找到 Cloudflare 账号 %s", account)
			}
			accounts = []config.CF{acc}
		}
		fromCF, err := cfclient.CollectDomains(ctx, cfclient.NewClient(), accounts, e.logger)
		if err != nil {
			return domain.AddManyResult{}, err
		}
		names = append(names, fromCF...)
	}

	e.logger.Info("import_started", zap.Int("names", len(names)), zap.Strings("files", files), zap.Bool("cloudflare", withCloudflare))
	return e.service.AddMany(ctx, names)
}

func printAddMany(w io.Writer, res domain.AddManyResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tEXPIRES\tSTATUS")
	for _, rec := range res.Added {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Name, rec.ExpirationDate, rec.Status)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nadded %d, skipped %d, failed %d, invalid %d\n", len(res.Added), len(res.Skipped), len(res.Failed), len(res.Invalid))
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, "failed: %s\n", strings.Join(res.Failed, ", "))
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(w, "invalid: %s\n", strings.Join(res.Invalid, ", "))
	}
}

var expiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "列出即将到期的域名",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		days := e.cfg.AlertDays
		if cmd.Flags().Changed("days") {
			days = expiringDays
		}
		records, err := e.service.ListExpiring(ctx, days)
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records, domain.Today())
		return nil
	},
}

func printRecords(w io.Writer, records []domain.Record, today domain.Date) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tEXPIRES\tDAYS\tSTATUS\tNAMESERVERS")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", rec.Name, rec.ExpirationDate, rec.DaysLeft(today), rec.Status, rec.NameServers)
	}
	_ = tw.Flush()
}
