package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DomainWatch/cfclient"
	"DomainWatch/config"
	"DomainWatch/domain"
)

var testToday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fakeService struct {
	records  map[string]domain.Record
	addErr   error
	listErr  error
	addMany  domain.AddManyResult
	manyArgs []string
	subs     map[int64]string
}

func (f *fakeService) Check(ctx context.Context, name string) (domain.Record, error) {
	n, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Record{}, err
	}
	rec, ok := f.records[n]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeService) Add(ctx context.Context, name string) (domain.Record, error) {
	if f.addErr != nil {
		return domain.Record{}, f.addErr
	}
	rec := recordIn(name, 90)
	f.records[name] = rec
	return rec, nil
}

func (f *fakeService) Update(ctx context.Context, name string) (domain.Record, error) {
	rec, ok := f.records[name]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeService) AddMany(ctx context.Context, names []string) (domain.AddManyResult, error) {
	f.manyArgs = names
	return f.addMany, nil
}

func (f *fakeService) Delete(ctx context.Context, name string) (string, error) {
	n, err := domain.NormalizeName(name)
	if err != nil {
		return "", err
	}
	delete(f.records, n)
	return n, nil
}

func (f *fakeService) DeleteMany(ctx context.Context, names []string) ([]string, error) {
	for _, n := range names {
		delete(f.records, n)
	}
	return names, nil
}

func (f *fakeService) List(ctx context.Context) ([]domain.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeService) ListExpiring(ctx context.Context, days int) ([]domain.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	limit := domain.DateOf(testToday).AddDays(days)
	var out []domain.Record
	for _, r := range f.records {
		if !r.ExpirationDate.After(limit.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeService) Subscribe(ctx context.Context, chatID int64, name string) (domain.Subscriber, error) {
	f.subs[chatID] = name
	return domain.Subscriber{ChatID: chatID, Name: name, Subscribed: true}, nil
}

func (f *fakeService) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	_, ok := f.subs[chatID]
	delete(f.subs, chatID)
	return ok, nil
}

func recordIn(name string, days int) domain.Record {
	return domain.Record{
		Name:           name,
		ExpirationDate: domain.DateOf(testToday).AddDays(days),
		Status:         "active",
		NameServers:    "ns1.example.net",
	}
}

func newTestHandler() (*CommandHandler, *fakeService) {
	svc := &fakeService{records: map[string]domain.Record{}, subs: map[int64]string{}}
	h := NewCommandHandler(svc, nil, &config.Config{AlertDays: 30}, nil, nil)
	h.now = func() time.Time { return testToday }
	return h, svc
}

func command(text string) *tgbotapi.Message {
	end := strings.IndexByte(text, ' ')
	if end < 0 {
		end = len(text)
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42, Title: "ops"},
		From:     &tgbotapi.User{ID: 7, UserName: "alice"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}
}

func TestCheckReplies(t *testing.T) {
	h, svc := newTestHandler()
	svc.records["example.com"] = recordIn("example.com", 12)

	reply := h.Reply(context.Background(), command("/check Example.com"))
	assert.Contains(t, reply, "域名: example.com")
	assert.Contains(t, reply, "剩余 12 天")

	reply = h.Reply(context.Background(), command("/check missing.com"))
	assert.Contains(t, reply, "不在跟踪列表中")

	reply = h.Reply(context.Background(), command("/check"))
	assert.Equal(t, "用法: /check <domain.com>", reply)

	reply = h.Reply(context.Background(), command("/check not_a_domain"))
	assert.Contains(t, reply, "域名格式不正确")
}

func TestAddDomainErrorsAreExplained(t *testing.T) {
	h, svc := newTestHandler()

	svc.addErr = domain.ErrAlreadyExists
	assert.Contains(t, h.Reply(context.Background(), command("/add_domain a.com")), "已在跟踪列表中")

	svc.addErr = domain.ErrFetchFailed
	assert.Contains(t, h.Reply(context.Background(), command("/add_domain a.com")), "无法获取域名 a.com")

	svc.addErr = errors.New("database is locked")
	assert.Contains(t, h.Reply(context.Background(), command("/add_domain a.com")), "database is locked")

	svc.addErr = nil
	assert.Contains(t, h.Reply(context.Background(), command("/add_domain a.com")), "已添加")
}

func TestAddDomainsSummarises(t *testing.T) {
	h, svc := newTestHandler()
	svc.addMany = domain.AddManyResult{
		Added:   []domain.Record{recordIn("a.com", 10)},
		Skipped: []string{"b.com"},
		Failed:  []string{"c.com"},
	}

	reply := h.Reply(context.Background(), command("/add_domains a.com, b.com c.com;bad"))
	assert.Equal(t, []string{"a.com", "b.com", "c.com"}, svc.manyArgs)
	assert.Contains(t, reply, "新增 1 个")
	assert.Contains(t, reply, "已存在 1 个: b.com")
	assert.Contains(t, reply, "查询失败 1 个: c.com")
	assert.Contains(t, reply, "格式错误 1 个: bad")
}

func TestCheckDomainsUsesDaysArgument(t *testing.T) {
	h, svc := newTestHandler()
	svc.records["soon.com"] = recordIn("soon.com", 3)
	svc.records["later.com"] = recordIn("later.com", 60)

	reply := h.Reply(context.Background(), command("/check_domains 7"))
	assert.Contains(t, reply, "soon.com")
	assert.NotContains(t, reply, "later.com")

	reply = h.Reply(context.Background(), command("/check_domains"))
	assert.Contains(t, reply, "未来 30 天")

	reply = h.Reply(context.Background(), command("/check_domains -1"))
	assert.Contains(t, reply, "用法")

	svc.records = map[string]domain.Record{}
	assert.Contains(t, h.Reply(context.Background(), command("/check_domains 5")), "没有即将到期")
}

func TestStorageErrorIsReported(t *testing.T) {
	h, svc := newTestHandler()
	svc.listErr = errors.New("connection refused")
	assert.Contains(t, h.Reply(context.Background(), command("/list")), "connection refused")
}

func TestSubscribeToggle(t *testing.T) {
	h, svc := newTestHandler()

	assert.Contains(t, h.Reply(context.Background(), command("/unsubscribe")), "没有订阅")
	assert.Contains(t, h.Reply(context.Background(), command("/subscribe")), "已订阅")
	assert.Equal(t, "ops", svc.subs[42])
	assert.Contains(t, h.Reply(context.Background(), command("/unsubscribe")), "已取消订阅")
}

func TestDeleteDomains(t *testing.T) {
	h, svc := newTestHandler()
	svc.records["a.com"] = recordIn("a.com", 1)

	reply := h.Reply(context.Background(), command("/delete_domains a.com,b.com,??"))
	assert.Contains(t, reply, "已删除 2 个域名: a.com, b.com")
	assert.Contains(t, reply, "格式错误: ??")
	assert.Empty(t, svc.records)
}

type stubCF struct{ zones []string }

func (s stubCF) FetchAllDomains(ctx context.Context, account config.CF) ([]cfclient.DomainInfo, error) {
	var out []cfclient.DomainInfo
	for _, z := range s.zones {
		out = append(out, cfclient.DomainInfo{Domain: z, Source: account.Label})
	}
	return out, nil
}

func (s stubCF) ListZones(ctx context.Context, account config.CF) ([]cfclient.ZoneDetail, error) {
	return nil, nil
}

func TestImportCF(t *testing.T) {
	h, svc := newTestHandler()
	assert.Contains(t, h.Reply(context.Background(), command("/import_cf")), "未配置 Cloudflare")

	h.CFClient = stubCF{zones: []string{"Z.com", "a.com"}}
	h.Accounts = []config.CF{{Label: "main"}}
	svc.addMany = domain.AddManyResult{Added: []domain.Record{recordIn("a.com", 5), recordIn("z.com", 6)}}

	reply := h.Reply(context.Background(), command("/import_cf"))
	assert.Equal(t, []string{"a.com", "z.com"}, svc.manyArgs)
	assert.Contains(t, reply, "Cloudflare 共 2 个域名")

	assert.Contains(t, h.Reply(context.Background(), command("/import_cf other")), "未找到账号 other")
}

func TestUnknownAndSimpleCommands(t *testing.T) {
	h, _ := newTestHandler()
	assert.Equal(t, "pong", h.Reply(context.Background(), command("/ping")))
	assert.Contains(t, h.Reply(context.Background(), command("/help")), "/add_domains")
	assert.Contains(t, h.Reply(context.Background(), command("/frobnicate")), "未知命令")
}

type recordingSender struct {
	NoopSender
	sent chan string
}

func (r *recordingSender) Send(ctx context.Context, chatID int64, msg string) error {
	r.sent <- msg
	return nil
}

func TestHandleMessageRepliesAndFiltersChats(t *testing.T) {
	h, _ := newTestHandler()
	sender := &recordingSender{sent: make(chan string, 1)}
	h.Sender = sender

	h.AllowedChats = []int64{1}
	h.HandleMessage(command("/ping"))
	select {
	case msg := <-sender.sent:
		t.Fatalf("unexpected reply %q to a chat outside the allow list", msg)
	case <-time.After(50 * time.Millisecond):
	}

	h.AllowedChats = []int64{42}
	h.HandleMessage(command("/ping"))
	select {
	case msg := <-sender.sent:
		assert.Equal(t, "pong", msg)
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}
}

func TestSplitTelegramText(t *testing.T) {
	lines := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		lines = append(lines, "- example-domain-number.com  2026-10-20（剩余 1 天）")
	}
	parts := splitTelegramText(strings.Join(lines, "\n"), tgMaxLen)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), tgMaxLen)
		assert.True(t, strings.HasPrefix(p, "- "), "parts split on line boundaries")
	}

	assert.Equal(t, []string{"short"}, splitTelegramText("  short  ", tgMaxLen))
}

func TestSplitTelegramTextKeepsRunesWhole(t *testing.T) {
	parts := splitTelegramText(strings.Repeat("域", 50), 10)
	for _, p := range parts {
		assert.True(t, len(p) <= 10)
		assert.Equal(t, strings.Count(p, "域")*3, len(p))
	}
}

func TestFormatOperator(t *testing.T) {
	assert.Equal(t, "unknown", FormatOperator(nil))
	assert.Equal(t, "@alice", FormatOperator(&tgbotapi.User{ID: 7, UserName: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Alice Liddell", FormatOperator(&tgbotapi.User{ID: 7, FirstName: "Alice", LastName: "Liddell"}))
	assert.Equal(t, "id:7", FormatOperator(&tgbotapi.User{ID: 7}))
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(nil, 42))
	assert.True(t, Allowed([]int64{1, 42}, 42))
	assert.False(t, Allowed([]int64{1}, 42))
}

func TestNoopSenderReportsNotConnected(t *testing.T) {
	var s Sender = NoopSender{}
	assert.ErrorIs(t, s.Send(context.Background(), 1, "hi"), ErrNotConnected)
	assert.ErrorIs(t, s.SendWithButtons(context.Background(), 1, "hi", nil), ErrNotConnected)
}
