package callback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DomainWatch/domain"
	"DomainWatch/telegram"
)

type fakeService struct {
	updateErr error
	deleted   []string
}

func (f *fakeService) Update(ctx context.Context, name string) (domain.Record, error) {
	if f.updateErr != nil {
		return domain.Record{}, f.updateErr
	}
	return domain.Record{Name: name, ExpirationDate: domain.Today().AddDays(365)}, nil
}

func (f *fakeService) Delete(ctx context.Context, name string) (string, error) {
	f.deleted = append(f.deleted, name)
	return name, nil
}

func TestParseData(t *testing.T) {
	action, name, err := ParseData("refresh|Example.COM")
	require.NoError(t, err)
	assert.Equal(t, ActionRefresh, action)
	assert.Equal(t, "example.com", name)

	action, _, err = ParseData("noop")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action)

	for _, bad := range []string{"", "refresh", "pause|acc|example.com", "explode|example.com", "delete|not a domain"} {
		_, _, err := ParseData(bad)
		assert.ErrorIs(t, err, ErrInvalidData, bad)
	}
}

func TestExpiryButtonsRoundTrip(t *testing.T) {
	for _, b := range ExpiryButtons("example.com") {
		_, name, err := ParseData(b.CallbackData)
		require.NoError(t, err)
		assert.Equal(t, "example.com", name)
		assert.LessOrEqual(t, len(b.CallbackData), 64)
	}
}

func TestExpiryButtonsSkipsLongNames(t *testing.T) {
	long := strings.Repeat("a", 50) + ".com"
	assert.Nil(t, ExpiryButtons(long))
}

func TestProcessRefresh(t *testing.T) {
	svc := &fakeService{}
	h := &Handler{Service: svc}

	reply, buttons := h.Process(context.Background(), "refresh|example.com", &tgbotapi.User{UserName: "bob"})
	assert.Contains(t, reply, "已刷新")
	assert.Contains(t, reply, "example.com")
	assert.Nil(t, buttons)

	svc.updateErr = domain.ErrNotFound
	reply, _ = h.Process(context.Background(), "refresh|example.com", nil)
	assert.Contains(t, reply, "已不在跟踪列表中")

	svc.updateErr = errors.New("disk full")
	reply, _ = h.Process(context.Background(), "refresh|example.com", nil)
	assert.Contains(t, reply, "disk full")
}

func TestProcessDeleteNeedsConfirmation(t *testing.T) {
	svc := &fakeService{}
	h := &Handler{Service: svc}
	user := &tgbotapi.User{UserName: "bob"}

	reply, buttons := h.Process(context.Background(), "delete|example.com", user)
	assert.Contains(t, reply, "二次确认")
	require.Len(t, buttons, 1)
	require.Len(t, buttons[0], 2)
	assert.Equal(t, "delete_confirm|example.com", buttons[0][0].CallbackData)
	assert.Empty(t, svc.deleted)

	reply, _ = h.Process(context.Background(), "delete_cancel|example.com", user)
	assert.Contains(t, reply, "已取消删除")
	assert.Empty(t, svc.deleted)

	reply, _ = h.Process(context.Background(), buttons[0][0].CallbackData, user)
	assert.Contains(t, reply, "已删除域名: example.com (操作人: @bob)")
	assert.Equal(t, []string{"example.com"}, svc.deleted)
}

func TestProcessInvalidData(t *testing.T) {
	h := &Handler{Service: &fakeService{}}
	reply, _ := h.Process(context.Background(), "garbage", nil)
	assert.Contains(t, reply, "按钮已失效")

	reply, _ = h.Process(context.Background(), "noop", nil)
	assert.Empty(t, reply)
}

type recordingSender struct {
	telegram.NoopSender
	sent chan string
}

func (r *recordingSender) SendWithButtons(ctx context.Context, chatID int64, msg string, buttons [][]telegram.Button) error {
	r.sent <- msg
	return nil
}

func callbackQuery(chatID int64, data string, from *tgbotapi.User) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    from,
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}
}

func TestHandleCallbackFiltersChatsAndNamesOperator(t *testing.T) {
	sender := &recordingSender{sent: make(chan string, 1)}
	h := &Handler{Service: &fakeService{}, Sender: sender, AllowedChats: []int64{1}}

	h.HandleCallback(callbackQuery(42, "delete_cancel|example.com", &tgbotapi.User{ID: 9}))
	select {
	case msg := <-sender.sent:
		t.Fatalf("unexpected reply %q to a chat outside the allow list", msg)
	case <-time.After(50 * time.Millisecond):
	}

	h.AllowedChats = []int64{42}
	h.HandleCallback(callbackQuery(42, "delete_cancel|example.com", &tgbotapi.User{ID: 9, FirstName: "Carol"}))
	select {
	case msg := <-sender.sent:
		assert.Equal(t, "已取消删除: example.com (操作人: Carol)", msg)
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}

	h.AllowedChats = nil
	h.HandleCallback(callbackQuery(7, "delete_cancel|example.com", &tgbotapi.User{ID: 9}))
	select {
	case msg := <-sender.sent:
		assert.Contains(t, msg, "操作人: id:9")
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}
}
