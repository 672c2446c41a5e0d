package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

type handlerStub struct {
	calls   int
	proceed bool
	err     error
}

func (h *handlerStub) Handle(_ context.Context, _ *api.Update, _ *api.Chat, _ *api.User) (bool, error) {
	h.calls++
	return h.proceed, h.err
}

func freshMessageUpdate() *api.Update {
	return &api.Update{
		Message: &api.Message{
			Date: int(time.Now().Unix()),
			Chat: api.Chat{ID: -1, Type: "supergroup"},
			From: &api.User{ID: 7},
		},
	}
}

func TestProcessRejectsNilUpdate(t *testing.T) {
	t.Parallel()

	up := NewUpdateProcessor(nil)
	if err := up.Process(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a nil update")
	}
}

func TestProcessSkipsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	h := &handlerStub{proceed: true}
	up := NewUpdateProcessor(nil, h)

	stale := freshMessageUpdate()
	stale.Message.Date = int(time.Now().Add(-UpdateTimeout - time.Minute).Unix())

	if err := up.Process(context.Background(), stale); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.calls != 0 {
		t.Fatalf("handler ran %d times for a stale update", h.calls)
	}
}

func TestProcessStopsChainWhenHandlerHalts(t *testing.T) {
	t.Parallel()

	first := &handlerStub{proceed: true}
	second := &handlerStub{proceed: false}
	third := &handlerStub{proceed: true}
	up := NewUpdateProcessor(nil, first, second, third)

	if err := up.Process(context.Background(), freshMessageUpdate()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("chain head calls = %d/%d, want 1/1", first.calls, second.calls)
	}
	if third.calls != 0 {
		t.Fatal("chain continued past a halting handler")
	}
}

func TestProcessPropagatesHandlerErrors(t *testing.T) {
	t.Parallel()

	failing := &handlerStub{err: errors.New("handler broke")}
	tail := &handlerStub{proceed: true}
	up := NewUpdateProcessor(nil, failing, tail)

	if err := up.Process(context.Background(), freshMessageUpdate()); err == nil {
		t.Fatal("expected the handler error to propagate")
	}
	if tail.calls != 0 {
		t.Fatal("chain continued past a failing handler")
	}
}

func TestGetUNAndFullNameFallbacks(t *testing.T) {
	t.Parallel()

	user := &api.User{FirstName: "Jane", LastName: "Doe", UserName: "jdoe"}
	if got := GetUN(user); got != "jdoe" {
		t.Errorf("GetUN = %q", got)
	}
	if got := GetFullName(user); got != "Jane Doe" {
		t.Errorf("GetFullName = %q", got)
	}

	noHandle := &api.User{FirstName: "Jane"}
	if got := GetUN(noHandle); got != "Jane" {
		t.Errorf("GetUN fallback = %q", got)
	}

	handleOnly := &api.User{UserName: "jdoe"}
	if got := GetFullName(handleOnly); got != "jdoe" {
		t.Errorf("GetFullName fallback = %q", got)
	}

	if GetUN(nil) != "" || GetFullName(nil) != "" {
		t.Error("nil user must yield empty names")
	}
}

func TestExtractContentFromMessage(t *testing.T) {
	t.Parallel()

	msg := &api.Message{
		Text:    "hello",
		Caption: "caption",
		ReplyMarkup: &api.InlineKeyboardMarkup{
			InlineKeyboard: [][]api.InlineKeyboardButton{
				{{Text: "Click me"}, {Text: ""}},
			},
		},
	}
	if got := ExtractContentFromMessage(msg); got != "hello caption Click me" {
		t.Errorf("ExtractContentFromMessage = %q", got)
	}
	if got := ExtractContentFromMessage(nil); got != "" {
		t.Errorf("nil message content = %q", got)
	}
}
