package channel

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/prefs"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}
func (f *fakeBot) StopReceivingUpdates() {}
func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable type")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}
func (f *fakeBot) GetSelf() tgbotapi.User { return tgbotapi.User{UserName: "wingman_test_bot"} }

type fakeCommands struct {
	paused   bool
	resumed  bool
	feedback []prefs.Feedback
}

func (c *fakeCommands) Pause() error                          { c.paused = true; return nil }
func (c *fakeCommands) Resume() error                         { c.resumed = true; return nil }
func (c *fakeCommands) Stop() error                           { return nil }
func (c *fakeCommands) StatusText() string                    { return "running" }
func (c *fakeCommands) SubmitFeedback(fb prefs.Feedback) error {
	c.feedback = append(c.feedback, fb)
	return nil
}

func newTestChannel(t *testing.T, cmds Commands) (*TelegramChannel, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	factory := func(token, endpoint string, client *http.Client) (TelegramBot, error) {
		return bot, nil
	}
	ch, err := NewTelegramChannelWithFactory(
		config.TelegramConfig{Enabled: true, Token: "tok", ChatID: 42}, cmds, factory)
	if err != nil {
		t.Fatalf("NewTelegramChannelWithFactory: %v", err)
	}
	ch.SetBot(bot)
	return ch, bot
}

func TestNewTelegramChannelRequiresTokenAndChat(t *testing.T) {
	if _, err := NewTelegramChannelWithFactory(config.TelegramConfig{ChatID: 1}, nil, nil); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "t"}, nil, nil); err == nil {
		t.Error("missing chat id accepted")
	}
}

func TestSendFormatsNotification(t *testing.T) {
	ch, bot := newTestChannel(t, nil)
	err := ch.Send(bus.Notification{
		Type:  bus.TypeEventSuggestion,
		Title: "AI Founders Dinner",
		Body:  "Score 72, Thursday evening",
		Data:  map[string]any{"url": "https://lu.ma/x"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	text := bot.sent[0].Text
	if !strings.Contains(text, "AI Founders Dinner") || !strings.Contains(text, "https://lu.ma/x") {
		t.Errorf("message %q missing title or url", text)
	}
	if bot.sent[0].ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", bot.sent[0].ChatID)
	}
}

func message(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func TestHandleMessageCommands(t *testing.T) {
	cmds := &fakeCommands{}
	ch, bot := newTestChannel(t, cmds)

	ch.handleMessage(message(42, "/pause"))
	if !cmds.paused {
		t.Error("/pause not routed")
	}
	ch.handleMessage(message(42, "/resume"))
	if !cmds.resumed {
		t.Error("/resume not routed")
	}
	if len(bot.sent) != 2 {
		t.Errorf("sent %d replies, want 2", len(bot.sent))
	}
}

func TestHandleMessageRejectsWrongChat(t *testing.T) {
	cmds := &fakeCommands{}
	ch, _ := newTestChannel(t, cmds)
	ch.handleMessage(message(999, "/pause"))
	if cmds.paused {
		t.Error("command from foreign chat executed")
	}
}

func TestHandleMessageFeedback(t *testing.T) {
	cmds := &fakeCommands{}
	ch, _ := newTestChannel(t, cmds)

	ch.handleMessage(message(42, "/reject ev-12 not_my_industry crypto web3"))
	if len(cmds.feedback) != 1 {
		t.Fatalf("feedback not submitted")
	}
	fb := cmds.feedback[0]
	if fb.Action != prefs.ActionReject || fb.EventID != "ev-12" {
		t.Errorf("feedback = %+v, want reject for ev-12", fb)
	}
	if fb.Reason != prefs.ReasonNotMyIndustry {
		t.Errorf("reason = %q, want not_my_industry", fb.Reason)
	}
	if len(fb.Topics) != 2 || fb.Topics[0] != "crypto" {
		t.Errorf("topics = %v, want [crypto web3]", fb.Topics)
	}

	ch.handleMessage(message(42, "/rate ev-12 4 ai"))
	if len(cmds.feedback) != 2 {
		t.Fatal("rate not submitted")
	}
	if cmds.feedback[1].Rating != 4 {
		t.Errorf("rating = %d, want 4", cmds.feedback[1].Rating)
	}

	ch.handleMessage(message(42, "/rate ev-12 9"))
	if len(cmds.feedback) != 2 {
		t.Error("out-of-range rating accepted")
	}
}

func TestToTelegramHTML(t *testing.T) {
	got := toTelegramHTML("**bold** and `code` with <tags>")
	if !strings.Contains(got, "<b>bold</b>") {
		t.Errorf("bold not converted: %q", got)
	}
	if !strings.Contains(got, "<code>code</code>") {
		t.Errorf("code not converted: %q", got)
	}
	if !strings.Contains(got, "&lt;tags&gt;") {
		t.Errorf("html not escaped: %q", got)
	}
}
