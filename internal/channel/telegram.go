package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wingmanhq/wingman/internal/bus"
	"github.com/wingmanhq/wingman/internal/config"
	"github.com/wingmanhq/wingman/internal/prefs"
)

const telegramChannelName = "telegram"

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

type TelegramChannel struct {
	token      string
	chatID     int64
	bot        TelegramBot
	cmds       Commands
	cancel     context.CancelFunc
	botFactory BotFactory
}

func NewTelegramChannel(cfg config.TelegramConfig, cmds Commands) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, cmds, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with a
// custom bot factory (for testing).
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, cmds Commands, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	return &TelegramChannel{
		token:      cfg.Token,
		chatID:     cfg.ChatID,
		cmds:       cmds,
		botFactory: factory,
	}, nil
}

func (t *TelegramChannel) Name() string { return telegramChannelName }

func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, http.DefaultClient)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				t.handleMessage(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[telegram] polling started")
	return nil
}

// handleMessage routes a user message to a control command or a
// feedback signal. Messages from other chats are dropped.
func (t *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.Chat.ID != t.chatID {
		log.Printf("[telegram] rejected message from chat %d", msg.Chat.ID)
		return
	}
	if t.cmds == nil {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}

	var reply string
	switch strings.ToLower(fields[0]) {
	case "/pause":
		if err := t.cmds.Pause(); err != nil {
			reply = "Pause failed: " + err.Error()
		} else {
			reply = "Paused. Send /resume to continue."
		}
	case "/resume":
		if err := t.cmds.Resume(); err != nil {
			reply = "Resume failed: " + err.Error()
		} else {
			reply = "Resumed."
		}
	case "/stop":
		if err := t.cmds.Stop(); err != nil {
			reply = "Stop failed: " + err.Error()
		} else {
			reply = "Stopped."
		}
	case "/status":
		reply = t.cmds.StatusText()
	case "/accept", "/reject", "/rate":
		fb, err := parseFeedbackCommand(fields)
		if err != nil {
			reply = err.Error()
			break
		}
		if err := t.cmds.SubmitFeedback(fb); err != nil {
			reply = "Could not record feedback: " + err.Error()
		} else {
			reply = "Got it, thanks."
		}
	default:
		return
	}

	if reply != "" {
		t.sendText(reply)
	}
}

// parseFeedbackCommand builds a feedback signal from a command like
// "/reject ev-12 not_my_industry crypto web3" or "/rate ev-12 4 ai".
func parseFeedbackCommand(fields []string) (prefs.Feedback, error) {
	if len(fields) < 2 {
		return prefs.Feedback{}, fmt.Errorf("usage: %s <event-id> [...]", fields[0])
	}

	fb := prefs.Feedback{EventID: fields[1]}
	rest := fields[2:]

	switch strings.ToLower(fields[0]) {
	case "/accept":
		fb.Action = prefs.ActionAccept
		fb.Topics = rest
	case "/reject":
		fb.Action = prefs.ActionReject
		if len(rest) > 0 {
			switch rest[0] {
			case prefs.ReasonNotMyIndustry, prefs.ReasonBadTiming, prefs.ReasonTooExpensive:
				fb.Reason = rest[0]
				rest = rest[1:]
			}
		}
		fb.Topics = rest
	case "/rate":
		fb.Action = prefs.ActionRate
		if len(rest) == 0 {
			return prefs.Feedback{}, fmt.Errorf("usage: /rate <event-id> <1-5> [topics...]")
		}
		rating, err := strconv.Atoi(rest[0])
		if err != nil || rating < 1 || rating > 5 {
			return prefs.Feedback{}, fmt.Errorf("rating must be 1-5, got %q", rest[0])
		}
		fb.Rating = rating
		fb.Topics = rest[1:]
	}
	return fb, nil
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Printf("[telegram] stopped")
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
}

func (t *TelegramChannel) Send(n bus.Notification) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	return t.sendText(formatNotification(n))
}

func (t *TelegramChannel) sendText(content string) error {
	content = toTelegramHTML(content)

	// Telegram has a 4096 char limit per message
	const maxLen = 4000
	for len(content) > 0 {
		chunk := content
		if len(chunk) > maxLen {
			// Try to split at last newline before maxLen
			idx := strings.LastIndex(chunk[:maxLen], "\n")
			if idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:maxLen]
			}
		}
		content = content[len(chunk):]

		tgMsg := tgbotapi.NewMessage(t.chatID, chunk)
		tgMsg.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(tgMsg); err != nil {
			// Retry without HTML parse mode
			tgMsg.ParseMode = ""
			if _, err2 := t.bot.Send(tgMsg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
			return nil
		}
	}
	return nil
}

// formatNotification renders a notification as telegram text.
func formatNotification(n bus.Notification) string {
	var sb strings.Builder

	switch n.Type {
	case bus.TypeEventSuggestion:
		sb.WriteString("**Event suggestion**\n")
	case bus.TypeApplicationSubmitted:
		sb.WriteString("**Applied**\n")
	case bus.TypeManualRequired:
		sb.WriteString("**Needs your attention**\n")
	case bus.TypeDraftReview:
		sb.WriteString("**Draft for review**\n")
	}

	if n.Title != "" {
		sb.WriteString(n.Title)
		sb.WriteString("\n")
	}
	sb.WriteString(n.Body)

	if url, ok := n.Data["url"].(string); ok && url != "" {
		sb.WriteString("\n")
		sb.WriteString(url)
	}
	return sb.String()
}

// toTelegramHTML converts basic markdown to Telegram HTML.
func toTelegramHTML(s string) string {
	// Escape HTML entities first
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	// Code blocks: ```...``` -> <pre>...</pre>
	for {
		start := strings.Index(s, "```")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+3:], "```")
		if end == -1 {
			break
		}
		end += start + 3
		code := s[start+3 : end]
		// Strip optional language tag on first line
		if nl := strings.Index(code, "\n"); nl >= 0 {
			firstLine := strings.TrimSpace(code[:nl])
			if len(firstLine) > 0 && !strings.Contains(firstLine, " ") {
				code = code[nl+1:]
			}
		}
		s = s[:start] + "<pre>" + code + "</pre>" + s[end+3:]
	}

	// Inline code: `...` -> <code>...</code>
	for {
		start := strings.Index(s, "`")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+1:], "`")
		if end == -1 {
			break
		}
		end += start + 1
		s = s[:start] + "<code>" + s[start+1:end] + "</code>" + s[end+1:]
	}

	// Bold: **...** -> <b>...</b>
	for {
		start := strings.Index(s, "**")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+2:], "**")
		if end == -1 {
			break
		}
		end += start + 2
		s = s[:start] + "<b>" + s[start+2:end] + "</b>" + s[end+2:]
	}

	// Italic: *...* -> <i>...</i> (after bold to avoid conflicts)
	for {
		start := strings.Index(s, "*")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+1:], "*")
		if end == -1 {
			break
		}
		end += start + 1
		s = s[:start] + "<i>" + s[start+1:end] + "</i>" + s[end+1:]
	}

	return s
}
