// Package telegram implements a Telegram Bot API notifier.
package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
)

// maxMessageLen is Telegram's per-message text limit.
const maxMessageLen = 4096

// Telegram sends HTML-formatted messages to one chat.
type Telegram struct {
	botToken string
	chatID   int64
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// New creates a new Telegram notifier. The bot connects on first send.
func New(botToken string, chatID int64) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	switch id := cfg.Params["chat_id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: invalid chat_id %q", id)
		}
		t.chatID = parsed
	case int:
		t.chatID = int64(id)
	case int64:
		t.chatID = id
	case float64:
		t.chatID = int64(id)
	}
	if endpoint, ok := cfg.Params["endpoint"].(string); ok && endpoint != "" {
		t.endpoint = endpoint
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == 0 {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.endpoint == "" {
		t.endpoint = tgbotapi.APIEndpoint
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

func (t *Telegram) Send(ctx context.Context, result core.AnalysisResult) error {
	return t.sendMessage(ctx, formatResult(result))
}

func (t *Telegram) SendBatch(ctx context.Context, results []core.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}
	return t.sendMessage(ctx, "📊 "+html.EscapeString(notifier.BatchSummary(results)))
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	return t.sendMessage(ctx, "🔔 "+html.EscapeString(text))
}

func recommendationEmoji(r core.Recommendation) string {
	switch r {
	case core.RecommendationStrongBuy, core.RecommendationBuy:
		return "📈"
	case core.RecommendationSell, core.RecommendationStrongSell:
		return "📉"
	}
	return "⏸️"
}

// formatResult bolds the headline and escapes everything else.
func formatResult(r core.AnalysisResult) string {
	summary := notifier.Summary(r)
	headline, rest, _ := strings.Cut(summary, "\n")

	var sb strings.Builder
	sb.WriteString(recommendationEmoji(r.Recommendation))
	sb.WriteString(" <b>")
	sb.WriteString(html.EscapeString(headline))
	sb.WriteString("</b>")
	if r.Conflict != nil {
		sb.WriteString(" ⚠️")
	}
	if rest != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(rest))
	}
	return sb.String()
}

func (t *Telegram) connect() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.botToken, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.connect()
	if err != nil {
		return err
	}

	if len(text) > maxMessageLen {
		text = truncate(text, maxMessageLen)
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	return nil
}

// truncate cuts at a line boundary so no HTML tag is split.
func truncate(text string, limit int) string {
	cut := text[:limit-4]
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n…"
}
