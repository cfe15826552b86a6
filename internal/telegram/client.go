// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// current supplies the view for /summary. It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, current func() dashboard.View) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, current)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, current func() dashboard.View) {
	var reply tgbotapi.MessageConfig
	switch msg.Command() {
	case "ping":
		reply = tgbotapi.NewMessage(msg.Chat.ID, "Pong")
	case "summary":
		reply = tgbotapi.NewMessage(msg.Chat.ID, formatSummary(current(), time.Now()))
		reply.ParseMode = "MarkdownV2"
	default:
		return
	}
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a refresh error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(refreshErr error) error {
	text := fmt.Sprintf("⚠️ *MT5 refresh error*\n`%s`", escapeMarkdownV2(refreshErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *MT5 refresh recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendSummary sends the headline KPIs of view.
func (c *Client) SendSummary(view dashboard.View) error {
	return c.sendMarkdownV2(formatSummary(view, time.Now()))
}

// formatSummary renders the view's KPIs as a MarkdownV2 message.
func formatSummary(view dashboard.View, now time.Time) string {
	g := view.Snapshot.General
	var b strings.Builder

	b.WriteString("📊 *EA Performance*\n")
	b.WriteString(escapeMarkdownV2(fmt.Sprintf("%s → %s",
		view.Criteria.DateFrom.Format(analytics.DateLayout),
		view.Criteria.DateTo.Format(analytics.DateLayout))))
	b.WriteString("\n\n")

	if g.TotalTrades == 0 {
		b.WriteString("No trades match the current filters\\.\n")
	} else {
		emoji := "📈"
		if g.NetProfit < 0 {
			emoji = "📉"
		}
		fmt.Fprintf(&b, "%s Net: *%s*\n", emoji, escapeMarkdownV2(formatMoney(g.NetProfit)))
		fmt.Fprintf(&b, "Trades: %s \\(%d W / %d L\\)\n",
			escapeMarkdownV2(humanize.Comma(int64(g.TotalTrades))), g.TotalWins, g.TotalLosses)
		fmt.Fprintf(&b, "Win rate: %s\n", escapeMarkdownV2(fmt.Sprintf("%.1f%%", g.WinRate)))
		fmt.Fprintf(&b, "Profit factor: %s\n", escapeMarkdownV2(formatProfitFactor(g.ProfitFactor)))
		fmt.Fprintf(&b, "Streaks: %d wins / %d losses\n", g.MaxWinStreak, g.MaxLossStreak)
		fmt.Fprintf(&b, "Costs: %s\n", escapeMarkdownV2(formatMoney(g.TotalCosts)))

		if top := view.Snapshot.TopEA; top != nil {
			fmt.Fprintf(&b, "\n🏆 Top EA: *%s* %s\n",
				escapeMarkdownV2(top.EAID), escapeMarkdownV2(formatMoney(top.Net)))
		}
	}

	if !view.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "\n🕒 Updated %s\n", escapeMarkdownV2(humanize.RelTime(view.UpdatedAt, now, "ago", "from now")))
	}
	if view.Error != "" {
		fmt.Fprintf(&b, "⚠️ Last refresh failed: `%s`\n", escapeMarkdownV2(view.Error))
	}
	return b.String()
}

func formatMoney(v float64) string {
	s := humanize.CommafWithDigits(math.Abs(v), 2)
	if !strings.Contains(s, ".") {
		s += ".00"
	} else if i := strings.IndexByte(s, '.'); len(s)-i == 2 {
		s += "0"
	}
	if v < 0 {
		return "-" + s
	}
	return "+" + s
}

func formatProfitFactor(pf float64) string {
	if pf >= analytics.ProfitFactorInfinite {
		return "∞"
	}
	return fmt.Sprintf("%.2f", pf)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
