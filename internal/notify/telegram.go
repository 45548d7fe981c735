package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const timeLayout = "02.01.2006 15:04"

// sender is the subset of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts HTML messages to every configured chat.
type Telegram struct {
	bot     sender
	chatIDs []int64
}

func NewTelegram(token string, chatIDs []int64) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("no telegram chat ids configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatIDs: chatIDs}, nil
}

// Notify sends to each chat and returns the joined delivery errors.
func (t *Telegram) Notify(ctx context.Context, e Event) error {
	text := Format(e)
	var errs []error
	for _, id := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func money(e Event) string {
	return e.Amount.StringFixed(2) + " $"
}

func wallet(w string) string {
	return "\n\n👛 Wallet:\n<pre><code>" + html.EscapeString(w) + "</code></pre>"
}

// Format renders the HTML body for an event.
func Format(e Event) string {
	var b strings.Builder
	email := html.EscapeString(e.Email)

	switch e.Kind {
	case KindRegistration:
		fmt.Fprintf(&b, "<b>🆕 New registration</b>\n👤 Email: %s", email)
	case KindReferralSignup:
		fmt.Fprintf(&b, "<b>👥 Referral registration</b>\n👤 New: %s\n🤝 Invited by: %s", email, html.EscapeString(e.Inviter))
	case KindBalanceCredit:
		fmt.Fprintf(&b, "<b>💰 Balance credit</b>\n👤 %s\n💵 Amount: %s", email, money(e))
		if e.Comment != "" {
			fmt.Fprintf(&b, "\n🏷 Source: %s", html.EscapeString(e.Comment))
		}
	case KindReferralBonus:
		fmt.Fprintf(&b, "<b>💸 Referral bonus</b>\n👤 %s\n🔗 Depth: %d\n💰 Amount: %s", email, e.Depth, money(e))
	case KindWithdrawalRequested:
		fmt.Fprintf(&b, "<b>📤 Withdrawal request</b>\n👤 %s\n💸 Amount: %s", email, money(e))
		if !e.At.IsZero() {
			fmt.Fprintf(&b, "\n🕓 Date: %s", e.At.Format(timeLayout))
		}
		b.WriteString(wallet(e.Wallet))
	case KindWithdrawalConfirmed:
		fmt.Fprintf(&b, "<b>✅ Withdrawal confirmed</b>\n👤 %s\n💵 %s", email, money(e))
	case KindWithdrawalRejected:
		fmt.Fprintf(&b, "<b>❌ Withdrawal rejected</b>\n👤 %s\n💵 Refunded: %s", email, money(e))
	case KindDepositRequested:
		fmt.Fprintf(&b, "<b>🆕 Deposit request</b>\n👤 Email: %s\n💵 Amount: %s", email, money(e))
		if !e.At.IsZero() {
			fmt.Fprintf(&b, "\n🕓 Date: %s", e.At.Format(timeLayout))
		}
		b.WriteString(wallet(e.Wallet))
	case KindDepositConfirmed:
		fmt.Fprintf(&b, "<b>💰 Deposit confirmed</b>\n👤 Email: %s\n💵 Amount: %s", email, money(e))
		if e.TxHash != "" {
			fmt.Fprintf(&b, "\n🧾 TXID:\n<pre><code>%s</code></pre>", html.EscapeString(e.TxHash))
		}
	case KindPurchaseRequested:
		fmt.Fprintf(&b, "🕓 <b>Level purchase requested</b>\n👤 User: %s\n📦 Level: %s\n💵 Price: %s", email, html.EscapeString(e.Level), money(e))
	case KindPurchaseStatus:
		fmt.Fprintf(&b, "%s <b>Level purchase updated</b>\n👤 User: %s\n📦 Level: %s\n📄 New status: %s",
			statusEmoji(e.Status), email, html.EscapeString(e.Level), html.EscapeString(e.Status))
	case KindClaimStarted:
		fmt.Fprintf(&b, "<b>🛴 Panel started</b>\n👤 %s", email)
	case KindYieldClaimed:
		fmt.Fprintf(&b, "<b>🛴 Daily yield claimed</b>\n👤 %s\n💰 Profit: %s", email, money(e))
	case KindAdminAdjustment:
		fmt.Fprintf(&b, "<b>🛠️ Manual balance adjustment</b>\n👤 %s\n💵 Amount: %s", email, money(e))
		if e.Comment != "" {
			fmt.Fprintf(&b, "\n📝 %s", html.EscapeString(e.Comment))
		}
	default:
		fmt.Fprintf(&b, "<b>ℹ️ %s</b>\n👤 %s", html.EscapeString(string(e.Kind)), email)
	}
	return b.String()
}

func statusEmoji(status string) string {
	switch status {
	case "approved":
		return "✅"
	case "rejected":
		return "❌"
	case "pending":
		return "🕓"
	}
	return "ℹ️"
}
