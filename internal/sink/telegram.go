package sink

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"signal_engine/internal/models"
)

// TelegramSink announces emitted signals to a chat. Informational only;
// nobody confirms or executes anything from here.
type TelegramSink struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram sink")
	}
	return &TelegramSink{bot: b, chatID: chatID}, nil
}

func (t *TelegramSink) Publish(ctx context.Context, sig models.Signal) error {
	msg := tgbot.NewMessage(t.chatID, formatSignal(sig))
	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(err, "telegram sink: send")
	}
	return nil
}

func formatSignal(sig models.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s]\n", sig.Direction, sig.Symbol, sig.Strategy)
	fmt.Fprintf(&b, "confidence %.2f | regime %s (%.2f)\n", sig.Confidence, sig.Regime, sig.RegimeConfidence)
	if sig.Entry != nil {
		fmt.Fprintf(&b, "entry %.4f", *sig.Entry)
		if sig.StopLoss != nil {
			fmt.Fprintf(&b, " | sl %.4f", *sig.StopLoss)
		}
		if sig.TakeProfit != nil {
			fmt.Fprintf(&b, " | tp %.4f", *sig.TakeProfit)
		}
		b.WriteString("\n")
	}
	if sig.Rationale != "" {
		b.WriteString(sig.Rationale)
	}
	return b.String()
}
