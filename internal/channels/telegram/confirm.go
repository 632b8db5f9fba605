package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/google/uuid"
)

const (
	confirmCallbackPrefix = "confirm:"

	// approvalTimeout bounds how long a turn waits for the user's verdict.
	approvalTimeout = 2 * time.Minute
)

// confirmRouter implements approval prompts over inline keyboards. Each
// request gets a unique callback token; the answer is routed back to
// the waiting turn through a per-request channel.
type confirmRouter struct {
	adapter *Adapter
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan bool
}

func newConfirmRouter(adapter *Adapter, logger *slog.Logger) *confirmRouter {
	return &confirmRouter{
		adapter: adapter,
		logger:  logger,
		pending: make(map[string]chan bool),
	}
}

func (c *confirmRouter) Available() bool {
	return c.adapter.bot != nil
}

// RequestApproval sends an approve/deny keyboard to the chat and blocks
// for the answer. The caller must treat any error as denial.
func (c *confirmRouter) RequestApproval(ctx context.Context, chatID, action, description string) (bool, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return false, err
	}

	token := uuid.NewString()
	answerCh := make(chan bool, 1)
	c.mu.Lock()
	c.pending[token] = answerCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, token)
		c.mu.Unlock()
	}()

	keyboard := &tgmodels.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{
			{Text: "✅ Approve", CallbackData: confirmCallbackPrefix + token + ":yes"},
			{Text: "❌ Deny", CallbackData: confirmCallbackPrefix + token + ":no"},
		}},
	}
	_, err = c.adapter.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      id,
		Text:        fmt.Sprintf("⚠ Approval required: %s\n\n%s", action, description),
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return false, fmt.Errorf("telegram: send approval prompt: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, approvalTimeout)
	defer cancel()

	select {
	case approved := <-answerCh:
		return approved, nil
	case <-waitCtx.Done():
		return false, fmt.Errorf("telegram: approval wait: %w", waitCtx.Err())
	}
}

func (c *confirmRouter) handleCallback(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.CallbackQuery == nil {
		return
	}
	data := update.CallbackQuery.Data
	rest := data[len(confirmCallbackPrefix):]

	var token string
	var approved bool
	if n := len(rest); n > 4 && rest[n-4:] == ":yes" {
		token, approved = rest[:n-4], true
	} else if n > 3 && rest[n-3:] == ":no" {
		token, approved = rest[:n-3], false
	} else {
		c.logger.Warn("malformed confirmation callback", "data", data)
		return
	}

	c.mu.Lock()
	answerCh, ok := c.pending[token]
	c.mu.Unlock()

	ack := "Request expired"
	if ok {
		select {
		case answerCh <- approved:
			if approved {
				ack = "Approved"
			} else {
				ack = "Denied"
			}
		default:
			// A second button press on the same prompt.
		}
	}

	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            ack,
	}); err != nil {
		c.logger.Warn("answer callback failed", "error", err)
	}

	// Remove the keyboard so the prompt cannot be pressed again.
	if update.CallbackQuery.Message.Message != nil {
		msg := update.CallbackQuery.Message.Message
		if _, err := b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
			ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
			MessageID: msg.ID,
		}); err != nil {
			c.logger.Debug("clear approval keyboard failed", "error", err)
		}
	}
}
