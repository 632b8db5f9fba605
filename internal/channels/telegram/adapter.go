// Package telegram implements the Telegram channel over long polling.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/golemcore/agentd/pkg/models"
)

// Config holds the Telegram adapter configuration.
type Config struct {
	// Token is the bot token from @BotFather.
	Token string

	// AllowedChatIDs restricts inbound traffic. Empty means all chats.
	AllowedChatIDs []string

	// Logger is optional.
	Logger *slog.Logger
}

// Adapter bridges Telegram to the agent: inbound updates become
// messages on Inbound(), and the agent sends results back through the
// channels.Port methods.
type Adapter struct {
	config  Config
	bot     *bot.Bot
	inbound chan *models.Message
	confirm *confirmRouter
	logger  *slog.Logger

	startOnce sync.Once
}

// NewAdapter creates a Telegram adapter. The bot is constructed here
// so token problems surface at startup, but polling begins on Start.
func NewAdapter(config Config) (*Adapter, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	a := &Adapter{
		config:  config,
		inbound: make(chan *models.Message, 64),
		logger:  config.Logger,
	}
	a.confirm = newConfirmRouter(a, config.Logger)

	b, err := bot.New(config.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	a.bot = b
	a.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, confirmCallbackPrefix, bot.MatchTypePrefix, a.confirm.handleCallback)
	return a, nil
}

// Start begins long polling. It blocks until the context is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.logger.Info("telegram adapter starting")
		a.bot.Start(ctx)
		close(a.inbound)
	})
}

// Inbound returns the stream of user messages.
func (a *Adapter) Inbound() <-chan *models.Message {
	return a.inbound
}

// Confirmer returns the adapter's confirmation port.
func (a *Adapter) Confirmer() *confirmRouter {
	return a.confirm
}

func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	if !a.chatAllowed(chatID) {
		a.logger.Warn("message from disallowed chat dropped", "chat_id", chatID)
		return
	}

	msg := &models.Message{
		ID:        strconv.Itoa(update.Message.ID),
		Channel:   models.ChannelTelegram,
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   update.Message.Text,
		CreatedAt: time.Unix(int64(update.Message.Date), 0),
	}
	if update.Message.From != nil {
		msg.SenderID = strconv.FormatInt(update.Message.From.ID, 10)
	}

	select {
	case a.inbound <- msg:
	case <-ctx.Done():
	}
}

func (a *Adapter) chatAllowed(chatID string) bool {
	if len(a.config.AllowedChatIDs) == 0 {
		return true
	}
	for _, allowed := range a.config.AllowedChatIDs {
		if allowed == chatID {
			return true
		}
	}
	return false
}

func (a *Adapter) ChannelType() models.ChannelType { return models.ChannelTelegram }

func (a *Adapter) SendText(ctx context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: id,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (a *Adapter) SendAttachment(ctx context.Context, chatID string, att models.Attachment) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	upload := &tgmodels.InputFileUpload{
		Filename: att.Filename,
		Data:     bytes.NewReader(att.Data),
	}

	switch att.Type {
	case models.AttachmentImage:
		_, err = a.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: id, Photo: upload, Caption: att.Caption,
		})
	case models.AttachmentAudio:
		_, err = a.bot.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: id, Audio: upload, Caption: att.Caption,
		})
	default:
		_, err = a.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID: id, Document: upload, Caption: att.Caption,
		})
	}
	if err != nil {
		return fmt.Errorf("telegram: send %s: %w", att.Type, err)
	}
	return nil
}

func (a *Adapter) ShowTyping(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	_, err = a.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: id,
		Action: tgmodels.ChatActionTyping,
	})
	return err
}

// Notify sends a non-blocking notice. Failures are logged only.
func (a *Adapter) Notify(chatID, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.SendText(ctx, chatID, text); err != nil {
			a.logger.Warn("notify failed", "chat_id", chatID, "error", err)
		}
	}()
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}
