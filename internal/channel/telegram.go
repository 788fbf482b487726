package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/tidelinehq/dupguard/internal/bus"
	"github.com/tidelinehq/dupguard/internal/config"
	"github.com/tidelinehq/dupguard/internal/dedup"
)

const telegramChannelName = "telegram"

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
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

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

// defaultBotFactory creates real telegram bot
var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

type TelegramChannel struct {
	BaseChannel
	token       string
	proxy       string
	pollTimeout int
	bot         TelegramBot
	httpClient  *http.Client
	cancel      context.CancelFunc
	botFactory  BotFactory
	limiter     *rate.Limiter
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, b, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with custom bot factory (for testing)
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	ch := &TelegramChannel{
		BaseChannel: NewBaseChannel(telegramChannelName, b),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		pollTimeout: cfg.PollTimeout,
		httpClient:  http.DefaultClient,
		botFactory:  factory,
		// Bot API allows roughly 30 requests per second overall
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}
	return ch, nil
}

func (t *TelegramChannel) initBot() error {
	var client *http.Client
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	} else {
		client = http.DefaultClient
	}
	t.httpClient = client

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	// Backlog accumulated while offline is stale; deleting duplicates
	// minutes late confuses chats more than it helps.
	if _, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		log.Printf("[telegram] drop pending updates failed: %v", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "channel_post", "my_chat_member"}
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				t.handleUpdate(update)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.MyChatMember != nil:
		t.handleMembership(update.MyChatMember)
	case update.Message != nil:
		t.handleMessage(update.Message)
	case update.ChannelPost != nil:
		t.handleMessage(update.ChannelPost)
	}
}

func (t *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	inbound := bus.InboundMessage{
		Channel:   telegramChannelName,
		ChatID:    msg.Chat.ID,
		ChatKind:  conversationKind(msg.Chat),
		ChatTitle: msg.Chat.Title,
		MessageID: msg.MessageID,
	}

	if cmd := commandName(msg); cmd != "" {
		inbound.Command = cmd
	} else {
		inbound.Descriptor = buildDescriptor(msg)
	}

	t.bus.Inbound <- inbound
}

func (t *TelegramChannel) handleMembership(m *tgbotapi.ChatMemberUpdated) {
	t.bus.Membership <- bus.MembershipEvent{
		Channel:   telegramChannelName,
		ChatID:    m.Chat.ID,
		ChatKind:  conversationKind(&m.Chat),
		ChatTitle: m.Chat.Title,
		From:      privilege(m.OldChatMember.Status),
		To:        privilege(m.NewChatMember.Status),
	}
}

// commandName extracts the command from a leading-slash message,
// without the slash or a @botname suffix. Bare "/" text yields "/" so
// slash messages never reach content detection.
func commandName(msg *tgbotapi.Message) string {
	text := msg.Text
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "/"
	}
	return strings.ToLower(name)
}

func buildDescriptor(msg *tgbotapi.Message) dedup.Descriptor {
	d := dedup.Descriptor{
		Text:      msg.Text,
		Caption:   msg.Caption,
		Forwarded: isForwarded(msg),
	}

	// Channel posts carry no sender
	if msg.From != nil {
		d.AuthorID = msg.From.ID
		d.AuthorIsBot = msg.From.IsBot
	}

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > largest.FileSize {
				largest = p
			}
		}
		d.Media = append(d.Media, dedup.Photo{UniqueID: largest.FileUniqueID, Size: int64(largest.FileSize)})
	}
	if msg.Document != nil {
		d.Media = append(d.Media, dedup.Document{
			UniqueID: msg.Document.FileUniqueID,
			Filename: msg.Document.FileName,
			Size:     int64(msg.Document.FileSize),
		})
	}
	if msg.Video != nil {
		d.Media = append(d.Media, dedup.Video{
			UniqueID: msg.Video.FileUniqueID,
			Duration: msg.Video.Duration,
			Size:     int64(msg.Video.FileSize),
		})
	}
	if msg.Audio != nil {
		d.Media = append(d.Media, dedup.Audio{
			UniqueID: msg.Audio.FileUniqueID,
			Duration: msg.Audio.Duration,
			Title:    msg.Audio.Title,
		})
	}
	if msg.Voice != nil {
		d.Media = append(d.Media, dedup.Voice{UniqueID: msg.Voice.FileUniqueID, Duration: msg.Voice.Duration})
	}
	if msg.VideoNote != nil {
		d.Media = append(d.Media, dedup.VideoNote{UniqueID: msg.VideoNote.FileUniqueID, Duration: msg.VideoNote.Duration})
	}
	if msg.Sticker != nil {
		d.Media = append(d.Media, dedup.Sticker{UniqueID: msg.Sticker.FileUniqueID, SetName: msg.Sticker.SetName})
	}
	if msg.Animation != nil {
		d.Media = append(d.Media, dedup.Animation{UniqueID: msg.Animation.FileUniqueID, Size: int64(msg.Animation.FileSize)})
	}

	return d
}

func isForwarded(msg *tgbotapi.Message) bool {
	return msg.ForwardDate != 0 || msg.ForwardFrom != nil || msg.ForwardFromChat != nil || msg.ForwardSenderName != ""
}

func conversationKind(chat *tgbotapi.Chat) dedup.ConversationKind {
	switch chat.Type {
	case "channel":
		return dedup.ConversationBroadcast
	case "group", "supergroup":
		return dedup.ConversationGroup
	default:
		return dedup.ConversationDirect
	}
}

func privilege(status string) dedup.Privilege {
	switch status {
	case "creator", "administrator":
		return dedup.PrivilegeAdmin
	case "left", "kicked":
		return dedup.PrivilegeNone
	default:
		return dedup.PrivilegeMember
	}
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

func (t *TelegramChannel) SendText(chatID int64, text string) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	if err := t.limiter.Wait(context.Background()); err != nil {
		return err
	}

	content := toTelegramHTML(text)

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

		tgMsg := tgbotapi.NewMessage(chatID, chunk)
		tgMsg.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(tgMsg); err != nil {
			// Retry without HTML parse mode
			tgMsg.ParseMode = ""
			tgMsg.Text = text
			if _, err2 := t.bot.Send(tgMsg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
			return nil
		}
	}
	return nil
}

func (t *TelegramChannel) DeleteMessage(chatID int64, messageID int) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	if err := t.limiter.Wait(context.Background()); err != nil {
		return err
	}

	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete telegram message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// ClassifyDeleteError maps a delete failure onto the result taxonomy
// the dedup service understands.
func ClassifyDeleteError(err error) dedup.DeleteResult {
	if err == nil {
		return dedup.DeleteOK
	}

	msg := strings.ToLower(err.Error())
	code := 0
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		code = apiErr.Code
		msg = strings.ToLower(apiErr.Message)
	}

	switch {
	case code == 429 || strings.Contains(msg, "too many requests") || strings.Contains(msg, "retry after"):
		return dedup.DeleteRateLimited
	case strings.Contains(msg, "message to delete not found") || strings.Contains(msg, "message can't be deleted"):
		return dedup.DeleteAlreadyGone
	case code == 403 || strings.Contains(msg, "not enough rights") || strings.Contains(msg, "have no rights") || strings.Contains(msg, "forbidden"):
		return dedup.DeleteForbidden
	default:
		return dedup.DeleteUnknownError
	}
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
