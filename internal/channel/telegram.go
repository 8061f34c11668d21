package channel

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/security"
)

// telegramLimit is the longest message Telegram accepts, in characters.
const telegramLimit = 4096

// TelegramChannel lets allow-listed users screen subjects from a Telegram chat.
// Each Telegram chat keeps its own history.
type TelegramChannel struct {
	mu      sync.Mutex
	token   string
	auth    *security.Authorizer
	bot     *tele.Bot
	handler func(InboundMessage)
	running bool
	log     *zap.Logger
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	return &TelegramChannel{
		token: cfg.Token,
		auth:  security.NewAuthorizer(cfg.AllowedIDs),
		log:   logger.Named("telegram"),
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, _ tele.Context) {
			t.log.Warn("bot error", zap.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle("/start", func(c tele.Context) error {
		return c.Send("Bir kişi veya şirket adı yazın, hakkındaki negatif haberleri özetleyeyim.")
	})
	bot.Handle(tele.OnText, t.onText)

	t.bot = bot
	t.running = true

	go bot.Start()

	go func() {
		<-ctx.Done()
		_ = t.Stop(context.Background())
	}()

	return nil
}

func (t *TelegramChannel) onText(c tele.Context) error {
	sender := c.Sender()
	if !t.auth.IsAllowed(sender.ID) {
		t.log.Info("ignoring unauthorized user", zap.Int64("user_id", sender.ID), zap.String("username", sender.Username))
		return nil
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler == nil {
		return nil
	}

	// The agent can take a while; keep the "typing…" hint visible.
	_ = c.Notify(tele.Typing)
	handler(InboundMessage{
		ChannelName: "telegram",
		SenderID:    strconv.FormatInt(sender.ID, 10),
		SenderName:  sender.FirstName + " " + sender.LastName,
		ChatID:      strconv.FormatInt(c.Chat().ID, 10),
		Text:        c.Text(),
		Timestamp:   time.Now(),
	})
	return nil
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil && t.running {
		t.bot.Stop()
	}
	t.running = false
	return nil
}

func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()

	if bot == nil {
		return fmt.Errorf("telegram bot not started")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	recipient := &tele.Chat{ID: chatID}
	for _, chunk := range splitMessage(msg.Text, telegramLimit) {
		if _, err := bot.Send(recipient, chunk); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func (t *TelegramChannel) OnMessage(handler func(InboundMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline.
func splitMessage(text string, limit int) []string {
	var chunks []string
	r := []rune(text)
	for len(r) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if r[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 {
		chunks = append(chunks, string(r))
	}
	return chunks
}
