package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

// TelegramSource turns messages sent to a bot into share intents. Text and
// captions become text shares, photos and image documents become image shares.
type TelegramSource struct {
	token      string
	allowedIDs map[int64]bool // Allowed user/chat IDs (empty = allow all)
	bot        *tgbotapi.BotAPI
	client     *http.Client
	intents    chan *share.Intent
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// TelegramConfig holds Telegram source configuration.
type TelegramConfig struct {
	Token      string  // Bot token from BotFather
	AllowedIDs []int64 // Allowed user/chat IDs (empty = allow all)
}

// NewTelegramSource creates a new Telegram source.
func NewTelegramSource(cfg TelegramConfig) *TelegramSource {
	allowedIDs := make(map[int64]bool)
	for _, id := range cfg.AllowedIDs {
		allowedIDs[id] = true
	}

	return &TelegramSource{
		token:      cfg.Token,
		allowedIDs: allowedIDs,
		client:     &http.Client{Timeout: runtimecfg.TelegramDownloadTimeout},
		intents:    make(chan *share.Intent, runtimecfg.TelegramSourceBufferSize),
		done:       make(chan struct{}),
	}
}

// Name returns the source name.
func (t *TelegramSource) Name() string {
	return "telegram"
}

// Start connects to the Bot API and begins long polling.
func (t *TelegramSource) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram connection failed: %w", err)
	}
	t.bot = bot
	logger.Info("telegram bot connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = runtimecfg.TelegramUpdateTimeoutSecond
	updates := bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go t.pollUpdates(ctx, updates)
	return nil
}

// Stop gracefully shuts down the source.
func (t *TelegramSource) Stop() error {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.bot != nil {
			t.bot.StopReceivingUpdates()
		}
		t.wg.Wait()
		if t.bot == nil {
			close(t.intents)
		}
		logger.Info("telegram source stopped")
	})
	return nil
}

// Intents returns the incoming intent channel.
func (t *TelegramSource) Intents() <-chan *share.Intent {
	return t.intents
}

func (t *TelegramSource) pollUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer t.wg.Done()
	defer close(t.intents)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.processUpdate(ctx, update)
		}
	}
}

func (t *TelegramSource) processUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return
	}
	if !t.allowed(msg) {
		return
	}

	in, fileID := intentFromMessage(msg)
	if in == nil {
		return
	}
	if fileID != "" {
		att, err := t.download(ctx, fileID, in.MIME)
		if err != nil {
			logger.Warn("telegram image download failed", "fileID", fileID, "err", err)
			return
		}
		in.Attachments = append(in.Attachments, att)
	}

	select {
	case t.intents <- in:
	default:
		logger.Warn("telegram intent buffer full, dropping share")
	}
}

func (t *TelegramSource) allowed(msg *tgbotapi.Message) bool {
	if len(t.allowedIDs) == 0 {
		return true
	}
	fromID := int64(0)
	username := ""
	if msg.From != nil {
		fromID = msg.From.ID
		username = msg.From.UserName
	}
	if t.allowedIDs[msg.Chat.ID] || t.allowedIDs[fromID] {
		return true
	}
	logger.Warn("telegram message from unauthorized user",
		"userID", fromID,
		"chatID", msg.Chat.ID,
		"username", username,
	)
	return false
}

// intentFromMessage maps a message to an intent. fileID is set when the image
// bytes still need to be fetched.
func intentFromMessage(msg *tgbotapi.Message) (in *share.Intent, fileID string) {
	switch {
	case len(msg.Photo) > 0:
		// Use the largest photo (last in the slice)
		photo := msg.Photo[len(msg.Photo)-1]
		in = share.NewIntent("telegram", share.ActionSendImage)
		in.MIME = "image/jpeg"
		in.Text = msg.Caption
		in.URI = "tg://file/" + photo.FileID
		return in, photo.FileID

	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		in = share.NewIntent("telegram", share.ActionSendImage)
		in.MIME = msg.Document.MimeType
		in.Text = msg.Caption
		in.URI = "tg://file/" + msg.Document.FileID
		return in, msg.Document.FileID
	}

	text := msg.Text
	entities := msg.Entities
	if text == "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}
	if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "/start") {
		return nil, ""
	}

	in = share.NewIntent("telegram", share.ActionSendText)
	in.MIME = "text/plain"
	in.Text = text
	// A hidden link behind formatted text is the best companion URI.
	for _, e := range entities {
		if e.Type == "text_link" && e.URL != "" {
			in.URI = e.URL
			break
		}
	}
	if in.URI == "" {
		for _, e := range entities {
			if e.Type == "url" {
				in.URI = entityText(text, e)
				break
			}
		}
	}
	return in, ""
}

// entityText slices text by a Telegram entity. Offsets count UTF-16 code units.
func entityText(text string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

func (t *TelegramSource) download(ctx context.Context, fileID, mimeType string) (share.Attachment, error) {
	if t.bot == nil {
		return share.Attachment{}, fmt.Errorf("bot not connected")
	}
	link, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return share.Attachment{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return share.Attachment{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return share.Attachment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return share.Attachment{}, fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, runtimecfg.ImagesMaxBytes))
	if err != nil {
		return share.Attachment{}, err
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		mimeType = ct
	}
	return share.Attachment{Name: fileID, MIME: mimeType, Data: data}, nil
}
