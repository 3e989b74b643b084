package channel

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/linanwx/sharebridge/share"
)

func TestIntentFromMessage(t *testing.T) {
	tests := []struct {
		name       string
		msg        *tgbotapi.Message
		wantAction share.Action
		wantURI    string
		wantFileID string
		wantNil    bool
	}{
		{
			name:       "plain text",
			msg:        &tgbotapi.Message{Text: "look at youtu.be/abc"},
			wantAction: share.ActionSendText,
		},
		{
			name: "hidden link",
			msg: &tgbotapi.Message{
				Text:     "this article",
				Entities: []tgbotapi.MessageEntity{{Type: "text_link", Offset: 5, Length: 7, URL: "https://example.com/article"}},
			},
			wantAction: share.ActionSendText,
			wantURI:    "https://example.com/article",
		},
		{
			name: "url entity after emoji",
			msg: &tgbotapi.Message{
				Text:     "🎉 https://example.com/x",
				Entities: []tgbotapi.MessageEntity{{Type: "url", Offset: 3, Length: 21}},
			},
			wantAction: share.ActionSendText,
			wantURI:    "https://example.com/x",
		},
		{
			name: "photo",
			msg: &tgbotapi.Message{
				Caption: "screenshot",
				Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
			},
			wantAction: share.ActionSendImage,
			wantURI:    "tg://file/large",
			wantFileID: "large",
		},
		{
			name: "image document",
			msg: &tgbotapi.Message{
				Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/webp"},
			},
			wantAction: share.ActionSendImage,
			wantURI:    "tg://file/doc",
			wantFileID: "doc",
		},
		{name: "start command", msg: &tgbotapi.Message{Text: "/start"}, wantNil: true},
		{name: "empty", msg: &tgbotapi.Message{}, wantNil: true},
		{name: "non-image document", msg: &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", MimeType: "application/pdf"}}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, fileID := intentFromMessage(tt.msg)
			if tt.wantNil {
				if in != nil {
					t.Fatalf("expected nil intent, got %+v", in)
				}
				return
			}
			if in == nil {
				t.Fatal("unexpected nil intent")
			}
			if in.Action != tt.wantAction || in.URI != tt.wantURI || fileID != tt.wantFileID {
				t.Fatalf("got action=%s uri=%q fileID=%q", in.Action, in.URI, fileID)
			}
			if in.Source != "telegram" {
				t.Fatalf("source = %q", in.Source)
			}
		})
	}
}

func TestTelegramAllowList(t *testing.T) {
	src := NewTelegramSource(TelegramConfig{AllowedIDs: []int64{42}})

	allowed := tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "https://example.com",
		Chat: &tgbotapi.Chat{ID: 42},
	}}
	denied := tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "https://example.com/other",
		Chat: &tgbotapi.Chat{ID: 7},
		From: &tgbotapi.User{ID: 7},
	}}

	src.processUpdate(context.Background(), denied)
	src.processUpdate(context.Background(), allowed)

	select {
	case in := <-src.Intents():
		if in.Text != "https://example.com" {
			t.Fatalf("unexpected intent %+v", in)
		}
	default:
		t.Fatal("allowed message not forwarded")
	}
	select {
	case in := <-src.Intents():
		t.Fatalf("denied message forwarded: %+v", in)
	default:
	}

	if err := src.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-src.Intents(); ok {
		t.Fatal("intents channel should be closed after Stop")
	}
}
