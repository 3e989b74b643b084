package cmd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/channel"
	"github.com/linanwx/sharebridge/imagecache"
	"github.com/linanwx/sharebridge/share"
)

type stubSource struct {
	name    string
	intents chan *share.Intent
}

func (s *stubSource) Name() string                  { return s.name }
func (s *stubSource) Start(context.Context) error   { return nil }
func (s *stubSource) Stop() error                   { return nil }
func (s *stubSource) Intents() <-chan *share.Intent { return s.intents }

type recordingHandler struct {
	mu        sync.Mutex
	shares    []share.Request
	deepLinks []string
	got       chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan struct{}, 8)}
}

func (h *recordingHandler) HandleShare(req share.Request) {
	h.mu.Lock()
	h.shares = append(h.shares, req)
	h.mu.Unlock()
	h.got <- struct{}{}
}

func (h *recordingHandler) HandleDeepLink(uri string) {
	h.mu.Lock()
	h.deepLinks = append(h.deepLinks, uri)
	h.mu.Unlock()
	h.got <- struct{}{}
}

func TestDispatcherRoutesIntents(t *testing.T) {
	src := &stubSource{name: "stub", intents: make(chan *share.Intent, 4)}
	sources := channel.NewManager()
	sources.Register(src)

	images, err := imagecache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	handler := newRecordingHandler()
	d := NewDispatcher(sources, handler, images, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	text := share.NewIntent("stub", share.ActionSendText)
	text.Text = "see https://example.com/a"
	src.intents <- text

	img := share.NewIntent("stub", share.ActionSendImage)
	img.Attachments = []share.Attachment{{Name: "a.png", MIME: "image/png", Data: []byte("png")}}
	src.intents <- img

	link := share.NewIntent("stub", share.ActionViewDeepLink)
	link.URI = "tagmentia://add?url=https://example.com"
	src.intents <- link

	for i := 0; i < 3; i++ {
		select {
		case <-handler.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d intents dispatched", i)
		}
	}
	cancel()
	<-done

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.shares) != 2 || handler.shares[0].Kind != share.KindText || handler.shares[1].Kind != share.KindSingleImage {
		t.Fatalf("shares = %+v", handler.shares)
	}
	if len(handler.deepLinks) != 1 || handler.deepLinks[0] != link.URI {
		t.Fatalf("deep links = %v", handler.deepLinks)
	}
	entry, err := images.Latest()
	if err != nil || entry.MIME != "image/png" {
		t.Fatalf("stored image = %+v, %v", entry, err)
	}
}

func TestDispatcherIgnoresEmptyIntent(t *testing.T) {
	b := bus.New(8)
	defer b.Close()
	ignored := make(chan bus.ShareEventData, 1)
	b.Subscribe(func(_ context.Context, e *bus.Event) {
		var data bus.ShareEventData
		if err := e.ParseData(&data); err == nil {
			ignored <- data
		}
	}, bus.EventShareIgnored)

	handler := newRecordingHandler()
	d := NewDispatcher(channel.NewManager(), handler, nil, b)

	empty := share.NewIntent("stub", share.ActionSendText)
	empty.Text = "   "
	d.dispatch("stub", empty)

	select {
	case data := <-ignored:
		if data.IntentID != empty.ID || data.Source != "stub" {
			t.Fatalf("ignored event = %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("missing share.ignored event")
	}
	if len(handler.got) != 0 {
		t.Fatal("empty intent reached the handler")
	}
}

func TestDispatcherStopsOnClosedSource(t *testing.T) {
	src := &stubSource{name: "stub", intents: make(chan *share.Intent)}
	sources := channel.NewManager()
	sources.Register(src)
	d := NewDispatcher(sources, newRecordingHandler(), nil, nil)

	close(src.intents)
	done := make(chan struct{})
	go func() {
		d.processSource(context.Background(), src)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return after the source closed")
	}
}
