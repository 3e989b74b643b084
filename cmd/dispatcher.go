package cmd

import (
	"bytes"
	"context"
	"sync"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/channel"
	"github.com/linanwx/sharebridge/imagecache"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

const dispatcherSource = "dispatcher"

// ShareHandler receives normalized shares. *delivery.Coordinator implements it.
type ShareHandler interface {
	HandleShare(req share.Request)
	HandleDeepLink(uri string)
}

// Dispatcher routes intents from every source to the share handler. It is the
// bridge between the intake layer (pure I/O) and delivery.
type Dispatcher struct {
	sources *channel.Manager
	handler ShareHandler
	images  *imagecache.Cache
	bus     *bus.Bus
}

// NewDispatcher creates a new dispatcher. images and b may be nil.
func NewDispatcher(sources *channel.Manager, handler ShareHandler, images *imagecache.Cache, b *bus.Bus) *Dispatcher {
	return &Dispatcher{
		sources: sources,
		handler: handler,
		images:  images,
		bus:     b,
	}
}

// Run starts a goroutine for each source that reads intents and dispatches
// them. Blocks until ctx is cancelled and every reader has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	d.sources.Each(func(src channel.Source) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.processSource(ctx, src)
		}()
	})
	<-ctx.Done()
	wg.Wait()
}

func (d *Dispatcher) processSource(ctx context.Context, src channel.Source) {
	intents := src.Intents()
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-intents:
			if !ok {
				return
			}
			d.dispatch(src.Name(), in)
		}
	}
}

func (d *Dispatcher) dispatch(sourceName string, in *share.Intent) {
	if in == nil {
		return
	}
	logger.Debug("dispatching intent",
		"source", sourceName,
		"id", in.ID,
		"action", in.Action,
		"text", in.Text,
	)

	req, ok := share.FromIntent(in)
	if !ok {
		d.ignore(sourceName, in, "no usable content")
		return
	}

	if req.Kind.IsImage() && len(in.Attachments) > 0 {
		if err := d.storeImage(in.Attachments[0]); err != nil {
			logger.Warn("shared image not stored", "source", sourceName, "id", in.ID, "err", err)
			d.ignore(sourceName, in, "image not stored")
			return
		}
	}

	d.bus.Emit(bus.EventShareReceived, dispatcherSource, bus.ShareEventData{
		IntentID: in.ID,
		Source:   sourceName,
		Kind:     req.Kind.String(),
	})

	if req.Kind == share.KindDeepLink {
		d.handler.HandleDeepLink(req.URI)
		return
	}
	d.handler.HandleShare(req)
}

func (d *Dispatcher) storeImage(att share.Attachment) error {
	if d.images == nil {
		return nil
	}
	entry, err := d.images.Save(bytes.NewReader(att.Data), att.MIME)
	if err != nil {
		return err
	}
	logger.Info("shared image stored", "name", entry.Name, "size", entry.Size)
	return nil
}

func (d *Dispatcher) ignore(sourceName string, in *share.Intent, reason string) {
	logger.Info("intent ignored", "source", sourceName, "id", in.ID, "reason", reason)
	d.bus.Emit(bus.EventShareIgnored, dispatcherSource, bus.ShareEventData{
		IntentID: in.ID,
		Source:   sourceName,
		Kind:     string(in.Action),
		Reason:   reason,
	})
}
