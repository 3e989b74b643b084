package surface

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/internal/runtimecfg"
)

// Record is one lifecycle event kept for /api/deliveries.
type Record struct {
	Time   time.Time       `json:"time"`
	Type   bus.EventType   `json:"type"`
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// History is a bounded ring of share and delivery events.
type History struct {
	mu      sync.Mutex
	size    int
	records []Record
	next    int
	full    bool
}

// NewHistory keeps at most size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = runtimecfg.SurfaceHistorySize
	}
	return &History{size: size, records: make([]Record, size)}
}

var recordedEvents = []bus.EventType{
	bus.EventShareReceived,
	bus.EventShareIgnored,
	bus.EventDeliveryPending,
	bus.EventDeliveryRetrying,
	bus.EventDeliverySuperseded,
	bus.EventDeliveryDelivered,
	bus.EventDeliveryDropped,
}

// Attach subscribes the history to share and delivery events on b. The
// returned func detaches it.
func (h *History) Attach(b *bus.Bus) (detach func()) {
	return b.Subscribe(func(_ context.Context, e *bus.Event) {
		h.Add(e)
	}, recordedEvents...)
}

// Add records an event.
func (h *History) Add(e *bus.Event) {
	if e == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[h.next] = Record{Time: e.Timestamp, Type: e.Type, Source: e.Source, Data: e.Data}
	h.next = (h.next + 1) % h.size
	if h.next == 0 {
		h.full = true
	}
}

// List returns the records, newest first.
func (h *History) List() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.next
	if h.full {
		n = h.size
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, h.records[(h.next-i+h.size)%h.size])
	}
	return out
}
