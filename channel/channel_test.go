package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/linanwx/sharebridge/share"
)

type stubSource struct {
	name     string
	startErr error
	started  bool
	stopped  bool
	intents  chan *share.Intent
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}
func (s *stubSource) Stop() error                   { s.stopped = true; return nil }
func (s *stubSource) Intents() <-chan *share.Intent { return s.intents }

func TestManagerStartAllRollsBack(t *testing.T) {
	m := NewManager()
	a := &stubSource{name: "a"}
	b := &stubSource{name: "b", startErr: errors.New("boom")}
	m.Register(a)
	m.Register(nil)
	m.Register(b)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d", m.Len())
	}
	if err := m.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if !a.started || !a.stopped {
		t.Fatalf("source a should be started then stopped: %+v", a)
	}
}

func TestManagerOrderAndGet(t *testing.T) {
	m := NewManager()
	for _, n := range []string{"telegram", "cli", "intent"} {
		m.Register(&stubSource{name: n})
	}
	var got []string
	m.Each(func(s Source) { got = append(got, s.Name()) })
	if len(got) != 3 || got[0] != "telegram" || got[2] != "intent" {
		t.Fatalf("Each order = %v", got)
	}
	if _, ok := m.Get("cli"); !ok {
		t.Fatal("Get(cli) missing")
	}
	if err := m.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}
