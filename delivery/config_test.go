package delivery

import (
	"testing"
	"time"
)

func TestBackoffWarm(t *testing.T) {
	cfg := DefaultConfig()
	want := []time.Duration{450, 600, 750, 900, 1000, 1000, 1000}
	for i, w := range want {
		got := cfg.Backoff(false, i+1)
		if got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
}

func TestBackoffColdHitsCeilingEarly(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Backoff(true, 1); got != 950*time.Millisecond {
		t.Fatalf("cold attempt 1 = %v, want 950ms", got)
	}
	if got := cfg.Backoff(true, 2); got != time.Second {
		t.Fatalf("cold attempt 2 = %v, want 1s", got)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{MaxAttempts: 3, Step: -1, ReadinessTTL: -time.Second, DedupeWindow: -time.Second}.withDefaults()
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts overwritten: %d", cfg.MaxAttempts)
	}
	if cfg.Step != 0 || cfg.ReadinessTTL != 0 || cfg.DedupeWindow != 0 {
		t.Fatalf("negative durations not clamped: step=%v ttl=%v dedupe=%v", cfg.Step, cfg.ReadinessTTL, cfg.DedupeWindow)
	}
	if cfg.WarmDelay != 300*time.Millisecond || cfg.PersistKey != "pendingShare" || cfg.AddRoute != "/add" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestZeroConfigMatchesDefaults(t *testing.T) {
	if got, want := (Config{}).withDefaults(), DefaultConfig(); got != want {
		t.Fatalf("zero config = %+v, want %+v", got, want)
	}

	cfg := Config{}.withDefaults()
	want := []time.Duration{450, 600, 750, 900, 1000}
	for i, w := range want {
		if got := cfg.Backoff(false, i+1); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
}
