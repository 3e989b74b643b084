package delivery

import (
	"time"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
)

// Config tunes retry pacing and the destination routes.
//
// A zero field always takes the default. Negative durations disable:
//
//	Step          flat backoff
//	ReadinessTTL  positive results kept until invalidated
//	DedupeWindow  no post-delivery dedupe
type Config struct {
	MaxAttempts    int
	WarmDelay      time.Duration // backoff base once the surface has been up
	ColdDelay      time.Duration // backoff base while the host is still launching
	Step           time.Duration
	DelayCeiling   time.Duration
	ProbeTimeout   time.Duration
	ChannelTimeout time.Duration
	ReadinessTTL   time.Duration
	DedupeWindow   time.Duration

	PersistKey  string
	AddRoute    string
	UploadRoute string
}

// DefaultConfig returns the stock pacing.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    runtimecfg.DeliveryDefaultMaxAttempts,
		WarmDelay:      runtimecfg.DeliveryDefaultWarmDelay,
		ColdDelay:      runtimecfg.DeliveryDefaultColdDelay,
		Step:           runtimecfg.DeliveryDefaultStep,
		DelayCeiling:   runtimecfg.DeliveryDefaultDelayCeiling,
		ProbeTimeout:   runtimecfg.DeliveryDefaultProbeTimeout,
		ChannelTimeout: runtimecfg.DeliveryDefaultChannelTimeout,
		ReadinessTTL:   runtimecfg.DeliveryDefaultReadinessTTL,
		DedupeWindow:   runtimecfg.DeliveryDefaultDedupeWindow,
		PersistKey:     runtimecfg.DeliveryDefaultPersistKey,
		AddRoute:       runtimecfg.DeliveryDefaultAddRoute,
		UploadRoute:    runtimecfg.DeliveryDefaultUploadRoute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.WarmDelay <= 0 {
		c.WarmDelay = def.WarmDelay
	}
	if c.ColdDelay <= 0 {
		c.ColdDelay = def.ColdDelay
	}
	switch {
	case c.Step == 0:
		c.Step = def.Step
	case c.Step < 0:
		c.Step = 0
	}
	if c.DelayCeiling <= 0 {
		c.DelayCeiling = def.DelayCeiling
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.ChannelTimeout <= 0 {
		c.ChannelTimeout = def.ChannelTimeout
	}
	switch {
	case c.ReadinessTTL == 0:
		c.ReadinessTTL = def.ReadinessTTL
	case c.ReadinessTTL < 0:
		c.ReadinessTTL = 0
	}
	switch {
	case c.DedupeWindow == 0:
		c.DedupeWindow = def.DedupeWindow
	case c.DedupeWindow < 0:
		c.DedupeWindow = 0
	}
	if c.PersistKey == "" {
		c.PersistKey = def.PersistKey
	}
	if c.AddRoute == "" {
		c.AddRoute = def.AddRoute
	}
	if c.UploadRoute == "" {
		c.UploadRoute = def.UploadRoute
	}
	return c
}

// Backoff returns the delay before the next attempt once attempts have failed.
// Linear: min(base + attempts*step, ceiling).
func (c Config) Backoff(coldStart bool, attempts int) time.Duration {
	base := c.WarmDelay
	if coldStart {
		base = c.ColdDelay
	}
	delay := base + time.Duration(attempts)*c.Step
	if delay > c.DelayCeiling {
		delay = c.DelayCeiling
	}
	return delay
}
