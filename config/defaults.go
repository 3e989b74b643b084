package config

import (
	"path/filepath"
	"strings"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Scheme: runtimecfg.AppDefaultScheme,
			Domain: runtimecfg.AppDefaultDomain,
		},
		Extract: ExtractConfig{
			KnownDomains: append([]string(nil), runtimecfg.ExtractDefaultKnownDomains...),
		},
		Delivery: defaultDeliveryConfig(),
		Surface: SurfaceConfig{
			Addr: runtimecfg.SurfaceDefaultAddr,
		},
		Channels: &ChannelsConfig{
			CLI:    &CLIChannelConfig{Enabled: false},
			Intent: &IntentChannelConfig{Enabled: true},
			Telegram: &TelegramChannelConfig{
				Token:      "",
				AllowedIDs: []int64{},
			},
		},
		Images: ImagesConfig{
			Retention:     runtimecfg.ImagesDefaultRetention,
			PruneInterval: runtimecfg.ImagesDefaultPruneInterval,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
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

// applyDefaults fills unset delivery fields. Negative durations are kept; the
// coordinator reads them as "disabled".
func (d *DeliveryConfig) applyDefaults() {
	def := defaultDeliveryConfig()
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = def.MaxAttempts
	}
	if d.WarmDelay == 0 {
		d.WarmDelay = def.WarmDelay
	}
	if d.ColdDelay == 0 {
		d.ColdDelay = def.ColdDelay
	}
	if d.Step == 0 {
		d.Step = def.Step
	}
	if d.DelayCeiling == 0 {
		d.DelayCeiling = def.DelayCeiling
	}
	if d.ProbeTimeout == 0 {
		d.ProbeTimeout = def.ProbeTimeout
	}
	if d.ChannelTimeout == 0 {
		d.ChannelTimeout = def.ChannelTimeout
	}
	if d.ReadinessTTL == 0 {
		d.ReadinessTTL = def.ReadinessTTL
	}
	if d.DedupeWindow == 0 {
		d.DedupeWindow = def.DedupeWindow
	}
	if d.PersistKey == "" {
		d.PersistKey = def.PersistKey
	}
	if d.AddRoute == "" {
		d.AddRoute = def.AddRoute
	}
	if d.UploadRoute == "" {
		d.UploadRoute = def.UploadRoute
	}
}

func defaultLoggingConfig() LoggingConfig {
	dir, err := ConfigDir()
	if err != nil {
		dir = ""
	}
	logFile := filepath.Join(dir, "logs", "sharebridge.log")
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Format:  "text",
		Stdout:  true,
		File:    logFile,
	}
}

func (c *Config) applyDefaults() {
	c.App.Scheme = strings.TrimSuffix(strings.TrimSpace(c.App.Scheme), "://")
	if c.App.Scheme == "" {
		c.App.Scheme = runtimecfg.AppDefaultScheme
	}
	c.App.Domain = strings.TrimSpace(c.App.Domain)
	if c.App.Domain == "" {
		c.App.Domain = runtimecfg.AppDefaultDomain
	}
	if c.Extract.KnownDomains == nil {
		c.Extract.KnownDomains = append([]string(nil), runtimecfg.ExtractDefaultKnownDomains...)
	}

	c.Delivery.applyDefaults()

	if c.Surface.Addr == "" {
		c.Surface.Addr = runtimecfg.SurfaceDefaultAddr
	}

	if c.Channels == nil {
		c.Channels = &ChannelsConfig{}
	}
	if c.Channels.CLI == nil {
		c.Channels.CLI = &CLIChannelConfig{}
	}
	if c.Channels.Intent == nil {
		c.Channels.Intent = &IntentChannelConfig{Enabled: true}
	}
	if c.Channels.Telegram == nil {
		c.Channels.Telegram = &TelegramChannelConfig{
			AllowedIDs: []int64{},
		}
	}
	if c.Channels.Telegram.AllowedIDs == nil {
		c.Channels.Telegram.AllowedIDs = []int64{}
	}

	if c.Images.Retention <= 0 {
		c.Images.Retention = runtimecfg.ImagesDefaultRetention
	}
	if c.Images.PruneInterval <= 0 {
		c.Images.PruneInterval = runtimecfg.ImagesDefaultPruneInterval
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.File == "" {
		c.Logging.File = def.File
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}
