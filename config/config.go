// Package config handles configuration loading and saving.
package config

import "time"

const configFileName = "config.yaml"

// configDirOverride is set from --config-dir.
var configDirOverride string

// SetConfigDir overrides the config directory. Empty restores the default.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Config is the root configuration structure.
type Config struct {
	App      AppConfig       `yaml:"app"`
	Extract  ExtractConfig   `yaml:"extract"`
	Delivery DeliveryConfig  `yaml:"delivery"`
	Surface  SurfaceConfig   `yaml:"surface"`
	Channels *ChannelsConfig `yaml:"channels,omitempty"`
	Images   ImagesConfig    `yaml:"images"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// AppConfig identifies the destination application.
type AppConfig struct {
	Scheme string `yaml:"scheme"` // custom URI scheme, without ://
	Domain string `yaml:"domain"` // canonical web domain
}

// ExtractConfig tunes URL extraction.
type ExtractConfig struct {
	KnownDomains []string `yaml:"knownDomains"` // hosts accepted without a scheme
}

// DeliveryConfig tunes the delivery coordinator. Zero values fall back to
// defaults; a negative readinessTTL or dedupeWindow disables that feature.
type DeliveryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts,omitempty"`
	WarmDelay      time.Duration `yaml:"warmDelay,omitempty"`
	ColdDelay      time.Duration `yaml:"coldDelay,omitempty"`
	Step           time.Duration `yaml:"step,omitempty"`
	DelayCeiling   time.Duration `yaml:"delayCeiling,omitempty"`
	ProbeTimeout   time.Duration `yaml:"probeTimeout,omitempty"`
	ChannelTimeout time.Duration `yaml:"channelTimeout,omitempty"`
	ReadinessTTL   time.Duration `yaml:"readinessTTL,omitempty"`
	DedupeWindow   time.Duration `yaml:"dedupeWindow,omitempty"`
	PersistKey     string        `yaml:"persistKey,omitempty"`
	AddRoute       string        `yaml:"addRoute,omitempty"`
	UploadRoute    string        `yaml:"uploadRoute,omitempty"`
}

// SurfaceConfig configures the HTTP/WebSocket destination surface.
type SurfaceConfig struct {
	Addr string `yaml:"addr"`
}

// ChannelsConfig contains intake source configuration.
type ChannelsConfig struct {
	CLI      *CLIChannelConfig      `yaml:"cli,omitempty"`
	Intent   *IntentChannelConfig   `yaml:"intent,omitempty"`
	Telegram *TelegramChannelConfig `yaml:"telegram,omitempty"`
}

// CLIChannelConfig controls the stdin source.
type CLIChannelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// IntentChannelConfig controls the POST /intent source.
type IntentChannelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelegramChannelConfig contains Telegram bot configuration. An empty token
// disables the source.
type TelegramChannelConfig struct {
	Token      string  `yaml:"token"`
	AllowedIDs []int64 `yaml:"allowedIds"` // empty allows everyone
}

// ImagesConfig configures the shared-image cache.
type ImagesConfig struct {
	Dir           string        `yaml:"dir,omitempty"` // defaults to <configDir>/images
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"pruneInterval"`
	PruneCron     string        `yaml:"pruneCron,omitempty"` // overrides pruneInterval when set
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format,omitempty"` // text or json
	Stdout  bool   `yaml:"stdout"`
	File    string `yaml:"file,omitempty"`
}

// IsEnabled reports whether logging is on. Nil means enabled.
func (l LoggingConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}
