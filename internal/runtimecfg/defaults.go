package runtimecfg

import "time"

const (
	AppDefaultScheme = "tagmentia"
	AppDefaultDomain = "tagmentia.com"
)

// ExtractDefaultKnownDomains are sharing sources that routinely omit the URL scheme.
var ExtractDefaultKnownDomains = []string{
	"youtube.com",
	"youtu.be",
	"tiktok.com",
	"instagram.com",
	"snapchat.com",
	"loom.com",
}

const (
	DeliveryDefaultMaxAttempts    = 8
	DeliveryDefaultWarmDelay      = 300 * time.Millisecond
	DeliveryDefaultColdDelay      = 800 * time.Millisecond
	DeliveryDefaultStep           = 150 * time.Millisecond
	DeliveryDefaultDelayCeiling   = 1000 * time.Millisecond
	DeliveryDefaultProbeTimeout   = 2 * time.Second
	DeliveryDefaultReadinessTTL   = 5 * time.Second
	DeliveryDefaultDedupeWindow   = 2 * time.Second
	DeliveryDefaultChannelTimeout = 5 * time.Second
	DeliveryDefaultPersistKey     = "pendingShare"
	DeliveryDefaultAddRoute       = "/add"
	DeliveryDefaultUploadRoute    = "/add-shared-screen"
)

const (
	SurfaceDefaultAddr          = "127.0.0.1:8787"
	SurfaceShutdownTimeout      = 5 * time.Second
	SurfaceHistorySize          = 50
	SurfaceMaxIntentBytes       = 16 << 20
	CLISourceBufferSize         = 10
	IntentSourceBufferSize      = 32
	TelegramSourceBufferSize    = 100
	TelegramUpdateTimeoutSecond = 30
	TelegramDownloadTimeout     = 30 * time.Second
	DispatcherBusBufferSize     = 100
)

const (
	ImagesDirName              = "images"
	ImagesDefaultRetention     = 24 * time.Hour
	ImagesDefaultPruneInterval = time.Hour
	ImagesMaxBytes             = 25 << 20
)
