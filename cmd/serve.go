package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/channel"
	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/cron"
	"github.com/linanwx/sharebridge/delivery"
	"github.com/linanwx/sharebridge/imagecache"
	"github.com/linanwx/sharebridge/internal/health"
	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
	"github.com/linanwx/sharebridge/surface"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start sharebridge with its intake sources and destination page",
	Long: `Start sharebridge as a long-running service. Shares arriving on any
intake source are extracted and delivered to the page served at the surface
address once it reports ready.

Supported sources:
  - intent: POST /intent on the surface address (default)
  - cli: one share per line on stdin
  - telegram: Telegram bot (requires channels.telegram.token)

Examples:
  sharebridge serve                         # Sources from config
  sharebridge serve --cli                   # Stdin only
  sharebridge serve --intent --telegram     # HTTP intents and Telegram
  sharebridge serve --deep-link 'tagmentia://add?url=https://example.com'`,
	RunE: runServe,
}

var (
	serveCLI      bool
	serveIntent   bool
	serveTelegram bool
	serveAddr     string
	serveDeepLink string
)

func init() {
	serveCmd.Flags().BoolVar(&serveCLI, "cli", false, "Enable the stdin source")
	serveCmd.Flags().BoolVar(&serveIntent, "intent", false, "Enable the POST /intent source")
	serveCmd.Flags().BoolVar(&serveTelegram, "telegram", false, "Enable the Telegram source")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Surface listen address (overrides surface.addr)")
	serveCmd.Flags().StringVar(&serveDeepLink, "deep-link", "", "Deep link the service was launched with")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	if addr := strings.TrimSpace(serveAddr); addr != "" {
		cfg.Surface.Addr = addr
	}

	targets, err := resolveServeTargets(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := bus.New(runtimecfg.DispatcherBusBufferSize)
	defer eventBus.Close()
	eventBus.Subscribe(logEvent)

	imagesDir, err := cfg.ImagesPath()
	if err != nil {
		return err
	}
	images, err := imagecache.New(imagesDir)
	if err != nil {
		return err
	}

	sources, intake := buildSources(cfg, targets)

	history := surface.NewHistory(runtimecfg.SurfaceHistorySize)
	detach := history.Attach(eventBus)
	defer detach()

	startedAt := time.Now()
	var (
		coord *delivery.Coordinator
		srv   *surface.Server
	)
	resume := func() {
		if coord != nil {
			coord.OnResume()
		}
	}
	snapshot := func() health.Snapshot {
		return health.Collect(health.Options{
			StartedAt: startedAt,
			Page:      &health.PageInfo{Connected: srv.Connected()},
			Delivery:  deliveryInfo(coord),
			ImagesDir: images.Dir(),
		})
	}
	srv, err = surface.New(surface.Options{
		Addr:      cfg.Surface.Addr,
		Bus:       eventBus,
		Images:    images,
		Intake:    intake,
		History:   history,
		Health:    snapshot,
		OnConnect: resume,
		OnVisible: resume,
	})
	if err != nil {
		return err
	}

	coord, err = delivery.New(delivery.Options{
		Config:    deliveryConfig(cfg),
		Extractor: newExtractor(cfg),
		Probe:     srv,
		Channel:   srv,
		Bus:       eventBus,
	})
	if err != nil {
		return err
	}
	defer coord.Close()

	maintenance, err := cron.NewScheduler()
	if err != nil {
		return err
	}
	if err := maintenance.Add(pruneJob(cfg), pruneTask(images, cfg.Images.Retention)); err != nil {
		return fmt.Errorf("failed to schedule image pruning: %w", err)
	}
	maintenance.Start()
	defer maintenance.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Error("error stopping surface", "err", err)
		}
	}()

	if err := sources.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start sources: %w", err)
	}

	if link := strings.TrimSpace(serveDeepLink); link != "" {
		coord.HandleDeepLink(link)
	}
	coord.OnStart()

	logger.Info("sharebridge is running. Press Ctrl+C to stop.", "sources", sources.Len())

	dispatcher := NewDispatcher(sources, coord, images, eventBus)
	dispatcher.Run(ctx)

	if err := sources.StopAll(); err != nil {
		logger.Error("error stopping sources", "err", err)
	}
	logger.Info("sharebridge service stopped")
	return nil
}

type serveTargets struct {
	cli, intent, telegram bool
}

// resolveServeTargets picks the sources to run. Without explicit flags the
// config decides; any explicit flag switches to flags only.
func resolveServeTargets(cmd *cobra.Command, cfg *config.Config) (serveTargets, error) {
	if cmd == nil {
		return serveTargets{}, fmt.Errorf("serve command is nil")
	}
	flags := cmd.Flags()
	if !flags.Changed("cli") && !flags.Changed("intent") && !flags.Changed("telegram") {
		return configTargets(cfg), nil
	}

	t := serveTargets{cli: serveCLI, intent: serveIntent, telegram: serveTelegram}
	if !t.cli && !t.intent && !t.telegram {
		return serveTargets{}, fmt.Errorf("no sources enabled; use --cli, --intent or --telegram")
	}
	if t.telegram && (cfg.Channels == nil || cfg.Channels.Telegram == nil || strings.TrimSpace(cfg.Channels.Telegram.Token) == "") {
		return serveTargets{}, fmt.Errorf("--telegram requires channels.telegram.token in config")
	}
	return t, nil
}

// configTargets reads the enabled sources from config. Telegram is enabled by
// a non-empty token.
func configTargets(cfg *config.Config) serveTargets {
	var t serveTargets
	if ch := cfg.Channels; ch != nil {
		t.cli = ch.CLI != nil && ch.CLI.Enabled
		t.intent = ch.Intent != nil && ch.Intent.Enabled
		t.telegram = ch.Telegram != nil && strings.TrimSpace(ch.Telegram.Token) != ""
	}
	return t
}

// buildSources registers the selected sources. The intent source doubles as
// the surface's POST /intent handler; intake is nil when it is disabled.
func buildSources(cfg *config.Config, t serveTargets) (*channel.Manager, http.Handler) {
	sources := channel.NewManager()
	var intake http.Handler
	if t.intent {
		src := channel.NewIntentSource()
		sources.Register(src)
		intake = src
	}
	if t.cli {
		sources.Register(channel.NewCLISource(channel.CLIConfig{}))
	}
	if t.telegram {
		tg := cfg.Channels.Telegram
		sources.Register(channel.NewTelegramSource(channel.TelegramConfig{
			Token:      strings.TrimSpace(tg.Token),
			AllowedIDs: tg.AllowedIDs,
		}))
	}
	return sources, intake
}

func newExtractor(cfg *config.Config) *share.Extractor {
	return share.NewExtractor(share.Options{
		AppScheme:    cfg.App.Scheme,
		AppDomain:    cfg.App.Domain,
		KnownDomains: cfg.Extract.KnownDomains,
	})
}

// deliveryConfig maps the YAML section onto the coordinator config; zero
// fields fall back to the coordinator defaults.
func deliveryConfig(cfg *config.Config) delivery.Config {
	d := cfg.Delivery
	return delivery.Config{
		MaxAttempts:    d.MaxAttempts,
		WarmDelay:      d.WarmDelay,
		ColdDelay:      d.ColdDelay,
		Step:           d.Step,
		DelayCeiling:   d.DelayCeiling,
		ProbeTimeout:   d.ProbeTimeout,
		ChannelTimeout: d.ChannelTimeout,
		ReadinessTTL:   d.ReadinessTTL,
		DedupeWindow:   d.DedupeWindow,
		PersistKey:     d.PersistKey,
		AddRoute:       d.AddRoute,
		UploadRoute:    d.UploadRoute,
	}
}

const pruneJobID = "prune-images"

func pruneJob(cfg *config.Config) cron.Job {
	job := cron.Job{
		ID:         pruneJobID,
		Every:      cfg.Images.PruneInterval,
		Expr:       strings.TrimSpace(cfg.Images.PruneCron),
		RunOnStart: true,
		Enabled:    true,
	}
	if job.Expr != "" {
		job.Every = 0
	}
	return job
}

func pruneTask(images *imagecache.Cache, retention time.Duration) cron.Task {
	return func() error {
		if retention <= 0 {
			return nil
		}
		if _, err := images.Prune(time.Now().Add(-retention)); err != nil {
			return fmt.Errorf("prune images: %w", err)
		}
		return nil
	}
}

func deliveryInfo(coord *delivery.Coordinator) *health.DeliveryInfo {
	if coord == nil {
		return nil
	}
	st := coord.Status()
	info := &health.DeliveryInfo{State: st.State.String(), Generation: st.Generation}
	if p := st.Pending; p != nil {
		info.Path = p.Route.String()
		info.Attempts = p.Attempts
		info.ColdStart = p.ColdStart
	}
	return info
}

func logEvent(_ context.Context, e *bus.Event) {
	logger.Debug("event", "type", e.Type, "source", e.Source, "payload", string(e.Data))
}
