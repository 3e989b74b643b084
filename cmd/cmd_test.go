package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/cron"
	"github.com/linanwx/sharebridge/delivery"
	"github.com/linanwx/sharebridge/imagecache"
	"github.com/linanwx/sharebridge/share"
)

func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config.SetConfigDir(dir)
	t.Cleanup(func() { config.SetConfigDir("") })
	return dir
}

func TestExtractOnce(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		name     string
		req      share.Request
		wantPath string
		wantURL  string
		wantErr  string
	}{
		{
			name:     "text with url",
			req:      share.Request{Kind: share.KindText, Text: "Look at this https://example.com/a, nice"},
			wantPath: "/add",
			wantURL:  "https://example.com/a",
		},
		{
			name:     "deep link",
			req:      share.Request{Kind: share.KindDeepLink, URI: "tagmentia://add?url=https://x.io"},
			wantPath: "/add",
		},
		{
			name:     "image",
			req:      share.Request{Kind: share.KindSingleImage, URI: "content://media/1"},
			wantPath: "/add-shared-screen",
		},
		{
			name:    "blank text",
			req:     share.Request{Kind: share.KindText, Text: "   "},
			wantErr: "nothing to deliver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractOnce(cfg, tt.req)
			if res.Error != tt.wantErr {
				t.Fatalf("error = %q, want %q", res.Error, tt.wantErr)
			}
			if res.Path != tt.wantPath {
				t.Fatalf("path = %q, want %q", res.Path, tt.wantPath)
			}
			if tt.wantURL != "" && res.URL != tt.wantURL {
				t.Fatalf("url = %q, want %q", res.URL, tt.wantURL)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	if k, err := parseKind("deep-link"); err != nil || k != share.KindDeepLink {
		t.Fatalf("parseKind(deep-link) = %v, %v", k, err)
	}
	if _, err := parseKind("video"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestPrintExtractResult(t *testing.T) {
	var buf bytes.Buffer
	printExtractResult(&buf, extractOnce(config.DefaultConfig(), share.Request{
		Kind: share.KindText,
		Text: "https://example.com",
	}))
	out := buf.String()
	if !strings.Contains(out, "Route: /add?url=https%3A%2F%2Fexample.com") {
		t.Fatalf("output = %q", out)
	}
}

func TestRunInitWritesConfigOnce(t *testing.T) {
	withConfigDir(t)
	initScheme, initDomain, initCLI, initForce = "myapp://", "myapp.com", true, false
	t.Cleanup(func() { initScheme, initDomain, initCLI, initForce = "", "", false, false })

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	if err := runInit(c, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Scheme != "myapp" || cfg.App.Domain != "myapp.com" || !cfg.Channels.CLI.Enabled {
		t.Fatalf("config = %+v", cfg.App)
	}

	initScheme = "other"
	out.Reset()
	if err := runInit(c, nil); err != nil {
		t.Fatalf("second runInit: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Fatalf("second run output = %q", out.String())
	}
	cfg, _ = config.Load()
	if cfg.App.Scheme != "myapp" {
		t.Fatalf("existing config overwritten: %q", cfg.App.Scheme)
	}
}

func TestResolveServeTargets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.Telegram.Token = "123:abc"

	c := &cobra.Command{}
	c.Flags().BoolVar(&serveCLI, "cli", false, "")
	c.Flags().BoolVar(&serveIntent, "intent", false, "")
	c.Flags().BoolVar(&serveTelegram, "telegram", false, "")
	t.Cleanup(func() { serveCLI, serveIntent, serveTelegram = false, false, false })

	got, err := resolveServeTargets(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := (serveTargets{intent: true, telegram: true}); got != want {
		t.Fatalf("config targets = %+v, want %+v", got, want)
	}

	if err := c.Flags().Set("cli", "true"); err != nil {
		t.Fatal(err)
	}
	got, err = resolveServeTargets(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := (serveTargets{cli: true}); got != want {
		t.Fatalf("flag targets = %+v, want %+v", got, want)
	}

	if err := c.Flags().Set("cli", "false"); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveServeTargets(c, cfg); err == nil {
		t.Fatal("expected error with every source disabled")
	}
}

func TestPruneJob(t *testing.T) {
	cfg := config.DefaultConfig()
	job := cron.Normalize(pruneJob(cfg))
	if job.Kind != cron.JobKindEvery || job.Every != cfg.Images.PruneInterval || !job.RunOnStart {
		t.Fatalf("interval job = %+v", job)
	}
	if err := cron.Validate(job); err != nil {
		t.Fatal(err)
	}

	cfg.Images.PruneCron = "0 3 * * *"
	job = cron.Normalize(pruneJob(cfg))
	if job.Kind != cron.JobKindCron || job.Every != 0 || job.Expr != "0 3 * * *" {
		t.Fatalf("cron job = %+v", job)
	}
}

func TestPruneTaskKeepsLatest(t *testing.T) {
	images, err := imagecache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	old, err := images.Save(strings.NewReader("old"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	latest, err := images.Save(strings.NewReader("new"), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, e := range []imagecache.Entry{old, latest} {
		if err := os.Chtimes(images.Path(e), past, past); err != nil {
			t.Fatal(err)
		}
	}

	if err := pruneTask(images, time.Hour)(); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := os.Stat(images.Path(old)); !os.IsNotExist(err) {
		t.Fatalf("old image still present: %v", err)
	}
	if _, err := os.Stat(images.Path(latest)); err != nil {
		t.Fatalf("latest image removed: %v", err)
	}
}

func TestDeliveryConfigMapsFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Delivery.PersistKey = "k"
	cfg.Delivery.ColdDelay = 2 * time.Second
	dc := deliveryConfig(cfg)
	if dc.PersistKey != "k" || dc.ColdDelay != 2*time.Second || dc.MaxAttempts != cfg.Delivery.MaxAttempts {
		t.Fatalf("delivery config = %+v", dc)
	}
}

type readyProbe struct{}

func (readyProbe) Ready(context.Context) (bool, error) { return true, nil }

type discardChannel struct{}

func (discardChannel) Persist(context.Context, string, string) error { return nil }

func (discardChannel) Navigate(context.Context, string, map[string]string) error { return nil }

func TestPartialConfigKeepsLinearBackoff(t *testing.T) {
	dir := withConfigDir(t)
	raw := []byte("delivery:\n  coldDelay: 1s\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), raw, 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	coord, err := delivery.New(delivery.Options{
		Config:  deliveryConfig(cfg),
		Probe:   readyProbe{},
		Channel: discardChannel{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer coord.Close()

	want := delivery.DefaultConfig()
	want.ColdDelay = time.Second
	if got := coord.Config(); got != want {
		t.Fatalf("effective config = %+v, want %+v", got, want)
	}
	if d := coord.Config().Backoff(false, 2); d != 600*time.Millisecond {
		t.Fatalf("second warm retry = %v, want 600ms", d)
	}
}

func TestSurfaceBaseURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8787":      "http://127.0.0.1:8787",
		"0.0.0.0:9000":        "http://127.0.0.1:9000",
		":80":                 "http://127.0.0.1:80",
		"https://share.test/": "https://share.test",
	}
	for in, want := range tests {
		if got := surfaceBaseURL(in); got != want {
			t.Errorf("surfaceBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunStatusQueriesService(t *testing.T) {
	withConfigDir(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/deliveries":
			_, _ = w.Write([]byte(`{"connected":true,"deliveries":[{"time":"2026-01-02T03:04:05Z","type":"delivery.delivered","source":"delivery","data":{"generation":1}}]}`))
		case "/api/health":
			_, _ = w.Write([]byte(`{"status":"healthy","page":{"connected":true}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	statusAddr, statusHealth, statusTimeout = ts.URL, true, 2*time.Second
	t.Cleanup(func() { statusAddr, statusHealth = "", false })

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	if err := runStatus(c, nil); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	for _, want := range []string{"Not configured", "Service: running", "Page: connected", "delivery.delivered", "Status: healthy"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, out.String())
		}
	}
}
