package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/internal/health"
	"github.com/linanwx/sharebridge/surface"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sharebridge configuration and the running service state",
	Long: `Display the current configuration and, when a service is running on
the configured surface address, whether a page is connected and the most recent
share and delivery events.`,
	RunE: runStatus,
}

var (
	statusAddr    string
	statusLimit   int
	statusTimeout time.Duration
	statusHealth  bool
)

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Surface address to query (overrides surface.addr)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent events to show")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 2*time.Second, "Timeout for querying the service")
	statusCmd.Flags().BoolVar(&statusHealth, "health", false, "Also show the service's runtime health")
	rootCmd.AddCommand(statusCmd)
}

type deliveriesResponse struct {
	Connected  bool             `json:"connected"`
	Deliveries []surface.Record `json:"deliveries"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(out, "Status: Not configured")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'sharebridge init' to create a config.")
		cfg = config.DefaultConfig()
	} else {
		configPath, _ := config.ConfigPath()
		fmt.Fprintln(out, "sharebridge Status")
		fmt.Fprintln(out, "==================")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Config:", configPath)
	}

	fmt.Fprintf(out, "App: %s:// (%s)\n", cfg.App.Scheme, cfg.App.Domain)
	if imagesDir, err := cfg.ImagesPath(); err == nil {
		fmt.Fprintln(out, "Images:", imagesDir)
	}
	fmt.Fprintln(out, "Sources:", strings.Join(configuredSources(cfg), ", "))

	addr := strings.TrimSpace(statusAddr)
	if addr == "" {
		addr = cfg.Surface.Addr
	}
	base := surfaceBaseURL(addr)
	fmt.Fprintln(out, "Surface:", base)
	fmt.Fprintln(out)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, statusTimeout)
	defer cancel()
	var resp deliveriesResponse
	if err := fetchJSON(ctx, base+"/api/deliveries", &resp); err != nil {
		fmt.Fprintln(out, "Service: not running")
		return nil
	}

	fmt.Fprintln(out, "Service: running")
	if resp.Connected {
		fmt.Fprintln(out, "Page: connected")
	} else {
		fmt.Fprintln(out, "Page: not connected")
	}
	printRecords(out, resp.Deliveries, statusLimit)

	if statusHealth {
		var snap health.Snapshot
		if err := fetchJSON(ctx, base+"/api/health", &snap); err != nil {
			return fmt.Errorf("fetch health: %w", err)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, health.FormatText(snap))
	}
	return nil
}

func configuredSources(cfg *config.Config) []string {
	targets := configTargets(cfg)
	var names []string
	if targets.intent {
		names = append(names, "intent")
	}
	if targets.cli {
		names = append(names, "cli")
	}
	if targets.telegram {
		names = append(names, "telegram")
	}
	if len(names) == 0 {
		names = append(names, "none")
	}
	return names
}

func surfaceBaseURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	addr = strings.Replace(addr, "0.0.0.0:", "127.0.0.1:", 1)
	return "http://" + addr
}

func fetchJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func printRecords(w io.Writer, records []surface.Record, limit int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "Recent events: none")
		return
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	fmt.Fprintln(w, "Recent events:")
	for _, r := range records {
		fmt.Fprintf(w, "  %s  %-22s %s\n", r.Time.Local().Format(time.DateTime), r.Type, string(r.Data))
	}
}
