package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/sharebridge/config"
	"github.com/linanwx/sharebridge/delivery"
	"github.com/linanwx/sharebridge/share"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Run URL extraction on shared text and print the delivery route",
	Long: `Run the extractor once and print what would be delivered.
Text comes from the arguments, or stdin when none are given.

Examples:
  sharebridge extract 'Look at this https://example.com/a, nice'
  sharebridge extract --kind deep-link 'tagmentia://add?url=https://x.io'
  pbpaste | sharebridge extract --json`,
	RunE: runExtract,
}

var (
	extractKind  string
	extractURI   string
	extractTitle string
	extractHTML  string
	extractJSON  bool
)

func init() {
	extractCmd.Flags().StringVar(&extractKind, "kind", "text", "Share kind: text, single-image, multi-image, deep-link")
	extractCmd.Flags().StringVar(&extractURI, "uri", "", "Companion URI shared alongside the text")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Shared subject/title")
	extractCmd.Flags().StringVar(&extractHTML, "html", "", "Shared HTML body")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Output as JSON")
	extractCmd.PreRunE = requireExtractInput
	rootCmd.AddCommand(extractCmd)
}

type extractResult struct {
	Kind     string            `json:"kind"`
	URL      string            `json:"url,omitempty"`
	Payload  string            `json:"payload,omitempty"`
	Internal bool              `json:"internal"`
	Image    bool              `json:"image"`
	Strategy string            `json:"strategy,omitempty"`
	Path     string            `json:"path,omitempty"`
	Query    map[string]string `json:"query,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	kind, err := parseKind(extractKind)
	if err != nil {
		return err
	}
	req := share.Request{
		Kind:  kind,
		Text:  text,
		Title: extractTitle,
		HTML:  extractHTML,
		URI:   strings.TrimSpace(extractURI),
	}
	if kind == share.KindDeepLink && req.URI == "" {
		req.URI = strings.TrimSpace(text)
	}

	res := extractOnce(cfg, req)
	if extractJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printExtractResult(cmd.OutOrStdout(), res)
	return nil
}

func extractOnce(cfg *config.Config, req share.Request) extractResult {
	ext := newExtractor(cfg)
	target := ext.Extract(req)
	res := extractResult{
		Kind:     req.Kind.String(),
		URL:      target.URL,
		Payload:  target.Payload(),
		Internal: target.IsInternalLink,
		Image:    target.IsImageMarker,
		Strategy: target.Strategy,
	}
	if target.Empty() {
		res.Error = "nothing to deliver"
		return res
	}

	dc := deliveryConfig(cfg)
	defaults := delivery.DefaultConfig()
	if dc.AddRoute == "" {
		dc.AddRoute = defaults.AddRoute
	}
	if dc.UploadRoute == "" {
		dc.UploadRoute = defaults.UploadRoute
	}
	route, err := delivery.NewRouter(ext.Classifier(), dc.AddRoute, dc.UploadRoute).ForTarget(target)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Path = route.Path
	res.Query = route.Query
	return res
}

func parseKind(raw string) (share.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text":
		return share.KindText, nil
	case "single-image", "image":
		return share.KindSingleImage, nil
	case "multi-image", "images":
		return share.KindMultiImage, nil
	case "deep-link", "deeplink", "view":
		return share.KindDeepLink, nil
	default:
		return 0, fmt.Errorf("invalid --kind: %q (use text, single-image, multi-image, deep-link)", raw)
	}
}

func printExtractResult(w io.Writer, res extractResult) {
	fmt.Fprintln(w, "Kind:", res.Kind)
	if res.Error != "" {
		fmt.Fprintln(w, "Result:", res.Error)
		if res.Payload == "" {
			return
		}
	}
	if res.URL != "" {
		fmt.Fprintln(w, "URL:", res.URL)
	}
	fmt.Fprintln(w, "Payload:", res.Payload)
	fmt.Fprintln(w, "Strategy:", res.Strategy)
	fmt.Fprintln(w, "Internal:", res.Internal)
	if res.Path != "" {
		fmt.Fprintln(w, "Route:", delivery.Route{Path: res.Path, Query: res.Query}.String())
	}
}

// requireExtractInput refuses to block on an interactive terminal when no
// text was given.
func requireExtractInput(cmd *cobra.Command, args []string) error {
	if len(args) > 0 || cmd.InOrStdin() != os.Stdin {
		return nil
	}
	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return fmt.Errorf("no text given; pass it as an argument or pipe it on stdin")
	}
	return nil
}
