package share

import (
	"net/url"
	"regexp"
	"strings"
)

// Strategy names recorded on Target.Strategy.
const (
	StrategyWholeText  = "whole-text"
	StrategyAppLink    = "app-link"
	StrategyTextScan   = "text-scan"
	StrategyURI        = "uri"
	StrategyHTML       = "html-anchor"
	StrategyAggressive = "aggressive"
	StrategyRawText    = "raw-text"
	StrategyDeepLink   = "deep-link"
	StrategyImage      = "image"
)

const (
	trailingPunct    = ".,;:!?"
	trailingBrackets = `)]"'`
	trailingAll      = `.,;:!?[]()"'`
)

var (
	urlShapePattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|[a-z0-9-]+\.[a-z]{2,}\S*)`)
	enclosedPattern = regexp.MustCompile(`(?i)[(\["'](https?://[^\s)\]"']+)[)\]"']`)
)

// Options configure an Extractor.
type Options struct {
	AppScheme    string
	AppDomain    string
	KnownDomains []string // sharing sources that often omit the scheme
}

type strategy struct {
	name string
	run  func(e *Extractor, req Request) (string, bool)
}

// strategies run in strict precedence order; the first hit wins.
var strategies = []strategy{
	{StrategyWholeText, (*Extractor).wholeText},
	{StrategyAppLink, (*Extractor).appLink},
	{StrategyTextScan, (*Extractor).textScan},
	{StrategyURI, (*Extractor).companionURI},
	{StrategyHTML, (*Extractor).htmlAnchor},
	{StrategyAggressive, (*Extractor).aggressive},
}

// Extractor finds a canonical URL in shared content.
type Extractor struct {
	classifier    Classifier
	known         []string
	domainPattern *regexp.Regexp
}

// NewExtractor builds an extractor. Known domains are normalized and deduplicated.
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{classifier: NewClassifier(opts.AppScheme, opts.AppDomain)}

	seen := make(map[string]bool)
	var quoted []string
	for _, d := range opts.KnownDomains {
		d = normalizeHost(strings.TrimPrefix(strings.TrimSpace(d), "www."))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		e.known = append(e.known, d)
		quoted = append(quoted, regexp.QuoteMeta(d))
	}
	if len(quoted) > 0 {
		e.domainPattern = regexp.MustCompile(`(?i)\b((?:[a-z0-9-]+\.)*(?:` + strings.Join(quoted, "|") + `)(?:[/?#:]\S*)?)`)
	}
	return e
}

// Classifier returns the internal-link classifier used by the extractor.
func (e *Extractor) Classifier() Classifier { return e.classifier }

// Extract derives a Target from req. It never panics; a failure anywhere in the
// chain degrades to the raw-text fallback.
func (e *Extractor) Extract(req Request) (t Target) {
	raw := strings.TrimSpace(req.Text)
	defer func() {
		if r := recover(); r != nil {
			t = Target{Text: raw, Strategy: StrategyRawText}
		}
	}()

	switch req.Kind {
	case KindSingleImage, KindMultiImage:
		return Target{IsImageMarker: true, Strategy: StrategyImage}
	case KindDeepLink:
		uri := strings.TrimSpace(req.URI)
		return Target{URL: uri, IsInternalLink: e.classifier.IsInternal(uri), Strategy: StrategyDeepLink}
	}

	for _, s := range strategies {
		if u, ok := s.run(e, req); ok {
			return Target{URL: u, IsInternalLink: e.classifier.IsInternal(u), Strategy: s.name}
		}
	}
	if raw == "" {
		return Target{}
	}
	return Target{Text: raw, Strategy: StrategyRawText}
}

// ExtractText is a convenience for plain shared text.
func (e *Extractor) ExtractText(text string) Target {
	return e.Extract(Request{Kind: KindText, Text: text})
}

func (e *Extractor) wholeText(req Request) (string, bool) {
	text := strings.TrimSpace(req.Text)
	return text, IsValidURL(text)
}

// appLink accepts shared text that is itself a custom-scheme app link, before
// the text scan can pick an embedded http URL out of its query string.
func (e *Extractor) appLink(req Request) (string, bool) {
	text := strings.TrimSpace(req.Text)
	if text == "" || strings.IndexAny(text, " \t\r\n") >= 0 || e.classifier.Scheme() == "" {
		return "", false
	}
	u, err := url.Parse(text)
	if err != nil || u.Scheme != e.classifier.Scheme() {
		return "", false
	}
	return text, true
}

func (e *Extractor) textScan(req Request) (string, bool) {
	return e.scan(req.Text)
}

func (e *Extractor) companionURI(req Request) (string, bool) {
	uri := strings.TrimSpace(req.URI)
	if uri == "" {
		return "", false
	}
	if IsValidURL(uri) {
		return uri, true
	}
	return e.scan(uri)
}

func (e *Extractor) aggressive(req Request) (string, bool) {
	text := req.Text
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	if m := enclosedPattern.FindStringSubmatch(text); len(m) > 1 && IsValidURL(m[1]) {
		return m[1], true
	}
	if e.domainPattern == nil {
		return "", false
	}
	for _, m := range e.domainPattern.FindAllString(text, -1) {
		candidate := ensureScheme(strings.TrimRight(m, trailingAll))
		if IsValidURL(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// scan looks for the first URL-shaped token in text.
func (e *Extractor) scan(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if IsValidURL(text) {
		return text, true
	}

	for _, m := range urlShapePattern.FindAllString(text, -1) {
		candidate := cleanCandidate(m)
		if !hasHTTPScheme(candidate) {
			lower := strings.ToLower(candidate)
			if !strings.HasPrefix(lower, "www.") && !e.mentionsKnownDomain(hostOf(lower)) {
				continue
			}
			candidate = ensureScheme(candidate)
		}
		if IsValidURL(candidate) {
			return candidate, true
		}
	}
	return e.scanKnownDomains(text)
}

// scanKnownDomains finds a known domain anywhere in text and takes the token
// holding it. The token starts at the beginning of the enclosing host, so a
// lookalike such as notyoutube.com is kept whole rather than cut down.
func (e *Extractor) scanKnownDomains(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, d := range e.known {
		idx := strings.Index(lower, d)
		if idx < 0 {
			continue
		}
		start := idx
		for start > 0 && isHostByte(lower[start-1]) {
			start--
		}
		for _, scheme := range []string{"https://", "http://"} {
			if strings.HasSuffix(lower[:start], scheme) {
				start -= len(scheme)
				break
			}
		}
		token := text[start:]
		if end := strings.IndexAny(token, " \t\r\n"); end >= 0 {
			token = token[:end]
		}
		candidate := ensureScheme(strings.TrimRight(token, trailingAll))
		if IsValidURL(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// mentionsKnownDomain reports whether host contains any known domain.
func (e *Extractor) mentionsKnownDomain(host string) bool {
	for _, d := range e.known {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func isHostByte(b byte) bool {
	return b == '.' || b == '-' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimRight(strings.TrimRight(s, trailingPunct), trailingBrackets)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func ensureScheme(s string) string {
	if s == "" || hasHTTPScheme(s) {
		return s
	}
	return "https://" + s
}

// hostOf returns the host portion of a scheme-less candidate.
func hostOf(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		s = s[at+1:]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return normalizeHost(s)
}
