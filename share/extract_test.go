package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *Extractor {
	return NewExtractor(Options{
		AppScheme:    "tagmentia",
		AppDomain:    "tagmentia.com",
		KnownDomains: []string{"youtube.com", "youtu.be", "tiktok.com", "instagram.com", "snapchat.com", "loom.com"},
	})
}

func TestExtractText(t *testing.T) {
	e := testExtractor()

	tests := []struct {
		name     string
		text     string
		wantURL  string
		wantText string
		strategy string
		internal bool
	}{
		{
			name:     "exact url verbatim",
			text:     "  https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s  ",
			wantURL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
			strategy: StrategyWholeText,
		},
		{
			name:     "trailing punctuation stripped",
			text:     "Check this out: https://youtu.be/abc123!",
			wantURL:  "https://youtu.be/abc123",
			strategy: StrategyTextScan,
		},
		{
			name:     "scheme injected for known domain",
			text:     "tiktok.com/@user/video/123",
			wantURL:  "https://tiktok.com/@user/video/123",
			strategy: StrategyTextScan,
		},
		{
			name:     "scheme injected for www prefix",
			text:     "see www.example.org/page.",
			wantURL:  "https://www.example.org/page",
			strategy: StrategyTextScan,
		},
		{
			name:     "closing bracket and quote stripped",
			text:     `Watch (https://www.instagram.com/reel/xyz/)"`,
			wantURL:  "https://www.instagram.com/reel/xyz/",
			strategy: StrategyTextScan,
		},
		{
			name:     "subdomain of known domain",
			text:     "Check out vm.tiktok.com/ZMabc/ now",
			wantURL:  "https://vm.tiktok.com/ZMabc/",
			strategy: StrategyTextScan,
		},
		{
			name:     "lookalike host kept whole",
			text:     "visit notyoutube.com/watch?v=1 now",
			wantURL:  "https://notyoutube.com/watch?v=1",
			strategy: StrategyTextScan,
		},
		{
			name:     "punctuation inside closing bracket stripped",
			text:     "(https://youtu.be/x!)",
			wantURL:  "https://youtu.be/x",
			strategy: StrategyTextScan,
		},
		{
			name:     "unknown bare domain is not upgraded",
			text:     "notes about example.com/page",
			wantText: "notes about example.com/page",
			strategy: StrategyRawText,
		},
		{
			name:     "mailto rejected",
			text:     "mailto:someone@example.com",
			wantText: "mailto:someone@example.com",
			strategy: StrategyRawText,
		},
		{
			name:     "plain words fall back to raw text",
			text:     "  just some words  ",
			wantText: "just some words",
			strategy: StrategyRawText,
		},
		{
			name:     "app domain link is internal",
			text:     "https://tagmentia.com/categories/42",
			wantURL:  "https://tagmentia.com/categories/42",
			strategy: StrategyWholeText,
			internal: true,
		},
		{
			name:     "custom scheme link kept whole",
			text:     "tagmentia://add?url=https%3A%2F%2Fyoutu.be%2Fabc",
			wantURL:  "tagmentia://add?url=https%3A%2F%2Fyoutu.be%2Fabc",
			strategy: StrategyAppLink,
			internal: true,
		},
		{
			name:     "first of several urls",
			text:     "a https://loom.com/share/1 b https://youtu.be/2",
			wantURL:  "https://loom.com/share/1",
			strategy: StrategyTextScan,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.ExtractText(tc.text)
			assert.Equal(t, tc.wantURL, got.URL)
			assert.Equal(t, tc.strategy, got.Strategy)
			assert.Equal(t, tc.internal, got.IsInternalLink)
			assert.False(t, got.IsImageMarker)
			if tc.wantURL == "" {
				assert.Equal(t, tc.wantText, got.Text)
			}
		})
	}
}

func TestExtractCompanionURI(t *testing.T) {
	e := testExtractor()

	got := e.Extract(Request{Kind: KindText, Text: "My favourite clip", URI: "https://youtu.be/xyz"})
	assert.Equal(t, "https://youtu.be/xyz", got.URL)
	assert.Equal(t, StrategyURI, got.Strategy)

	got = e.Extract(Request{Kind: KindText, URI: "content://provider/share?u=https://loom.com/share/9"})
	assert.Equal(t, "https://loom.com/share/9", got.URL)
	assert.Equal(t, StrategyURI, got.Strategy)
}

func TestExtractHTMLAnchor(t *testing.T) {
	e := testExtractor()

	got := e.Extract(Request{
		Kind: KindText,
		Text: "A great video",
		HTML: `<p>A great <a href="mailto:x@y.z">mail</a> <a href="https://www.youtube.com/watch?v=1">video</a></p>`,
	})
	assert.Equal(t, "https://www.youtube.com/watch?v=1", got.URL)
	assert.Equal(t, StrategyHTML, got.Strategy)
}

func TestExtractAggressive(t *testing.T) {
	e := testExtractor()

	target, ok := e.aggressive(Request{Text: `link:["https://example.net/a"]`})
	require.True(t, ok)
	assert.Equal(t, "https://example.net/a", target)

	target, ok = e.aggressive(Request{Text: "watch=m.youtube.com/shorts/abc)."})
	require.True(t, ok)
	assert.Equal(t, "https://m.youtube.com/shorts/abc", target)

	_, ok = e.aggressive(Request{Text: "nothing here"})
	assert.False(t, ok)
}

func TestExtractScanKnownDomains(t *testing.T) {
	e := testExtractor()

	got, ok := e.scanKnownDomains("prefix-http://www.loom.com/share/abc, trailing")
	require.True(t, ok)
	assert.Equal(t, "http://www.loom.com/share/abc", got)

	got, ok = e.scanKnownDomains("see:notyoutube.com/watch?v=1")
	require.True(t, ok)
	assert.Equal(t, "https://notyoutube.com/watch?v=1", got)
}

func TestExtractImagesAndDeepLinks(t *testing.T) {
	e := testExtractor()

	img := e.Extract(Request{Kind: KindSingleImage, URI: "content://media/1", Text: "https://youtu.be/ignored"})
	assert.True(t, img.IsImageMarker)
	assert.Empty(t, img.URL)
	assert.Equal(t, ImageMarker, img.Payload())

	multi := e.Extract(Request{Kind: KindMultiImage, URIs: []string{"content://media/1", "content://media/2"}})
	assert.True(t, multi.IsImageMarker)

	link := e.Extract(Request{Kind: KindDeepLink, URI: "tagmentia://categories"})
	assert.True(t, link.IsInternalLink)
	assert.Equal(t, "tagmentia://categories", link.URL)
}

func TestExtractEmptyAndDeterministic(t *testing.T) {
	e := testExtractor()

	assert.True(t, e.Extract(Request{Kind: KindText, Text: "   "}).Empty())

	in := Request{Kind: KindText, Text: "Check this out: https://youtu.be/abc123!"}
	assert.Equal(t, e.Extract(in), e.Extract(in))
}

func TestExtractWithoutKnownDomains(t *testing.T) {
	e := NewExtractor(Options{AppScheme: "tagmentia", AppDomain: "tagmentia.com"})

	got := e.ExtractText("tiktok.com/@user/video/123")
	assert.Empty(t, got.URL)
	assert.Equal(t, StrategyRawText, got.Strategy)
}
