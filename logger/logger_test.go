package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeKeyvals(t *testing.T) {
	long := strings.Repeat("x", maxPayloadChars+40)

	tests := []struct {
		name string
		args []any
		want []any
	}{
		{
			name: "redacts bot token",
			args: []any{"botToken", "123:abc"},
			want: []any{"botToken", "[REDACTED]"},
		},
		{
			name: "keeps plain values",
			args: []any{"url", "https://youtu.be/abc"},
			want: []any{"url", "https://youtu.be/abc"},
		},
		{
			name: "pads odd args",
			args: []any{"attempt"},
			want: []any{"attempt", "(missing)"},
		},
		{
			name: "short payload untouched",
			args: []any{"text", "hello"},
			want: []any{"text", "hello"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeKeyvals(tc.args)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("arg[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}

	got := sanitizeKeyvals([]any{"payload", long})
	s, _ := got[1].(string)
	if !strings.HasSuffix(s, "...(200 chars)") {
		t.Fatalf("long payload not truncated: %q", s)
	}
}

func TestSetOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	Info("share received", "kind", "text", "token", "secret-value")

	out := buf.String()
	if !strings.Contains(out, `"msg":"share received"`) {
		t.Fatalf("expected json output, got %q", out)
	}
	if strings.Contains(out, "secret-value") {
		t.Fatalf("token leaked into log: %q", out)
	}
}
