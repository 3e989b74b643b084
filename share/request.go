// Package share turns raw shared content into canonical delivery targets.
//
// Everything in this package is pure: no I/O, no clocks, no globals that
// change after init. Malformed input degrades to "no URL found" instead of
// returning errors.
package share

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageMarker is the opaque payload handed downstream for shared images. The
// image bytes themselves never travel through the coordinator.
const ImageMarker = "IMAGE_SHARED"

// Kind classifies a share request.
type Kind int

const (
	KindText Kind = iota
	KindSingleImage
	KindMultiImage
	KindDeepLink
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSingleImage:
		return "image"
	case KindMultiImage:
		return "multi-image"
	case KindDeepLink:
		return "deep-link"
	default:
		return "unknown"
	}
}

// IsImage reports whether the kind carries image attachments.
func (k Kind) IsImage() bool {
	return k == KindSingleImage || k == KindMultiImage
}

// Action is the intent action delivered by an intake source.
type Action string

const (
	ActionSendText       Action = "send-text"
	ActionSendImage      Action = "send-image"
	ActionSendMultiImage Action = "send-multi-image"
	ActionViewDeepLink   Action = "view-deep-link"
)

// Attachment is image content supplied alongside an intent.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Intent is the single entry shape every intake source produces.
type Intent struct {
	ID          string
	Source      string
	Action      Action
	MIME        string
	Text        string
	Title       string
	HTML        string
	URI         string
	URIs        []string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// NewIntent creates an intent with a fresh ID and timestamp.
func NewIntent(source string, action Action) *Intent {
	return &Intent{
		ID:         uuid.NewString(),
		Source:     source,
		Action:     action,
		ReceivedAt: time.Now(),
	}
}

// ParseAction maps an action name plus MIME type to an Action. Both the short
// names above and platform names (android.intent.action.SEND, ...) are accepted.
func ParseAction(action, mime string) (Action, bool) {
	a := strings.ToLower(strings.TrimSpace(action))
	m := strings.ToLower(strings.TrimSpace(mime))
	isImage := strings.HasPrefix(m, "image/")

	switch a {
	case string(ActionSendText), string(ActionSendImage), string(ActionSendMultiImage), string(ActionViewDeepLink):
		return Action(a), true
	case "send", "android.intent.action.send":
		if isImage {
			return ActionSendImage, true
		}
		if m == "" || m == "text/plain" || m == "text/html" {
			return ActionSendText, true
		}
	case "send-multiple", "send_multiple", "android.intent.action.send_multiple":
		if isImage {
			return ActionSendMultiImage, true
		}
	case "view", "android.intent.action.view":
		return ActionViewDeepLink, true
	}
	return "", false
}

// Request is the immutable input of the extractor.
type Request struct {
	Kind  Kind
	Text  string
	Title string
	HTML  string
	URI   string
	URIs  []string
}

// FromIntent converts an intent into a Request. It returns false when the
// intent carries nothing the extractor can use.
func FromIntent(in *Intent) (Request, bool) {
	if in == nil {
		return Request{}, false
	}

	req := Request{
		Text:  in.Text,
		Title: in.Title,
		HTML:  in.HTML,
		URI:   strings.TrimSpace(in.URI),
		URIs:  nonEmpty(in.URIs),
	}

	switch in.Action {
	case ActionSendText:
		req.Kind = KindText
		if strings.TrimSpace(req.Text) == "" && req.URI == "" && strings.TrimSpace(req.HTML) == "" {
			return Request{}, false
		}
	case ActionSendImage:
		req.Kind = KindSingleImage
		if req.URI == "" && len(in.Attachments) == 0 {
			return Request{}, false
		}
	case ActionSendMultiImage:
		req.Kind = KindMultiImage
		if len(req.URIs) == 0 && len(in.Attachments) == 0 {
			return Request{}, false
		}
	case ActionViewDeepLink:
		req.Kind = KindDeepLink
		if req.URI == "" {
			return Request{}, false
		}
	default:
		return Request{}, false
	}
	return req, true
}

// Target is the deterministic outcome of extraction.
type Target struct {
	URL            string // canonical URL, empty when none was found
	Text           string // raw trimmed text, used as payload when URL is empty
	IsInternalLink bool
	IsImageMarker  bool
	Strategy       string // which extraction step produced URL
}

// Empty reports whether there is nothing to deliver.
func (t Target) Empty() bool {
	return !t.IsImageMarker && t.URL == "" && t.Text == ""
}

// Payload is the value persisted for the destination surface.
func (t Target) Payload() string {
	switch {
	case t.IsImageMarker:
		return ImageMarker
	case t.URL != "":
		return t.URL
	default:
		return t.Text
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
