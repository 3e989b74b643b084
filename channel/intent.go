package channel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

// Android extras keys, escaped for gjson paths.
const (
	extraText     = `extras.android\.intent\.extra\.TEXT`
	extraSubject  = `extras.android\.intent\.extra\.SUBJECT`
	extraHTMLText = `extras.android\.intent\.extra\.HTML_TEXT`
	extraStream   = `extras.android\.intent\.extra\.STREAM`
)

var errNoAction = errors.New("unsupported or missing action")

// IntentSource accepts share intents over HTTP (POST /intent). It is mounted
// on the surface server rather than listening by itself.
//
// JSON bodies are read leniently: the short field names (action, type, text,
// subject, html, uri, uris, attachments) and the platform form
// ({"action": "android.intent.action.SEND", "extras": {...}}) both work.
// Multipart bodies carry the same fields as form values plus image files.
type IntentSource struct {
	maxBytes int64
	intents  chan *share.Intent
	mu       sync.Mutex
	closed   bool
}

// NewIntentSource creates the HTTP intent source.
func NewIntentSource() *IntentSource {
	return &IntentSource{
		maxBytes: runtimecfg.SurfaceMaxIntentBytes,
		intents:  make(chan *share.Intent, runtimecfg.IntentSourceBufferSize),
	}
}

// Name returns the source name.
func (s *IntentSource) Name() string { return "intent" }

// Start is a no-op; requests arrive through ServeHTTP.
func (s *IntentSource) Start(ctx context.Context) error {
	logger.Info("intent source started")
	return nil
}

// Stop closes the intent channel. Later requests get 503.
func (s *IntentSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.intents)
		logger.Info("intent source stopped")
	}
	return nil
}

// Intents returns the incoming intent channel.
func (s *IntentSource) Intents() <-chan *share.Intent { return s.intents }

func (s *IntentSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)

	var (
		in  *share.Intent
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, err = s.parseMultipart(r)
	} else {
		var body []byte
		body, err = io.ReadAll(r.Body)
		if err == nil {
			in, err = ParseIntentJSON(body)
		}
	}
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		} else if errors.Is(err, errNoAction) {
			status = http.StatusUnprocessableEntity
		}
		logger.Warn("intent rejected", "status", status, "err", err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if _, ok := share.FromIntent(in); !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "intent carries no usable content"})
		return
	}

	if !s.enqueue(in) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "intake unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": in.ID})
}

func (s *IntentSource) enqueue(in *share.Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.intents <- in:
		return true
	default:
		logger.Warn("intent buffer full, dropping intent", "id", in.ID)
		return false
	}
}

// ParseIntentJSON reads an intent from a JSON document.
func ParseIntentJSON(body []byte) (*share.Intent, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON body")
	}
	doc := gjson.ParseBytes(body)

	mimeType := firstString(doc, "type", "mimeType", "mime")
	actionName := doc.Get("action").String()
	if actionName == "" {
		actionName = "send"
	}
	action, ok := share.ParseAction(actionName, mimeType)
	if !ok {
		return nil, errNoAction
	}

	in := share.NewIntent("intent", action)
	in.MIME = mimeType
	in.Text = firstString(doc, "text", extraText)
	in.Title = firstString(doc, "subject", "title", extraSubject)
	in.HTML = firstString(doc, "html", extraHTMLText)
	in.URI = firstString(doc, "uri", "data")

	stream := doc.Get(extraStream)
	switch {
	case stream.IsArray():
		for _, v := range stream.Array() {
			in.URIs = append(in.URIs, v.String())
		}
	case stream.Exists() && in.URI == "":
		in.URI = stream.String()
	}
	for _, v := range doc.Get("uris").Array() {
		in.URIs = append(in.URIs, v.String())
	}

	for i, a := range doc.Get("attachments").Array() {
		data, err := base64.StdEncoding.DecodeString(a.Get("data").String())
		if err != nil {
			return nil, errors.New("attachment " + a.Get("name").String() + ": invalid base64")
		}
		name := a.Get("name").String()
		if name == "" {
			name = "attachment-" + strconv.Itoa(i)
		}
		att := share.Attachment{Name: name, MIME: a.Get("mime").String(), Data: data}
		if att.MIME == "" {
			att.MIME = http.DetectContentType(data)
		}
		in.Attachments = append(in.Attachments, att)
	}
	return in, nil
}

func (s *IntentSource) parseMultipart(r *http.Request) (*share.Intent, error) {
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		return nil, err
	}
	form := r.MultipartForm
	get := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	mimeType := get("type")
	files := form.File["image"]
	if mimeType == "" && len(files) > 0 {
		mimeType = "image/*"
	}
	actionName := get("action")
	if actionName == "" {
		switch len(files) {
		case 0:
			actionName = "send"
		case 1:
			actionName = string(share.ActionSendImage)
		default:
			actionName = string(share.ActionSendMultiImage)
		}
	}
	action, ok := share.ParseAction(actionName, mimeType)
	if !ok {
		return nil, errNoAction
	}

	in := share.NewIntent("intent", action)
	in.MIME = mimeType
	in.Text = get("text")
	in.Title = get("subject")
	in.HTML = get("html")
	in.URI = get("uri")

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		att := share.Attachment{Name: fh.Filename, MIME: fh.Header.Get("Content-Type"), Data: data}
		if att.MIME == "" || att.MIME == "application/octet-stream" {
			att.MIME = http.DetectContentType(data)
		}
		in.Attachments = append(in.Attachments, att)
	}
	return in, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response failed", "err", err)
	}
}
