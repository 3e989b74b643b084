package channel

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linanwx/sharebridge/share"
)

func TestParseIntentJSONShortForm(t *testing.T) {
	body := `{"action":"send-text","type":"text/plain","text":"see https://example.com","subject":"Example","uri":"https://example.com/c"}`
	in, err := ParseIntentJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, share.ActionSendText, in.Action)
	assert.Equal(t, "see https://example.com", in.Text)
	assert.Equal(t, "Example", in.Title)
	assert.Equal(t, "https://example.com/c", in.URI)
	assert.Equal(t, "intent", in.Source)
}

func TestParseIntentJSONAndroidExtras(t *testing.T) {
	body := `{
		"action": "android.intent.action.SEND",
		"type": "text/plain",
		"extras": {
			"android.intent.extra.TEXT": "Watch youtu.be/xyz",
			"android.intent.extra.SUBJECT": "Video",
			"android.intent.extra.HTML_TEXT": "<a href=\"https://youtu.be/xyz\">v</a>"
		}
	}`
	in, err := ParseIntentJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, share.ActionSendText, in.Action)
	assert.Equal(t, "Watch youtu.be/xyz", in.Text)
	assert.Equal(t, "Video", in.Title)
	assert.Contains(t, in.HTML, "https://youtu.be/xyz")
}

func TestParseIntentJSONImages(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n"))
	body := `{"action":"android.intent.action.SEND_MULTIPLE","type":"image/png",
		"extras":{"android.intent.extra.STREAM":["content://a","content://b"]},
		"attachments":[{"name":"a.png","data":"` + data + `"}]}`
	in, err := ParseIntentJSON([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, share.ActionSendMultiImage, in.Action)
	assert.Equal(t, []string{"content://a", "content://b"}, in.URIs)
	require.Len(t, in.Attachments, 1)
	assert.Equal(t, "image/png", in.Attachments[0].MIME)
}

func TestParseIntentJSONErrors(t *testing.T) {
	_, err := ParseIntentJSON([]byte(`{"action":`))
	assert.Error(t, err)

	_, err = ParseIntentJSON([]byte(`{"action":"android.intent.action.DIAL"}`))
	assert.ErrorIs(t, err, errNoAction)

	_, err = ParseIntentJSON([]byte(`{"action":"send-image","type":"image/png","attachments":[{"data":"***"}]}`))
	assert.Error(t, err)
}

func TestIntentSourceServeHTTP(t *testing.T) {
	src := NewIntentSource()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/intent", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		src.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"text":"https://example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	in := <-src.Intents()
	assert.Equal(t, "https://example.com", in.Text)
	assert.Contains(t, rec.Body.String(), in.ID)

	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"action":"send-text"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"action":"dial"}`).Code)

	get := httptest.NewRecorder()
	src.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/intent", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, get.Code)

	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())
	assert.Equal(t, http.StatusServiceUnavailable, post(`{"text":"https://example.com"}`).Code)
}

func TestIntentSourceMultipart(t *testing.T) {
	src := NewIntentSource()
	defer src.Stop()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", "caption"))
	fw, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\npayload"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/intent", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	src.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	in := <-src.Intents()
	assert.Equal(t, share.ActionSendImage, in.Action)
	require.Len(t, in.Attachments, 1)
	assert.Equal(t, "photo.png", in.Attachments[0].Name)
	assert.Equal(t, "image/png", in.Attachments[0].MIME)
}

func TestIntentSourceTooLarge(t *testing.T) {
	src := NewIntentSource()
	defer src.Stop()
	src.maxBytes = 16

	req := httptest.NewRequest(http.MethodPost, "/intent", strings.NewReader(`{"text":"`+strings.Repeat("x", 64)+`"}`))
	rec := httptest.NewRecorder()
	src.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
