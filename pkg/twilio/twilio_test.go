package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCreator struct {
	params []*api.CreateMessageParams
	err    error
}

func (c *recordingCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	c.params = append(c.params, params)
	if c.err != nil {
		return nil, c.err
	}
	sid := "SM123"
	return &api.ApiV2010Message{Sid: &sid}, nil
}

func TestSendUsesConfiguredSender(t *testing.T) {
	creator := &recordingCreator{}
	svc := NewSMSServiceWithCreator(creator, "+15550009999")

	sid, err := svc.Send(context.Background(), "+15551112222", "New lead: Jane")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)
	require.Len(t, creator.params, 1)
	assert.Equal(t, "+15551112222", *creator.params[0].To)
	assert.Equal(t, "+15550009999", *creator.params[0].From)
	assert.Equal(t, "New lead: Jane", *creator.params[0].Body)
}

func TestSendWrapsProviderError(t *testing.T) {
	svc := NewSMSServiceWithCreator(&recordingCreator{err: errors.New("rate limited")}, "+15550009999")
	_, err := svc.Send(context.Background(), "+15551112222", "hi")
	assert.ErrorContains(t, err, "rate limited")
}

func TestDisabledServiceDropsMessages(t *testing.T) {
	svc := NewSMSService("", "", "")
	assert.False(t, svc.Enabled())
	sid, err := svc.Send(context.Background(), "+15551112222", "hi")
	assert.NoError(t, err)
	assert.Empty(t, sid)
}

// sign computes the provider signature: HMAC-SHA1 over the URL followed by the
// sorted form keys and values
func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateRequest(t *testing.T) {
	v := NewSignatureValidator("secret-token", "https://voice.example.com/")
	form := url.Values{"CallSid": {"CA1"}, "SpeechResult": {"hello"}}

	req := httptest.NewRequest("POST", "/voice/gather?seq=2", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sign("secret-token", "https://voice.example.com/voice/gather?seq=2", form))
	require.NoError(t, req.ParseForm())
	assert.True(t, v.ValidateRequest(req))

	req.Header.Set(SignatureHeader, sign("wrong-token", "https://voice.example.com/voice/gather?seq=2", form))
	assert.False(t, v.ValidateRequest(req))

	req.Header.Del(SignatureHeader)
	assert.False(t, v.ValidateRequest(req))
}

func TestRecordingFetcherUsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" || !strings.HasSuffix(r.URL.Path, ".wav") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	body, err := NewRecordingFetcher("AC1", "tok", srv.Client()).Fetch(context.Background(), srv.URL+"/Recordings/RE1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = NewRecordingFetcher("AC1", "wrong", srv.Client()).Fetch(context.Background(), srv.URL+"/Recordings/RE1")
	assert.ErrorContains(t, err, "status 401")
}
