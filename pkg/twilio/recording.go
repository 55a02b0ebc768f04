package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RecordingFetcher downloads recording media with account credentials.
// The REST client has no media download call, so this goes over plain HTTP.
type RecordingFetcher struct {
	httpClient *http.Client
	accountSID string
	authToken  string
}

// NewRecordingFetcher creates a fetcher. A nil httpClient uses a 60s timeout client.
func NewRecordingFetcher(accountSID, authToken string, httpClient *http.Client) *RecordingFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &RecordingFetcher{httpClient: httpClient, accountSID: accountSID, authToken: authToken}
}

// MediaURL asks for the WAV rendition of a recording URL
func MediaURL(recordingURL string) string {
	if strings.HasSuffix(recordingURL, ".wav") || strings.HasSuffix(recordingURL, ".mp3") {
		return recordingURL
	}
	return recordingURL + ".wav"
}

// Fetch opens the recording body. The caller closes it.
func (f *RecordingFetcher) Fetch(ctx context.Context, recordingURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, MediaURL(recordingURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recording request: %w", err)
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download recording: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
