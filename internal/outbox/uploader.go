package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPUploader posts attachment batches to the media endpoint and
// returns the stored URLs. The endpoint answers with a JSON array of
// `{"url": "..."}` objects, one per file.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	token    string
}

// NewHTTPUploader creates an uploader for `{endpoint}/{messageID}`.
func NewHTTPUploader(endpoint, token string, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload sends all files of a batch in one multipart request.
func (u *HTTPUploader) Upload(ctx context.Context, messageID string, files []File) ([]string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("outbox: multipart: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("outbox: multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("outbox: multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/"+messageID, &body)
	if err != nil {
		return nil, fmt.Errorf("outbox: upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outbox: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("outbox: upload: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("outbox: upload response: %w", err)
	}
	var entries []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("outbox: upload response: %w", err)
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	return urls, nil
}
