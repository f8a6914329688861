// Package upload submits captured audio to the training endpoint and keeps
// a durable audit log of what was sent.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Kind labels what an uploaded artifact is.
type Kind string

const (
	// KindInitialRecitation is the raw audio of a live recitation session.
	KindInitialRecitation Kind = "initial_recitation_upload"

	// KindCorrectSample is a user-recorded correct pronunciation of a
	// previously mistaken segment.
	KindCorrectSample Kind = "correct_recitation_sample"
)

const uploadTimeout = 60 * time.Second

// Request describes one artifact to submit.
type Request struct {
	Kind      Kind
	Filename  string
	MediaType string
	Data      []byte

	// ReferenceText and MistakeID accompany correct-sample uploads.
	ReferenceText string
	MistakeID     string
}

// Client posts artifacts as multipart forms. Any non-2xx response is a
// failure.
type Client struct {
	// BaseURL is the API root, e.g. "http://localhost:8765".
	BaseURL string

	// HTTPClient defaults to a client with a 60 s timeout.
	HTTPClient *http.Client
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: uploadTimeout}
}

// Upload submits one artifact and returns the server's acknowledgement body.
func (c *Client) Upload(ctx context.Context, r Request) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", r.Filename)
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(r.Data); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	fields := map[string]string{"sample_type": string(r.Kind)}
	if r.ReferenceText != "" {
		fields["reference_text"] = r.ReferenceText
	}
	if r.MistakeID != "" {
		fields["original_mistake_id"] = r.MistakeID
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/training/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", r.Filename, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload endpoint returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}
