// Package report renders HTML documents to PDF through a Gotenberg service.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client wraps interactions with the Gotenberg API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	paper      Paper
}

// Paper sets page size and margins in inches.
type Paper struct {
	Width, Height float64
	Margin        float64
}

// A4 is the default page format.
var A4 = Paper{Width: 8.27, Height: 11.7, Margin: 0.4}

// NewClient constructs a new client. A zero timeout means 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		paper:      A4,
	}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotenberg: ping: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg: health status %d", resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a self-contained HTML page into a PDF document.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"paperWidth":      formatInches(c.paper.Width),
		"paperHeight":     formatInches(c.paper.Height),
		"marginTop":       formatInches(c.paper.Margin),
		"marginBottom":    formatInches(c.paper.Margin),
		"marginLeft":      formatInches(c.paper.Margin),
		"marginRight":     formatInches(c.paper.Margin),
		"printBackground": "true",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gotenberg: render: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gotenberg: render status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return io.ReadAll(resp.Body)
}

func formatInches(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
