package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
)

// SMSGateway posts text messages to an HTTP provider.
type SMSGateway struct {
	url    string
	apiKey string
	client *http.Client
}

// NewSMSGateway constructs an SMSGateway.
func NewSMSGateway(url, apiKey string) *SMSGateway {
	return &SMSGateway{url: url, apiKey: apiKey, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send posts {to, message} to the gateway.
func (g *SMSGateway) Send(ctx context.Context, phone, message string) error {
	if g.url == "" {
		return errors.New("sms: gateway url not configured")
	}
	if phone == "" {
		return errors.New("sms: phone required")
	}
	body, err := json.Marshal(map[string]string{"to": phone, "message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms: gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

// HandleSendSMS processes TaskSendSMS tasks.
func (g *SMSGateway) HandleSendSMS(ctx context.Context, t *asynq.Task) error {
	var s SMS
	if err := json.Unmarshal(t.Payload(), &s); err != nil {
		return fmt.Errorf("sms: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return g.Send(ctx, s.Phone, s.Message)
}
