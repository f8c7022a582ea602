// Package whatsapp provides the send_whatsapp and send_whatsapp_template
// action handlers, dispatching through an Evolution-API-compatible gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a thin HTTP client for the messaging gateway. The gateway itself
// is an external system; only the dispatch contract lives here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTemplateRequest struct {
	Number     string `json:"number"`
	TemplateID string `json:"template_id"`
}

// SendText sends a plain text message through the given instance.
func (c *Client) SendText(ctx context.Context, instanceID, number, text string) error {
	return c.post(ctx, fmt.Sprintf("%s/message/sendText/%s", c.baseURL, instanceID), sendTextRequest{
		Number: number,
		Text:   text,
	})
}

// SendTemplate sends a pre-approved template message through the given instance.
func (c *Client) SendTemplate(ctx context.Context, instanceID, number, templateID string) error {
	return c.post(ctx, fmt.Sprintf("%s/message/sendTemplate/%s", c.baseURL, instanceID), sendTemplateRequest{
		Number:     number,
		TemplateID: templateID,
	})
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gateway rejected message: status %d", resp.StatusCode)
	}

	return nil
}
