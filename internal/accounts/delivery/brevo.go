package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// BrevoClient sends transactional email through the Brevo HTTP API.
type BrevoClient struct {
	APIKey    string
	FromEmail string
	FromName  string
	URL       string

	httpClient *http.Client
}

func NewBrevoClient(apiKey, fromEmail, fromName string) *BrevoClient {
	return &BrevoClient{
		APIKey:     apiKey,
		FromEmail:  fromEmail,
		FromName:   fromName,
		URL:        brevoAPIURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *BrevoClient) IsConfigured() bool {
	return c.APIKey != "" && c.FromEmail != ""
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

func (c *BrevoClient) SendEmail(ctx context.Context, to, subject, text string) error {
	if !c.IsConfigured() {
		return errors.New("brevo: client not configured")
	}

	body, err := json.Marshal(brevoSendRequest{
		Sender:      brevoAddress{Email: c.FromEmail, Name: c.FromName},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		TextContent: text,
	})
	if err != nil {
		return fmt.Errorf("brevo: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("brevo: create request: %w", err)
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("brevo: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
