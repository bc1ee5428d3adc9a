// Package messaging is the HTTP client of the messaging microservice,
// the dispatch sink for SMS sends and operator alerts.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Client talks to the messaging microservice.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a messaging client from configuration.
func NewClient() *Client {
	baseURL := viper.GetString("messaging.url")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type smsRequest struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Sender       string    `json:"sender"`
	Message      string    `json:"message"`
	MobileNumber string    `json:"mobile_number"`
}

type alertRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendSMS submits one outbound SMS. Fire and forget: the service does
// not retry failures, it reports them unhealthy.
func (c *Client) SendSMS(ctx context.Context, tenantID uuid.UUID, sender, message, mobileNumber string) error {
	payload := smsRequest{
		TenantID:     tenantID,
		Sender:       sender,
		Message:      message,
		MobileNumber: mobileNumber,
	}
	if err := c.post(ctx, c.baseURL+"/v1/sms", payload); err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	return nil
}

// SendAlert submits one operator alert, used by the retention sweep.
func (c *Client) SendAlert(ctx context.Context, subject, body string) error {
	payload := alertRequest{Subject: subject, Body: body}
	if err := c.post(ctx, c.baseURL+"/v1/alerts", payload); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
