package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEmailTimeout = 10 * time.Second

// EmailClient talks to the transactional email provider over HTTP JSON.
type EmailClient struct {
	BaseURL string
	APIKey  string
	From    string
	Client  *http.Client
}

func NewEmailClient(baseURL, apiKey, from string) *EmailClient {
	return &EmailClient{BaseURL: baseURL, APIKey: apiKey, From: from}
}

func (c *EmailClient) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("recipient required")
	}
	if msg.Subject == "" {
		return "", errors.New("subject required")
	}
	body := map[string]any{
		"from":    c.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if len(msg.CC) > 0 {
		body["cc"] = msg.CC
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, "/emails", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("missing message id")
	}
	return resp.ID, nil
}

func (c *EmailClient) doJSON(ctx context.Context, path string, body any, out any) error {
	if c.APIKey == "" {
		return errors.New("email api key required")
	}
	if c.BaseURL == "" {
		return errors.New("email base url required")
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultEmailTimeout}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.Client.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
