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

// WebsiteClient posts replies into customer-facing website threads.
type WebsiteClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewWebsiteClient(baseURL, apiKey string) *WebsiteClient {
	return &WebsiteClient{BaseURL: baseURL, APIKey: apiKey}
}

func (c *WebsiteClient) Reply(ctx context.Context, threadID, body string) (string, error) {
	if threadID == "" {
		return "", errors.New("thread id required")
	}
	if body == "" {
		return "", errors.New("reply body required")
	}
	if c.BaseURL == "" {
		return "", errors.New("website base url required")
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/threads/%s/replies", c.BaseURL, threadID)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.Client.Do(request)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("website status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", errors.New("missing reply id")
	}
	return decoded.ID, nil
}
