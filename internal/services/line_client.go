package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"notifyhub/internal/metrics"
)

// LineClient talks to the LINE Messaging API
type LineClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewLineClient creates a new LINE API client. timeout bounds every single call.
func NewLineClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *LineClient {
	return &LineClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: m,
	}
}

// LineProfile is the subset of the profile endpoint we keep
type LineProfile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetProfile fetches the profile of a user who added the bot as a friend
func (lc *LineClient) GetProfile(ctx context.Context, accessToken, userID string) (*LineProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		lc.baseURL+"/v2/bot/profile/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var profile LineProfile
	err = lc.do(req, &profile)
	lc.metrics.ObserveLineAPI("profile", err)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// PushText sends one text message to a single user
func (lc *LineClient) PushText(ctx context.Context, accessToken, to, text string) error {
	jsonData, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		lc.baseURL+"/v2/bot/message/push", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	err = lc.do(req, nil)
	lc.metrics.ObserveLineAPI("push", err)
	return err
}

func (lc *LineClient) do(req *http.Request, out interface{}) error {
	resp, err := lc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("LINE API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
