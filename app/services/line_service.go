package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/harukisato/machidori/config"
)

// LineService handles outbound messaging through the LINE Messaging API
type LineService interface {
	Broadcast(ctx context.Context, accessToken, text string) (string, error)
	Reply(ctx context.Context, accessToken, replyToken, text string) error
}

// LineServiceImpl implements LineService
type LineServiceImpl struct {
	config *config.LineConfig
	client *http.Client
}

// LineMessage represents a single text message payload
type LineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BroadcastRequest represents the broadcast API payload
type BroadcastRequest struct {
	Messages []LineMessage `json:"messages"`
}

// ReplyRequest represents the reply API payload
type ReplyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []LineMessage `json:"messages"`
}

// NewLineService creates a new LINE service instance
func NewLineService(cfg *config.LineConfig) LineService {
	return &LineServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Broadcast sends a text message to all followers of the channel. The
// retry key makes a repeated call after a network failure idempotent on
// the provider side. The returned request id identifies the delivery.
func (s *LineServiceImpl) Broadcast(ctx context.Context, accessToken, text string) (string, error) {
	payload := BroadcastRequest{
		Messages: []LineMessage{{Type: "text", Text: text}},
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal broadcast request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/bot/message/broadcast", s.config.APIBase)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Line-Retry-Key", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send broadcast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("broadcast rejected with status %d: %s", resp.StatusCode, string(body))
	}

	requestID := resp.Header.Get("X-Line-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return requestID, nil
}

// Reply answers an inbound event using its reply token
func (s *LineServiceImpl) Reply(ctx context.Context, accessToken, replyToken, text string) error {
	payload := ReplyRequest{
		ReplyToken: replyToken,
		Messages:   []LineMessage{{Type: "text", Text: text}},
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reply request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/bot/message/reply", s.config.APIBase)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send reply request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reply rejected with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// MockLineService implements LineService for testing
type MockLineService struct {
	mu             sync.Mutex
	BroadcastCalls []MockBroadcastCall
	ReplyCalls     []MockReplyCall
	BroadcastErr   error
	ReplyErr       error
	RequestID      string
}

// MockBroadcastCall records one Broadcast invocation
type MockBroadcastCall struct {
	AccessToken string
	Text        string
}

// MockReplyCall records one Reply invocation
type MockReplyCall struct {
	AccessToken string
	ReplyToken  string
	Text        string
}

// NewMockLineService creates a mock LINE service for testing
func NewMockLineService() *MockLineService {
	return &MockLineService{RequestID: "mock-request-id"}
}

// Broadcast records the call and returns the configured result
func (m *MockLineService) Broadcast(ctx context.Context, accessToken, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BroadcastCalls = append(m.BroadcastCalls, MockBroadcastCall{AccessToken: accessToken, Text: text})
	if m.BroadcastErr != nil {
		return "", m.BroadcastErr
	}
	return m.RequestID, nil
}

// Reply records the call and returns the configured result
func (m *MockLineService) Reply(ctx context.Context, accessToken, replyToken, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReplyCalls = append(m.ReplyCalls, MockReplyCall{AccessToken: accessToken, ReplyToken: replyToken, Text: text})
	return m.ReplyErr
}
