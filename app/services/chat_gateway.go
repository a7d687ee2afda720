package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kingsmedia/herald/config"
	"github.com/kingsmedia/herald/utils"
)

// ChatGateway sends direct messages through the KingsChat API and refreshes
// the stored OAuth tokens when they near expiry.
type ChatGateway interface {
	SendMessage(ctx context.Context, accessToken, kcUserID, message string) error
	RefreshTokens(ctx context.Context, clientID, refreshToken string) (*TokenPair, error)
}

// TokenPair is the result of an OAuth refresh exchange. RefreshToken may be
// empty when the provider rotates only the access token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ChatGatewayImpl implements ChatGateway
type ChatGatewayImpl struct {
	config *config.KingsChatConfig
	client *http.Client
}

type chatMessageRequest struct {
	Message struct {
		Body struct {
			Text struct {
				Body string `json:"body"`
			} `json:"text"`
		} `json:"body"`
	} `json:"message"`
}

type chatRefreshRequest struct {
	ClientID     string `json:"client_id"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type chatRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// NewChatGateway creates a new KingsChat gateway instance
func NewChatGateway(cfg *config.KingsChatConfig) ChatGateway {
	return &ChatGatewayImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendMessage posts a text message to a single KingsChat user
func (g *ChatGatewayImpl) SendMessage(ctx context.Context, accessToken, kcUserID, message string) error {
	var payload chatMessageRequest
	payload.Message.Body.Text.Body = message

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/users/%s/new_message", g.config.APIDomain, kcUserID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send chat message request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat delivery failed for %s: status %d: %s", kcUserID, resp.StatusCode, string(body))
	}
	return nil
}

// RefreshTokens exchanges the refresh token for a fresh access token
func (g *ChatGatewayImpl) RefreshTokens(ctx context.Context, clientID, refreshToken string) (*TokenPair, error) {
	payload := chatRefreshRequest{
		ClientID:     clientID,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	url := fmt.Sprintf("https://%s/oauth2/token", g.config.AuthDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token refresh failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result chatRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token refresh returned empty access token")
	}
	return &TokenPair{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// MockChatGateway implements ChatGateway for testing
type MockChatGateway struct {
	SentMessages []MockChatMessage
	FailFor      map[string]error // kc user id -> error to return
	RefreshPair  *TokenPair
	RefreshErr   error
	RefreshCalls int
}

// MockChatMessage records a mock chat delivery
type MockChatMessage struct {
	KCUserID string
	Message  string
	SentAt   time.Time
}

// NewMockChatGateway creates a new mock chat gateway
func NewMockChatGateway() *MockChatGateway {
	return &MockChatGateway{
		SentMessages: make([]MockChatMessage, 0),
		FailFor:      make(map[string]error),
	}
}

func (m *MockChatGateway) SendMessage(ctx context.Context, accessToken, kcUserID, message string) error {
	if err, ok := m.FailFor[kcUserID]; ok {
		return err
	}
	m.SentMessages = append(m.SentMessages, MockChatMessage{
		KCUserID: kcUserID,
		Message:  message,
		SentAt:   utils.UTCNow(),
	})
	return nil
}

func (m *MockChatGateway) RefreshTokens(ctx context.Context, clientID, refreshToken string) (*TokenPair, error) {
	m.RefreshCalls++
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	if m.RefreshPair != nil {
		return m.RefreshPair, nil
	}
	return &TokenPair{AccessToken: "mock-access", RefreshToken: "mock-refresh"}, nil
}
