// Package services provides external service integrations and technical concerns like message delivery and tokens
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kingsmedia/herald/config"
	"github.com/kingsmedia/herald/utils"
)

// EmailGateway sends broadcast emails through the transactional email provider
type EmailGateway interface {
	// Send delivers a single email and returns the provider message id used
	// later to correlate webhook events.
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// EmailMessage is a fully expanded email ready for delivery
type EmailMessage struct {
	To             string
	ToName         string
	Subject        string
	HTMLBody       string
	AttachmentPath *string
	AttachmentName *string
}

// EmailGatewayImpl implements EmailGateway against the Brevo v3 API
type EmailGatewayImpl struct {
	config *config.EmailConfig
	client *http.Client
}

type brevoSender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoAttachment struct {
	Content string `json:"content"` // base64
	Name    string `json:"name"`
}

type brevoSendRequest struct {
	Sender      brevoSender       `json:"sender"`
	To          []brevoRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

type brevoErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEmailGateway creates a new email gateway instance
func NewEmailGateway(cfg *config.EmailConfig) EmailGateway {
	return &EmailGatewayImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send delivers a single email via the provider's transactional endpoint
func (g *EmailGatewayImpl) Send(ctx context.Context, msg EmailMessage) (string, error) {
	payload := brevoSendRequest{
		Sender: brevoSender{
			Name:  g.config.FromName,
			Email: g.config.FromEmail,
		},
		To: []brevoRecipient{
			{Email: msg.To, Name: msg.ToName},
		},
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
	}

	if msg.AttachmentPath != nil && *msg.AttachmentPath != "" {
		attachment, err := g.loadAttachment(*msg.AttachmentPath, msg.AttachmentName)
		if err != nil {
			return "", err
		}
		payload.Attachment = append(payload.Attachment, attachment)
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email request: %w", err)
	}

	url := fmt.Sprintf("https://%s/v3/smtp/email", g.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr brevoErrorResponse
		body, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return "", fmt.Errorf("email delivery failed for %s: %s (%s)", msg.To, apiErr.Message, apiErr.Code)
		}
		return "", fmt.Errorf("email delivery failed for %s: status %d", msg.To, resp.StatusCode)
	}

	var result brevoSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode email response: %w", err)
	}
	return result.MessageID, nil
}

func (g *EmailGatewayImpl) loadAttachment(path string, name *string) (brevoAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return brevoAttachment{}, fmt.Errorf("failed to read attachment %s: %w", path, err)
	}
	attachmentName := "attachment"
	if name != nil && *name != "" {
		attachmentName = *name
	}
	return brevoAttachment{
		Content: base64.StdEncoding.EncodeToString(data),
		Name:    attachmentName,
	}, nil
}

// MockEmailGateway implements EmailGateway for testing
type MockEmailGateway struct {
	SentMessages []MockEmailMessage
	FailFor      map[string]error // recipient email -> error to return
	NextID       int
}

// MockEmailMessage records a mock email delivery
type MockEmailMessage struct {
	To        string
	Subject   string
	HTMLBody  string
	MessageID string
	SentAt    time.Time
}

// NewMockEmailGateway creates a new mock email gateway
func NewMockEmailGateway() *MockEmailGateway {
	return &MockEmailGateway{
		SentMessages: make([]MockEmailMessage, 0),
		FailFor:      make(map[string]error),
	}
}

func (m *MockEmailGateway) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if err, ok := m.FailFor[msg.To]; ok {
		return "", err
	}
	m.NextID++
	messageID := fmt.Sprintf("mock-%d", m.NextID)
	m.SentMessages = append(m.SentMessages, MockEmailMessage{
		To:        msg.To,
		Subject:   msg.Subject,
		HTMLBody:  msg.HTMLBody,
		MessageID: messageID,
		SentAt:    utils.UTCNow(),
	})
	return messageID, nil
}
