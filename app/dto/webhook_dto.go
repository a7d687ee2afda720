package dto

// BrevoWebhookEvent is the payload the email provider posts on delivery
// status changes. Field names follow the provider's wire format.
type BrevoWebhookEvent struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	MessageID string `json:"message-id"`
	Link      string `json:"link,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// ChatCredentialRequest stores or replaces the KingsChat sending account
type ChatCredentialRequest struct {
	Handle       string `json:"handle" validate:"required,max=255"`
	ClientID     string `json:"client_id" validate:"required,max=255"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChatCredentialResponse confirms the stored account without echoing tokens
type ChatCredentialResponse struct {
	Handle   string `json:"handle"`
	ClientID string `json:"client_id"`
}
