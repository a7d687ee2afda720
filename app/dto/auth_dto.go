package dto

// LoginRequest represents an operator login attempt
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// OperatorDTO represents an operator in API responses
type OperatorDTO struct {
	ID          uint    `json:"id"`
	UUID        string  `json:"uuid"`
	Username    string  `json:"username"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
}

// SessionDTO represents the issued access token
type SessionDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// LoginResponse represents a successful operator login
type LoginResponse struct {
	Operator OperatorDTO `json:"operator"`
	Session  SessionDTO  `json:"session"`
}
