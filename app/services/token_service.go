package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kingsmedia/herald/utils"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService handles JWT token generation and validation for operators
type TokenService interface {
	GenerateToken(operatorID uint) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in an operator JWT
type TokenClaims struct {
	OperatorID uint      `json:"operator_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	TokenID    string    `json:"jti"`
}

// TokenServiceImpl implements TokenService with HMAC signing
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	secretKey      []byte
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
	}, nil
}

// GenerateToken generates an access token for an operator
func (s *TokenServiceImpl) GenerateToken(operatorID uint) (string, error) {
	now := utils.UTCNow()

	tokenID, err := generateTokenID()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"operator_id": operatorID,
		"jti":         tokenID,
		"iat":         now.Unix(),
		"exp":         now.Add(s.accessTokenTTL).Unix(),
		"iss":         s.issuer,
		"aud":         s.audience,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates an operator JWT and returns its claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		// Check if the error is due to token expiration
		if strings.Contains(err.Error(), "expired") || strings.Contains(err.Error(), "exp") {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	operatorID, ok := claims["operator_id"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	if utils.UTCNow().After(time.Unix(int64(expiresAt), 0)) {
		return nil, ErrTokenExpired
	}

	return &TokenClaims{
		OperatorID: uint(operatorID),
		TokenID:    tokenID,
		IssuedAt:   time.Unix(int64(issuedAt), 0),
		ExpiresAt:  time.Unix(int64(expiresAt), 0),
	}, nil
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}
