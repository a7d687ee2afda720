package businessflow

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/app/services"
	"github.com/kingsmedia/herald/repository"
	"github.com/kingsmedia/herald/utils"
)

// AuthFlow represents the operator authentication flow used by handlers
type AuthFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
}

// AuthFlowImpl verifies operator credentials and issues access tokens
type AuthFlowImpl struct {
	operatorRepo   repository.OperatorRepository
	tokenService   services.TokenService
	tokenExpirySec int
}

func NewAuthFlow(operatorRepo repository.OperatorRepository, tokenService services.TokenService, tokenExpirySec int) AuthFlow {
	return &AuthFlowImpl{
		operatorRepo:   operatorRepo,
		tokenService:   tokenService,
		tokenExpirySec: tokenExpirySec,
	}
}

func (af *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if req == nil || len(req.Username) == 0 || len(req.Password) == 0 {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Login validation failed", ErrIncorrectPassword)
	}

	operator, err := af.operatorRepo.ByUsername(ctx, req.Username)
	if err != nil {
		return nil, NewBusinessError("OPERATOR_LOOKUP_FAILED", "Failed to lookup operator", err)
	}
	if operator == nil {
		return nil, NewBusinessError("OPERATOR_NOT_FOUND", "Operator not found", ErrOperatorNotFound)
	}
	if !utils.IsTrue(operator.IsActive) {
		return nil, NewBusinessError("OPERATOR_INACTIVE", "Operator account is inactive", ErrOperatorInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewBusinessError("INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	accessToken, err := af.tokenService.GenerateToken(operator.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	now := utils.UTCNow()
	if err := af.operatorRepo.UpdateLastLogin(ctx, operator.ID, now); err != nil {
		return nil, NewBusinessError("LOGIN_UPDATE_FAILED", "Failed to record login", err)
	}
	operator.LastLoginAt = &now

	return &dto.LoginResponse{
		Operator: ToOperatorDTO(*operator),
		Session: dto.SessionDTO{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   af.tokenExpirySec,
		},
	}, nil
}
