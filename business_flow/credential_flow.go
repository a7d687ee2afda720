package businessflow

import (
	"context"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
)

// CredentialFlow stores and reads the KingsChat sender account
type CredentialFlow interface {
	Store(ctx context.Context, req *dto.ChatCredentialRequest) (*dto.ChatCredentialResponse, error)
	Get(ctx context.Context) (*dto.ChatCredentialResponse, error)
}

// CredentialFlowImpl implements CredentialFlow
type CredentialFlowImpl struct {
	credRepo repository.ChatCredentialRepository
}

func NewCredentialFlow(credRepo repository.ChatCredentialRepository) CredentialFlow {
	return &CredentialFlowImpl{credRepo: credRepo}
}

func (f *CredentialFlowImpl) Store(ctx context.Context, req *dto.ChatCredentialRequest) (*dto.ChatCredentialResponse, error) {
	cred := &models.ChatCredential{
		Handle:       req.Handle,
		ClientID:     req.ClientID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	if err := f.credRepo.Upsert(ctx, cred); err != nil {
		return nil, NewBusinessError("CREDENTIAL_STORE_FAILED", "Failed to store credential", err)
	}
	return &dto.ChatCredentialResponse{Handle: cred.Handle, ClientID: cred.ClientID}, nil
}

func (f *CredentialFlowImpl) Get(ctx context.Context) (*dto.ChatCredentialResponse, error) {
	cred, err := f.credRepo.First(ctx)
	if err != nil {
		return nil, NewBusinessError("CREDENTIAL_LOOKUP_FAILED", "Failed to lookup credential", err)
	}
	if cred == nil {
		return nil, NewBusinessError("CREDENTIAL_NOT_FOUND", "No KingsChat credential configured", ErrCredentialNotFound)
	}
	return &dto.ChatCredentialResponse{Handle: cred.Handle, ClientID: cred.ClientID}, nil
}
