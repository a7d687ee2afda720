package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/kingsmedia/herald/app/services"
	"github.com/kingsmedia/herald/repository"
)

// TokenRefresher keeps the stored KingsChat access token fresh by periodically
// exchanging the refresh token. When the provider does not rotate the refresh
// token the stored one is kept.
type TokenRefresher struct {
	credRepo repository.ChatCredentialRepository
	gateway  services.ChatGateway
	logger   *log.Logger
	interval time.Duration
}

func NewTokenRefresher(credRepo repository.ChatCredentialRepository, gateway services.ChatGateway, logger *log.Logger, interval time.Duration) *TokenRefresher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TokenRefresher{
		credRepo: credRepo,
		gateway:  gateway,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the refresh loop in a background goroutine and returns a stop function
func (t *TokenRefresher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (t *TokenRefresher) runOnce(ctx context.Context) {
	cred, err := t.credRepo.First(ctx)
	if err != nil {
		t.logger.Printf("token refresher: load credential failed: %v", err)
		return
	}
	if cred == nil || cred.RefreshToken == "" {
		return
	}

	pair, err := t.gateway.RefreshTokens(ctx, cred.ClientID, cred.RefreshToken)
	if err != nil {
		t.logger.Printf("token refresher: refresh failed: %v", err)
		return
	}

	refreshToken := pair.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}
	if err := t.credRepo.UpdateTokens(ctx, cred.ID, pair.AccessToken, refreshToken); err != nil {
		t.logger.Printf("token refresher: persist tokens failed: %v", err)
		return
	}
	t.logger.Printf("token refresher: tokens rotated for handle %s", cred.Handle)
}
