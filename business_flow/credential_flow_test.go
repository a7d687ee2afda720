package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsmedia/herald/app/dto"
)

func TestCredentialFlow(t *testing.T) {
	t.Run("GetWithoutStoredCredential", func(t *testing.T) {
		flow := NewCredentialFlow(&mockCredentialRepo{})

		_, err := flow.Get(context.Background())
		require.Error(t, err)
		assert.True(t, IsCredentialNotFound(err))
	})

	t.Run("StoreAndGet", func(t *testing.T) {
		repo := &mockCredentialRepo{}
		flow := NewCredentialFlow(repo)

		resp, err := flow.Store(context.Background(), &dto.ChatCredentialRequest{
			Handle:       "@kingsmedia",
			ClientID:     "client-abc",
			AccessToken:  "access-token-1",
			RefreshToken: "refresh-token-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "@kingsmedia", resp.Handle)
		assert.Equal(t, "client-abc", resp.ClientID)

		got, err := flow.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "@kingsmedia", got.Handle)
	})

	t.Run("StoreReplacesExisting", func(t *testing.T) {
		repo := &mockCredentialRepo{}
		flow := NewCredentialFlow(repo)

		_, err := flow.Store(context.Background(), &dto.ChatCredentialRequest{
			Handle:       "@old",
			ClientID:     "client-old",
			AccessToken:  "a1",
			RefreshToken: "r1",
		})
		require.NoError(t, err)

		_, err = flow.Store(context.Background(), &dto.ChatCredentialRequest{
			Handle:       "@new",
			ClientID:     "client-new",
			AccessToken:  "a2",
			RefreshToken: "r2",
		})
		require.NoError(t, err)

		stored, err := repo.First(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "@new", stored.Handle)
		assert.Equal(t, "a2", stored.AccessToken)
	})
}
