package custody

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakelend-backend/internal/domain"
)

func TestMockCustodyTransfers(t *testing.T) {
	ctx := context.Background()
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}

	t.Run("transfer in requires approval", func(t *testing.T) {
		m := NewMockCustody()
		require.NoError(t, m.Register(ctx, ref, 1))

		err := m.TransferIn(ctx, ref)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		require.NoError(t, m.SetCustodyApproval(ctx, ref, 1, true))
		assert.NoError(t, m.TransferIn(ctx, ref))
	})

	t.Run("transfer out resets approval and grant", func(t *testing.T) {
		m := NewMockCustody()
		require.NoError(t, m.Register(ctx, ref, 1))
		require.NoError(t, m.SetCustodyApproval(ctx, ref, 1, true))
		require.NoError(t, m.TransferIn(ctx, ref))
		m.SetGrant(ref, 2, time.Now().Add(-time.Hour))

		require.NoError(t, m.TransferOut(ctx, ref, 1))

		asset, err := m.Get(ctx, ref)
		require.NoError(t, err)
		assert.False(t, asset.Custodied)
		assert.False(t, asset.CustodyApproved)
		assert.Nil(t, asset.CurrentUserID)
		assert.Nil(t, asset.UserExpiry)
	})

	t.Run("operator approval can be granted and revoked", func(t *testing.T) {
		m := NewMockCustody()
		require.NoError(t, m.SetOperatorApproval(ctx, 1, 2, true))
		ok, err := m.IsApprovedOperator(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, m.SetOperatorApproval(ctx, 1, 2, false))
		ok, err = m.IsApprovedOperator(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("re-registering under a different owner fails", func(t *testing.T) {
		m := NewMockCustody()
		require.NoError(t, m.Register(ctx, ref, 1))
		assert.NoError(t, m.Register(ctx, ref, 1))
		assert.Error(t, m.Register(ctx, ref, 2))
	})
}

func TestMockCustodyGrants(t *testing.T) {
	ctx := context.Background()
	ref := domain.AssetRef{Contract: "vault-a", TokenID: 42}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) *MockCustody {
		t.Helper()
		m := NewMockCustody()
		require.NoError(t, m.Register(ctx, ref, 1))
		require.NoError(t, m.SetCustodyApproval(ctx, ref, 1, true))
		require.NoError(t, m.TransferIn(ctx, ref))
		return m
	}

	t.Run("expired grants are listed and cleared", func(t *testing.T) {
		m := setup(t)
		m.SetGrant(ref, 2, now.Add(-time.Hour))

		expired, err := m.ListExpiredGrants(ctx, now)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, ref, expired[0].Ref)

		require.NoError(t, m.ClearGrant(ctx, ref, now))

		user, err := m.CurrentUser(ctx, ref)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("a live grant is not cleared", func(t *testing.T) {
		m := setup(t)
		m.SetGrant(ref, 2, now.Add(time.Hour))

		expired, err := m.ListExpiredGrants(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, expired)

		require.NoError(t, m.ClearGrant(ctx, ref, now))
		user, err := m.CurrentUser(ctx, ref)
		require.NoError(t, err)
		assert.NotNil(t, user)
	})
}
