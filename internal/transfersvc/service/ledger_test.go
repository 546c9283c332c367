package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
	"github.com/clubmgr/transfer-services/internal/transfersvc/store/memory"
)

func TestLedgerServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.NewStore())

	assert.ErrorIs(t, svc.CreateAccount(ctx, "club-a", -1), models.ErrInvalidAmount)
	require.NoError(t, svc.CreateAccount(ctx, "club-a", 100))
	require.NoError(t, svc.CreateAccount(ctx, "club-b", 0))

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		assert.ErrorIs(t, svc.Credit(ctx, "club-a", 0), models.ErrInvalidAmount)
		assert.ErrorIs(t, svc.Debit(ctx, "club-a", -10), models.ErrInvalidAmount)
		assert.ErrorIs(t, svc.Transfer(ctx, "club-a", "club-b", 0), models.ErrInvalidAmount)
	})

	t.Run("passes valid operations through", func(t *testing.T) {
		require.NoError(t, svc.Credit(ctx, "club-a", 50))
		require.NoError(t, svc.Transfer(ctx, "club-a", "club-b", 120))
		require.NoError(t, svc.Debit(ctx, "club-b", 20))

		a, err := svc.GetBalance(ctx, "club-a")
		require.NoError(t, err)
		b, err := svc.GetBalance(ctx, "club-b")
		require.NoError(t, err)
		assert.Equal(t, int64(30), a)
		assert.Equal(t, int64(100), b)
	})

	t.Run("insufficient funds surfaces unchanged", func(t *testing.T) {
		assert.ErrorIs(t, svc.Debit(ctx, "club-a", 1000), models.ErrInsufficientFunds)
		assert.ErrorIs(t, svc.Transfer(ctx, "club-a", "club-b", 1000), models.ErrInsufficientFunds)
	})
}
