package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

// SettlementStore applies an approved bid as one transaction: debit the
// bidder, credit the seller, move the player and finalize the bid. The
// original game did these as four unrelated statements; here either all
// of them commit or none do.
type SettlementStore struct {
	db *pgxpool.Pool
}

func NewSettlementStore(db *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{db: db}
}

func (s *SettlementStore) Settle(ctx context.Context, bid *models.Bid) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.settleTx(ctx, tx, bid); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	return nil
}

func (s *SettlementStore) settleTx(ctx context.Context, tx pgx.Tx, bid *models.Bid) error {
	// Account rows first, ascending club id, then the ownership row,
	// then the bid row. Same order as every other write path.
	first, second := bid.BidderClubID, bid.SellerClubID
	if first > second {
		first, second = second, first
	}

	balances := map[string]int64{}
	for _, clubID := range []string{first, second} {
		var balance int64
		err := tx.QueryRow(ctx, `
			SELECT balance FROM accounts WHERE club_id = $1 FOR UPDATE
		`, clubID).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrAccountNotFound
			}
			return fmt.Errorf("failed to lock account %s: %w", clubID, err)
		}
		balances[clubID] = balance
	}

	var owner string
	err := tx.QueryRow(ctx, `
		SELECT club_id FROM ownership WHERE player_id = $1 FOR UPDATE
	`, bid.PlayerID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrOwnershipConflict
		}
		return fmt.Errorf("failed to lock ownership of player %s: %w", bid.PlayerID, err)
	}
	if owner != bid.SellerClubID {
		return models.ErrOwnershipConflict
	}

	if balances[bid.BidderClubID] < bid.Amount {
		return models.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = now() WHERE club_id = $1
	`, bid.BidderClubID, bid.Amount); err != nil {
		return fmt.Errorf("failed to debit bidder %s: %w", bid.BidderClubID, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = now() WHERE club_id = $1
	`, bid.SellerClubID, bid.Amount); err != nil {
		return fmt.Errorf("failed to credit seller %s: %w", bid.SellerClubID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ownership SET club_id = $2, updated_at = now() WHERE player_id = $1
	`, bid.PlayerID, bid.BidderClubID); err != nil {
		return fmt.Errorf("failed to move player %s: %w", bid.PlayerID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bids SET state = $2, admin_decision_at = now()
		WHERE id = $1 AND state = $3
	`, bid.ID, models.BidApproved, models.BidSellerAccepted)
	if err != nil {
		return fmt.Errorf("failed to finalize bid %d: %w", bid.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}
