package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(ctx context.Context, clubID string, initial int64) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO accounts (club_id, balance, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (club_id) DO NOTHING
	`, clubID, initial)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountAlreadyExists
	}
	return nil
}

func (s *AccountStore) GetBalance(ctx context.Context, clubID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE club_id = $1
	`, clubID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *AccountStore) Credit(ctx context.Context, clubID string, amount int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = now()
		WHERE club_id = $1
	`, clubID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit account %s: %w", clubID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// Debit decreases the balance only when it covers the amount. The
// conditional update keeps the non-negative invariant under concurrent
// debits against the same account.
func (s *AccountStore) Debit(ctx context.Context, clubID string, amount int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = now()
		WHERE club_id = $1 AND balance >= $2
	`, clubID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit account %s: %w", clubID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetBalance(ctx, clubID); err != nil {
			return err
		}
		return models.ErrInsufficientFunds
	}
	return nil
}

// Transfer moves amount between two accounts in one transaction.
// Rows are locked in ascending club id order so two opposite-direction
// transfers cannot deadlock each other.
func (s *AccountStore) Transfer(ctx context.Context, fromClubID, toClubID string, amount int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := transferTx(ctx, tx, fromClubID, toClubID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

func transferTx(ctx context.Context, tx pgx.Tx, fromClubID, toClubID string, amount int64) error {
	first, second := fromClubID, toClubID
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

	if balances[fromClubID] < amount {
		return models.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = now() WHERE club_id = $1
	`, fromClubID, amount); err != nil {
		return fmt.Errorf("failed to debit account %s: %w", fromClubID, err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = now() WHERE club_id = $1
	`, toClubID, amount); err != nil {
		return fmt.Errorf("failed to credit account %s: %w", toClubID, err)
	}
	return nil
}
