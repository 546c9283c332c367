package service

import (
	"context"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

// LedgerStore is the account backend: every mutation is atomic with
// respect to concurrent operations touching the same account.
type LedgerStore interface {
	CreateAccount(ctx context.Context, clubID string, initial int64) error
	GetBalance(ctx context.Context, clubID string) (int64, error)
	Credit(ctx context.Context, clubID string, amount int64) error
	Debit(ctx context.Context, clubID string, amount int64) error
	Transfer(ctx context.Context, fromClubID, toClubID string, amount int64) error
}

type LedgerService struct {
	store LedgerStore
}

func NewLedgerService(store LedgerStore) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) CreateAccount(ctx context.Context, clubID string, initial int64) error {
	if initial < 0 {
		return models.ErrInvalidAmount
	}
	return s.store.CreateAccount(ctx, clubID, initial)
}

func (s *LedgerService) GetBalance(ctx context.Context, clubID string) (int64, error) {
	return s.store.GetBalance(ctx, clubID)
}

func (s *LedgerService) Credit(ctx context.Context, clubID string, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	return s.store.Credit(ctx, clubID, amount)
}

func (s *LedgerService) Debit(ctx context.Context, clubID string, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	return s.store.Debit(ctx, clubID, amount)
}

func (s *LedgerService) Transfer(ctx context.Context, fromClubID, toClubID string, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	return s.store.Transfer(ctx, fromClubID, toClubID, amount)
}
