// Package memory is an in-process backend with the same contract as the
// postgres stores. Atomicity comes from per-account mutexes acquired in
// ascending club id order, then the roster lock, then the bid lock. Every
// write path follows that order, so no two operations can deadlock.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

type account struct {
	mu      sync.Mutex
	balance int64
}

type Store struct {
	accMu    sync.RWMutex
	accounts map[string]*account

	rosterMu sync.Mutex
	roster   map[string]string // player id -> owning club id

	bidMu  sync.Mutex
	bids   map[int64]*models.Bid
	nextID int64
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*account),
		roster:   make(map[string]string),
		bids:     make(map[int64]*models.Bid),
	}
}

func (s *Store) account(clubID string) (*account, bool) {
	s.accMu.RLock()
	defer s.accMu.RUnlock()
	acc, ok := s.accounts[clubID]
	return acc, ok
}

// lockAccounts locks the given accounts in ascending club id order and
// returns them keyed by club id plus an unlock func.
func (s *Store) lockAccounts(clubIDs ...string) (map[string]*account, func(), error) {
	ids := append([]string(nil), clubIDs...)
	sort.Strings(ids)
	ids = slices.Compact(ids)

	locked := make([]*account, 0, len(ids))
	accs := make(map[string]*account, len(ids))
	unlock := func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}
	for _, id := range ids {
		acc, ok := s.account(id)
		if !ok {
			unlock()
			return nil, nil, models.ErrAccountNotFound
		}
		acc.mu.Lock()
		locked = append(locked, acc)
		accs[id] = acc
	}
	return accs, unlock, nil
}

// --- account ledger ---

func (s *Store) CreateAccount(ctx context.Context, clubID string, initial int64) error {
	s.accMu.Lock()
	defer s.accMu.Unlock()
	if _, ok := s.accounts[clubID]; ok {
		return models.ErrAccountAlreadyExists
	}
	s.accounts[clubID] = &account{balance: initial}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, clubID string) (int64, error) {
	acc, ok := s.account(clubID)
	if !ok {
		return 0, models.ErrAccountNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

func (s *Store) Credit(ctx context.Context, clubID string, amount int64) error {
	acc, ok := s.account(clubID)
	if !ok {
		return models.ErrAccountNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.balance += amount
	return nil
}

func (s *Store) Debit(ctx context.Context, clubID string, amount int64) error {
	acc, ok := s.account(clubID)
	if !ok {
		return models.ErrAccountNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if acc.balance < amount {
		return models.ErrInsufficientFunds
	}
	acc.balance -= amount
	return nil
}

func (s *Store) Transfer(ctx context.Context, fromClubID, toClubID string, amount int64) error {
	accs, unlock, err := s.lockAccounts(fromClubID, toClubID)
	if err != nil {
		return err
	}
	defer unlock()

	from, to := accs[fromClubID], accs[toClubID]
	if from.balance < amount {
		return models.ErrInsufficientFunds
	}
	from.balance -= amount
	to.balance += amount
	return nil
}

// --- roster ---

func (s *Store) OwnerOf(ctx context.Context, playerID string) (string, error) {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	return s.roster[playerID], nil
}

func (s *Store) SetOwner(ctx context.Context, playerID, clubID string) error {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	s.roster[playerID] = clubID
	return nil
}

func (s *Store) TransferOwnership(ctx context.Context, playerID, expectedOwner, newOwner string) error {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	if s.roster[playerID] != expectedOwner {
		return models.ErrOwnershipConflict
	}
	s.roster[playerID] = newOwner
	return nil
}

// --- bid registry ---

func (s *Store) Create(ctx context.Context, bid *models.Bid) error {
	s.bidMu.Lock()
	defer s.bidMu.Unlock()
	s.nextID++
	bid.ID = s.nextID
	bid.CreatedAt = time.Now()
	s.bids[bid.ID] = bid.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Bid, error) {
	s.bidMu.Lock()
	defer s.bidMu.Unlock()
	bid, ok := s.bids[id]
	if !ok {
		return nil, models.ErrBidNotFound
	}
	return bid.Clone(), nil
}

func (s *Store) UpdateState(ctx context.Context, id int64, from, to models.BidState, decidedAt time.Time) error {
	s.bidMu.Lock()
	defer s.bidMu.Unlock()
	return s.updateStateLocked(id, from, to, decidedAt)
}

func (s *Store) updateStateLocked(id int64, from, to models.BidState, decidedAt time.Time) error {
	bid, ok := s.bids[id]
	if !ok {
		return models.ErrBidNotFound
	}
	if bid.State != from {
		return models.ErrInvalidState
	}
	bid.State = to
	if to == models.BidSellerAccepted || to == models.BidSellerRejected {
		bid.SellerDecisionAt = &decidedAt
	} else {
		bid.AdminDecisionAt = &decidedAt
	}
	return nil
}

func (s *Store) ListByState(ctx context.Context, state models.BidState) ([]*models.Bid, error) {
	return s.filter(func(b *models.Bid) bool { return b.State == state }), nil
}

func (s *Store) ListByBidder(ctx context.Context, clubID string) ([]*models.Bid, error) {
	return s.filter(func(b *models.Bid) bool { return b.BidderClubID == clubID }), nil
}

func (s *Store) ListIncoming(ctx context.Context, clubID string) ([]*models.Bid, error) {
	s.rosterMu.Lock()
	owned := make(map[string]bool)
	for playerID, owner := range s.roster {
		if owner == clubID {
			owned[playerID] = true
		}
	}
	s.rosterMu.Unlock()

	return s.filter(func(b *models.Bid) bool {
		return b.State == models.BidPending && owned[b.PlayerID]
	}), nil
}

func (s *Store) List(ctx context.Context) ([]*models.Bid, error) {
	return s.filter(func(*models.Bid) bool { return true }), nil
}

func (s *Store) filter(keep func(*models.Bid) bool) []*models.Bid {
	s.bidMu.Lock()
	defer s.bidMu.Unlock()
	var bids []*models.Bid
	for _, b := range s.bids {
		if keep(b) {
			bids = append(bids, b.Clone())
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID > bids[j].ID })
	return bids
}

// --- settlement ---

// Settle applies the bid while holding every involved lock, so no reader
// ever observes the debit without the credit and roster move.
func (s *Store) Settle(ctx context.Context, bid *models.Bid) error {
	accs, unlock, err := s.lockAccounts(bid.BidderClubID, bid.SellerClubID)
	if err != nil {
		return err
	}
	defer unlock()

	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	s.bidMu.Lock()
	defer s.bidMu.Unlock()

	stored, ok := s.bids[bid.ID]
	if !ok {
		return models.ErrBidNotFound
	}
	if stored.State != models.BidSellerAccepted {
		return models.ErrInvalidState
	}

	if s.roster[bid.PlayerID] != bid.SellerClubID {
		return models.ErrOwnershipConflict
	}

	bidder := accs[bid.BidderClubID]
	if bidder.balance < bid.Amount {
		return models.ErrInsufficientFunds
	}

	bidder.balance -= bid.Amount
	accs[bid.SellerClubID].balance += bid.Amount
	s.roster[bid.PlayerID] = bid.BidderClubID

	now := time.Now()
	stored.State = models.BidApproved
	stored.AdminDecisionAt = &now
	return nil
}
