package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

type BidStore struct {
	db *pgxpool.Pool
}

func NewBidStore(db *pgxpool.Pool) *BidStore {
	return &BidStore{db: db}
}

const bidColumns = `id, bidder_club_id, player_id, seller_club_id, amount,
	description, state, created_at, seller_decision_at, admin_decision_at`

func scanBid(row pgx.Row) (*models.Bid, error) {
	bid := &models.Bid{}
	err := row.Scan(
		&bid.ID,
		&bid.BidderClubID,
		&bid.PlayerID,
		&bid.SellerClubID,
		&bid.Amount,
		&bid.Description,
		&bid.State,
		&bid.CreatedAt,
		&bid.SellerDecisionAt,
		&bid.AdminDecisionAt,
	)
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func (s *BidStore) Create(ctx context.Context, bid *models.Bid) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO bids (bidder_club_id, player_id, seller_club_id, amount, description, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`, bid.BidderClubID, bid.PlayerID, bid.SellerClubID, bid.Amount, bid.Description, bid.State).
		Scan(&bid.ID, &bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

func (s *BidStore) Get(ctx context.Context, id int64) (*models.Bid, error) {
	bid, err := scanBid(s.db.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bids WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid %d: %w", id, err)
	}
	return bid, nil
}

// UpdateState moves the bid from one state to another as a compare-and-set
// so a concurrent decision on the same bid fails with ErrInvalidState
// instead of overwriting a terminal state.
func (s *BidStore) UpdateState(ctx context.Context, id int64, from, to models.BidState, decidedAt time.Time) error {
	column := "admin_decision_at"
	if to == models.BidSellerAccepted || to == models.BidSellerRejected {
		column = "seller_decision_at"
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE bids SET state = $3, `+column+` = $4
		WHERE id = $1 AND state = $2
	`, id, from, to, decidedAt)
	if err != nil {
		return fmt.Errorf("failed to update bid %d state: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return models.ErrInvalidState
	}
	return nil
}

func (s *BidStore) ListByState(ctx context.Context, state models.BidState) ([]*models.Bid, error) {
	return s.list(ctx, `
		SELECT `+bidColumns+` FROM bids WHERE state = $1 ORDER BY created_at DESC
	`, state)
}

func (s *BidStore) ListByBidder(ctx context.Context, clubID string) ([]*models.Bid, error) {
	return s.list(ctx, `
		SELECT `+bidColumns+` FROM bids WHERE bidder_club_id = $1 ORDER BY created_at DESC
	`, clubID)
}

// ListIncoming returns pending bids against players currently on the
// club's roster, matching what a seller sees as incoming offers.
func (s *BidStore) ListIncoming(ctx context.Context, clubID string) ([]*models.Bid, error) {
	return s.list(ctx, `
		SELECT `+bidColumns+` FROM bids b
		WHERE b.state = 'pending'
		  AND EXISTS (
			SELECT 1 FROM ownership o
			WHERE o.player_id = b.player_id AND o.club_id = $1
		  )
		ORDER BY b.created_at DESC
	`, clubID)
}

func (s *BidStore) List(ctx context.Context) ([]*models.Bid, error) {
	return s.list(ctx, `
		SELECT `+bidColumns+` FROM bids ORDER BY created_at DESC
	`)
}

func (s *BidStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Bid, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bids: %w", err)
	}
	return bids, nil
}
