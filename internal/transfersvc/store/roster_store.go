package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

type RosterStore struct {
	db *pgxpool.Pool
}

func NewRosterStore(db *pgxpool.Pool) *RosterStore {
	return &RosterStore{db: db}
}

// OwnerOf returns the owning club id, or an empty string when the
// player is unassigned.
func (s *RosterStore) OwnerOf(ctx context.Context, playerID string) (string, error) {
	var clubID string
	err := s.db.QueryRow(ctx, `
		SELECT club_id FROM ownership WHERE player_id = $1
	`, playerID).Scan(&clubID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get owner of player %s: %w", playerID, err)
	}
	return clubID, nil
}

// SetOwner assigns the player unconditionally. This is the admin
// override path; negotiated transfers go through TransferOwnership.
func (s *RosterStore) SetOwner(ctx context.Context, playerID, clubID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ownership (player_id, club_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (player_id) DO UPDATE SET club_id = $2, updated_at = now()
	`, playerID, clubID)
	if err != nil {
		return fmt.Errorf("failed to set owner of player %s: %w", playerID, err)
	}
	return nil
}

// TransferOwnership reassigns the player only while the current owner
// still matches expectedOwner, guarding against stale bids.
func (s *RosterStore) TransferOwnership(ctx context.Context, playerID, expectedOwner, newOwner string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ownership SET club_id = $3, updated_at = now()
		WHERE player_id = $1 AND club_id = $2
	`, playerID, expectedOwner, newOwner)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership of player %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOwnershipConflict
	}
	return nil
}
