package service

import (
	"context"
)

// RosterStore holds player -> club ownership.
type RosterStore interface {
	OwnerOf(ctx context.Context, playerID string) (string, error)
	SetOwner(ctx context.Context, playerID, clubID string) error
	TransferOwnership(ctx context.Context, playerID, expectedOwner, newOwner string) error
}

type RosterService struct {
	store RosterStore
}

func NewRosterService(store RosterStore) *RosterService {
	return &RosterService{store: store}
}

func (s *RosterService) OwnerOf(ctx context.Context, playerID string) (string, error) {
	return s.store.OwnerOf(ctx, playerID)
}

// SetOwner is the admin override: it reassigns a player directly,
// bypassing any negotiation. In-flight bids against the player become
// stale and fail their ownership re-check.
func (s *RosterService) SetOwner(ctx context.Context, playerID, clubID string) error {
	return s.store.SetOwner(ctx, playerID, clubID)
}

func (s *RosterService) TransferOwnership(ctx context.Context, playerID, expectedOwner, newOwner string) error {
	return s.store.TransferOwnership(ctx, playerID, expectedOwner, newOwner)
}
