package models

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")

	ErrOwnershipConflict = errors.New("ownership conflict")

	ErrBidNotFound  = errors.New("bid not found")
	ErrInvalidState = errors.New("bid is not in the required state")
	ErrStaleBid     = errors.New("stale bid: acting club no longer owns the player")

	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrMissingDescription = errors.New("description is required")
	ErrSelfBid            = errors.New("cannot bid on a player owned by own club")
	ErrPlayerUnassigned   = errors.New("player is not owned by any club")
)
