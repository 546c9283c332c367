package models

import "time"

type BidState string

const (
	BidPending            BidState = "pending"
	BidSellerAccepted     BidState = "seller_accepted"
	BidSellerRejected     BidState = "seller_rejected"
	BidApproved           BidState = "approved"
	BidRejected           BidState = "rejected"
	BidFailedInsufficient BidState = "failed_insufficient_funds"
)

// Bid is one negotiation instance: a club offering money for a player
// owned by another club. SellerClubID is fixed to the owner at proposal
// time; decisions re-check the live roster before acting on it.
type Bid struct {
	ID               int64      `json:"id"`
	BidderClubID     string     `json:"bidder_club_id"`
	PlayerID         string     `json:"player_id"`
	SellerClubID     string     `json:"seller_club_id"`
	Amount           int64      `json:"amount"`
	Description      string     `json:"description"`
	State            BidState   `json:"state"`
	CreatedAt        time.Time  `json:"created_at"`
	SellerDecisionAt *time.Time `json:"seller_decision_at,omitempty"`
	AdminDecisionAt  *time.Time `json:"admin_decision_at,omitempty"`
}

// Terminal reports whether no further transition is permitted from s.
func (s BidState) Terminal() bool {
	switch s {
	case BidSellerRejected, BidApproved, BidRejected, BidFailedInsufficient:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is a legal move of the bid
// state machine. Nothing ever returns to pending.
func (s BidState) CanTransition(to BidState) bool {
	switch s {
	case BidPending:
		return to == BidSellerAccepted || to == BidSellerRejected
	case BidSellerAccepted:
		return to == BidApproved || to == BidRejected || to == BidFailedInsufficient
	}
	return false
}

// Clone returns a copy safe to hand out across goroutines.
func (b *Bid) Clone() *Bid {
	c := *b
	if b.SellerDecisionAt != nil {
		t := *b.SellerDecisionAt
		c.SellerDecisionAt = &t
	}
	if b.AdminDecisionAt != nil {
		t := *b.AdminDecisionAt
		c.AdminDecisionAt = &t
	}
	return &c
}
