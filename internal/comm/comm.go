package comm

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published on bid state transitions.
const (
	EventBidProposed    = "bid-proposed"
	EventSellerAccepted = "seller-accepted"
	EventSellerRejected = "seller-rejected"
	EventTransferDone   = "transfer-approved"
	EventTransferFailed = "transfer-failed"
	EventBidRejected    = "bid-rejected"
)

// BidEvent is the fire-and-forget payload sent to the notification
// service and to live dashboards on every bid state transition.
type BidEvent struct {
	EventID      string    `json:"event_id"`
	Type         string    `json:"type"`
	BidID        int64     `json:"bid_id"`
	PlayerID     string    `json:"player_id"`
	BidderClubID string    `json:"bidder_club_id"`
	SellerClubID string    `json:"seller_club_id"`
	Amount       string    `json:"amount"`
	State        string    `json:"state"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// BalanceData is the presentation form of an account balance.
type BalanceData struct {
	ClubID  string `json:"club_id"`
	Balance string `json:"balance"`
}

// FormatAmount renders minor currency units as a two-decimal string,
// e.g. 50000000 -> "500000.00".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
