package models

import "time"

// TransferLog is one audit record of a bid transition, kept for the
// admin transfer-log view.
type TransferLog struct {
	BidID        int64     `bson:"bid_id" json:"bid_id"`
	PlayerID     string    `bson:"player_id" json:"player_id"`
	BidderClubID string    `bson:"bidder_club_id" json:"bidder_club_id"`
	SellerClubID string    `bson:"seller_club_id" json:"seller_club_id"`
	Amount       int64     `bson:"amount" json:"amount"`
	State        string    `bson:"state" json:"state"`
	Reason       string    `bson:"reason,omitempty" json:"reason,omitempty"`
	At           time.Time `bson:"at" json:"at"`
}
