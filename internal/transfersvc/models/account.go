package models

import "time"

// Account holds a club's cash balance in minor currency units.
type Account struct {
	ClubID    string    `json:"club_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
