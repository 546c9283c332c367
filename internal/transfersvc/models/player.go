package models

import "time"

// PlayerOwnership maps a player to the club that currently holds him.
// An empty ClubID means the player is unassigned.
type PlayerOwnership struct {
	PlayerID  string    `json:"player_id"`
	ClubID    string    `json:"club_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
