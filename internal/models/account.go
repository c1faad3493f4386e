package models

import "time"

// Account is the identity record owned by the accounts service. The core only reads it.
type Account struct {
	ID          int       `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	City        string    `db:"city" json:"city,omitempty"`
	State       string    `db:"state" json:"state,omitempty"`
	IsBanned    bool      `db:"is_banned" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AccountSummary is the author block embedded in feed items.
type AccountSummary struct {
	ID          int    `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
}

// Follow is a directed follower -> following edge.
type Follow struct {
	FollowerID  int       `db:"follower_id" json:"follower_id"`
	FollowingID int       `db:"following_id" json:"following_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
