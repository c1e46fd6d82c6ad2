package models

import "gorm.io/gorm"

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship is unique per unordered pair of users; handlers check both
// directions before inserting.
type Friendship struct {
	gorm.Model

	Requester string `gorm:"not null;index"`
	Addressee string `gorm:"not null;index"`
	Status    string `gorm:"not null;default:pending"`
}
