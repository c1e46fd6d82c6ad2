package models

import "time"

// PasswordResetToken is single-use and expires 15 minutes after issuance.
// Expired and used rows are removed by the hourly scheduler sweep.
type PasswordResetToken struct {
	Token     string    `gorm:"primaryKey;size:64"`
	Username  string    `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}
