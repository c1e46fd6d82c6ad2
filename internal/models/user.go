package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model

	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	IsPremium       bool       `gorm:"column:is_premium;not null;default:false"`
	AICredits       int        `gorm:"column:ai_credits;not null;default:10"`
	LastCreditReset *time.Time `gorm:"column:last_credit_reset"`

	// Relationships
	OwnedNotes     []Note     `gorm:"foreignKey:Username;references:Username;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	OwnedTemplates []Template `gorm:"foreignKey:Username;references:Username;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
