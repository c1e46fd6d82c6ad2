package models

import (
	"time"

	"gorm.io/gorm"
)

// Community admin role is derived from CreatedBy, never stored.
type Community struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Description string
	IsPrivate   bool   `gorm:"not null;default:false"`
	AccessCode  string `gorm:"index"` // empty unless the community is private
	CreatedBy   string `gorm:"not null;index"`

	// Relationships
	Memberships   []CommunityMembership   `gorm:"foreignKey:CommunityID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Announcements []CommunityAnnouncement `gorm:"foreignKey:CommunityID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

type CommunityMembership struct {
	gorm.Model

	CommunityID uint   `gorm:"not null;uniqueIndex:idx_member_once"`
	Username    string `gorm:"not null;uniqueIndex:idx_member_once"`
}

type CommunityAnnouncement struct {
	gorm.Model

	CommunityID uint   `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Content     string `gorm:"type:text"`
	CreatedBy   string `gorm:"not null"`
}

// DirectMessage is scoped to one community, between a member and the admin.
type DirectMessage struct {
	gorm.Model

	CommunityID uint      `gorm:"not null;index"`
	FromUser    string    `gorm:"not null;index"`
	ToUser      string    `gorm:"not null;index"`
	Content     string    `gorm:"type:text"`
	SentAt      time.Time `gorm:"not null"`
}

// CommunityNote records a note shared into a community.
type CommunityNote struct {
	gorm.Model

	NoteID      uint      `gorm:"not null;uniqueIndex:idx_note_community"`
	CommunityID uint      `gorm:"not null;uniqueIndex:idx_note_community"`
	SharedBy    string    `gorm:"not null;index"`
	IsPublic    bool      `gorm:"not null;default:true"`
	SharedAt    time.Time `gorm:"not null"`
}
