package models

import "gorm.io/gorm"

type Note struct {
	gorm.Model

	Title    string `gorm:"not null;index"`
	Content  string `gorm:"type:text"`
	Username string `gorm:"not null;index"`
	Category string

	// Relationships
	Permissions []NotePermission `gorm:"foreignKey:NoteID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

// NotePermission grants a non-owner read or edit access to one note.
// The owner never holds a permission row; ownership implies full rights.
type NotePermission struct {
	gorm.Model

	NoteID   uint   `gorm:"not null;uniqueIndex:idx_note_grantee"`
	Username string `gorm:"not null;uniqueIndex:idx_note_grantee"`
	CanRead  bool   `gorm:"not null;default:true"`
	CanEdit  bool   `gorm:"not null;default:false"`
}
