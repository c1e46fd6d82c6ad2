package models

import "gorm.io/gorm"

type Template struct {
	gorm.Model

	Title    string `gorm:"not null;index"`
	Content  string `gorm:"type:text"`
	Username string `gorm:"not null;index"`
	Category string

	// Relationships
	Permissions []TemplatePermission `gorm:"foreignKey:TemplateID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

type TemplatePermission struct {
	gorm.Model

	TemplateID uint   `gorm:"not null;uniqueIndex:idx_template_grantee"`
	Username   string `gorm:"not null;uniqueIndex:idx_template_grantee"`
	CanRead    bool   `gorm:"not null;default:true"`
	CanEdit    bool   `gorm:"not null;default:false"`
}
