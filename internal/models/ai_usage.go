package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AIUsage is an audit row written for every successful AI completion call.
type AIUsage struct {
	gorm.Model

	Username string         `gorm:"not null;index"`
	Endpoint string         `gorm:"not null"`
	Detail   datatypes.JSON `gorm:"type:jsonb"`
}
