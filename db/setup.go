package db

import (
	"github.com/underleaf-dev/underleaf/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDatabase(dsn string) error {
	var err error

	// TranslateError maps driver unique-constraint failures to
	// gorm.ErrDuplicatedKey so handlers can return Conflict without racing
	// an existence check.
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})

	if err != nil {
		return err
	}

	return nil
}

func MigrateDatabase() error {
	models := []interface{}{
		&models.User{},
		&models.Note{},
		&models.NotePermission{},
		&models.Template{},
		&models.TemplatePermission{},
		&models.Friendship{},
		&models.Community{},
		&models.CommunityMembership{},
		&models.CommunityAnnouncement{},
		&models.DirectMessage{},
		&models.CommunityNote{},
		&models.PasswordResetToken{},
		&models.AIUsage{},
	}

	migrator := DB.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := DB.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	return nil
}
