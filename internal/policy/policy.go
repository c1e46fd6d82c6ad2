// Package policy is the single place that decides who may read or edit a
// note or template. Owners hold implicit full rights; everyone else needs a
// permission row.
package policy

import (
	"errors"

	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
	"gorm.io/gorm"
)

var ErrNotFound = gorm.ErrRecordNotFound

type NoteAccess struct {
	Note    models.Note
	IsOwner bool
	CanRead bool
	CanEdit bool
}

type TemplateAccess struct {
	Template models.Template
	IsOwner  bool
	CanRead  bool
	CanEdit  bool
}

// ForNote resolves the caller's rights on one note. Returns ErrNotFound if
// the note does not exist.
func ForNote(username string, noteID uint) (NoteAccess, error) {
	var access NoteAccess

	if err := db.DB.First(&access.Note, noteID).Error; err != nil {
		return access, err
	}

	if access.Note.Username == username {
		access.IsOwner = true
		access.CanRead = true
		access.CanEdit = true
		return access, nil
	}

	var perm models.NotePermission
	err := db.DB.Where("note_id = ? AND username = ?", noteID, username).First(&perm).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access, nil
		}
		return access, err
	}

	access.CanRead = perm.CanRead
	access.CanEdit = perm.CanEdit
	return access, nil
}

func ForTemplate(username string, templateID uint) (TemplateAccess, error) {
	var access TemplateAccess

	if err := db.DB.First(&access.Template, templateID).Error; err != nil {
		return access, err
	}

	if access.Template.Username == username {
		access.IsOwner = true
		access.CanRead = true
		access.CanEdit = true
		return access, nil
	}

	var perm models.TemplatePermission
	err := db.DB.Where("template_id = ? AND username = ?", templateID, username).First(&perm).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access, nil
		}
		return access, err
	}

	access.CanRead = perm.CanRead
	access.CanEdit = perm.CanEdit
	return access, nil
}

// AreFriends reports whether an accepted friendship exists between the two
// users in either direction. Sharing notes and templates requires it.
func AreFriends(a string, b string) (bool, error) {
	var count int64

	err := db.DB.Model(&models.Friendship{}).
		Where("((requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?)) AND status = ?",
			a, b, b, a, models.FriendshipAccepted).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// IsMember reports whether the user belongs to the community.
func IsMember(username string, communityID uint) (bool, error) {
	var count int64

	err := db.DB.Model(&models.CommunityMembership{}).
		Where("community_id = ? AND username = ?", communityID, username).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}
