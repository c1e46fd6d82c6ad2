package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/latex"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/policy"
	"github.com/underleaf-dev/underleaf/internal/utils"
	"gorm.io/gorm"
)

type SaveNoteRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	Category string `json:"category"`
	NoteID   uint   `json:"noteId"`
}

type ShareNoteRequest struct {
	NoteID    uint   `json:"noteId" binding:"required"`
	ShareWith string `json:"shareWith" binding:"required"`
	CanEdit   bool   `json:"canEdit"`
}

type NoteListEntry struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Username   string `json:"username"`
	AccessType string `json:"access_type"`
	CanRead    bool   `json:"can_read"`
	CanEdit    bool   `json:"can_edit"`
}

// SaveNote creates or updates a note. A given noteId must be editable by the
// caller; without one, an existing note with the same title is updated when
// the caller may edit it, otherwise a new note is created.
func SaveNote(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body SaveNoteRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	sanitized := latex.Sanitize(body.Content)

	if body.NoteID != 0 {
		access, err := policy.ForNote(currentUser.Username, body.NoteID)

		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Note not found"})
				return
			}
			log.Printf("Failed to check note access: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving note"})
			return
		}

		if !access.CanEdit {
			ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "No permission to edit"})
			return
		}

		updateNote(ctx, body.NoteID, sanitized, body.Category)
		return
	}

	// No id given: update an existing note with this title if the caller can
	// edit one, else create.
	existing, err := noteByTitleForUser(currentUser.Username, body.Title)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to look up note by title: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving note"})
		return
	}

	if err == nil {
		access, err := policy.ForNote(currentUser.Username, existing.ID)

		if err != nil {
			log.Printf("Failed to check note access: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving note"})
			return
		}

		if !access.CanEdit {
			ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "No permission to edit note with this title"})
			return
		}

		updateNote(ctx, existing.ID, sanitized, body.Category)
		return
	}

	note := models.Note{
		Title:    body.Title,
		Content:  sanitized,
		Username: currentUser.Username,
		Category: body.Category,
	}

	if err := db.DB.Create(&note).Error; err != nil {
		log.Printf("Failed to create note: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving note"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"noteId":  note.ID,
		"message": "Note created successfully",
	})
}

func updateNote(ctx *gin.Context, noteID uint, content string, category string) {
	updates := map[string]interface{}{
		"content":    content,
		"updated_at": time.Now(),
	}

	if category != "" {
		updates["category"] = category
	}

	if err := db.DB.Model(&models.Note{}).Where("id = ?", noteID).Updates(updates).Error; err != nil {
		log.Printf("Failed to update note %d: %v", noteID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving note"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"noteId":  noteID,
		"message": "Note updated successfully",
	})
}

func noteByTitleForUser(username string, title string) (models.Note, error) {
	var note models.Note

	err := db.DB.Model(&models.Note{}).
		Select("notes.*").
		Joins("LEFT JOIN note_permissions ON note_permissions.note_id = notes.id AND note_permissions.username = ? AND note_permissions.deleted_at IS NULL", username).
		Where("notes.title = ? AND (notes.username = ? OR note_permissions.username = ?)", title, username, username).
		First(&note).Error

	return note, err
}

// ListNotes returns every note the caller may read, labelled Owner/Shared,
// plus the friend counters the notes page shows.
func ListNotes(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var own []models.Note

	if err := db.DB.Where("username = ?", currentUser.Username).Order("title").Find(&own).Error; err != nil {
		log.Printf("Failed to fetch notes: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching notes"})
		return
	}

	var shared []models.Note

	err = db.DB.Model(&models.Note{}).
		Select("notes.*").
		Joins("JOIN note_permissions ON note_permissions.note_id = notes.id AND note_permissions.deleted_at IS NULL").
		Where("note_permissions.username = ? AND note_permissions.can_read = ?", currentUser.Username, true).
		Order("notes.title").
		Find(&shared).Error

	if err != nil {
		log.Printf("Failed to fetch shared notes: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching notes"})
		return
	}

	entries := make([]NoteListEntry, 0, len(own)+len(shared))

	for _, note := range own {
		entries = append(entries, NoteListEntry{
			ID:         note.ID,
			Title:      note.Title,
			Username:   note.Username,
			AccessType: "Owner",
			CanRead:    true,
			CanEdit:    true,
		})
	}

	for _, note := range shared {
		var perm models.NotePermission

		if err := db.DB.Where("note_id = ? AND username = ?", note.ID, currentUser.Username).First(&perm).Error; err != nil {
			continue
		}

		entries = append(entries, NoteListEntry{
			ID:         note.ID,
			Title:      note.Title,
			Username:   note.Username,
			AccessType: "Shared",
			CanRead:    perm.CanRead,
			CanEdit:    perm.CanEdit,
		})
	}

	friendCount, pendingCount := friendCounts(currentUser.Username)

	ctx.JSON(http.StatusOK, gin.H{
		"notes":        entries,
		"friendCount":  friendCount,
		"pendingCount": pendingCount,
	})
}

// GetNotes returns id/title pairs of every readable note, for pickers.
func GetNotes(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	type noteRef struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}

	var notes []noteRef

	err = db.DB.Model(&models.Note{}).
		Distinct("notes.id", "notes.title").
		Joins("LEFT JOIN note_permissions ON note_permissions.note_id = notes.id AND note_permissions.deleted_at IS NULL").
		Where("notes.username = ? OR (note_permissions.username = ? AND note_permissions.can_read = ?)",
			currentUser.Username, currentUser.Username, true).
		Scan(&notes).Error

	if err != nil {
		log.Printf("Failed to fetch notes: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching notes"})
		return
	}

	ctx.JSON(http.StatusOK, notes)
}

func GetNote(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	noteID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	access, err := policy.ForNote(currentUser.Username, noteID)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
			return
		}
		log.Printf("Failed to check note access: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching note"})
		return
	}

	if !access.CanRead {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "No permission to view this note"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":       access.Note.ID,
		"title":    access.Note.Title,
		"content":  latex.Unescape(access.Note.Content),
		"category": access.Note.Category,
		"username": access.Note.Username,
		"can_edit": access.CanEdit,
		"can_read": access.CanRead,
	})
}

// DeleteNote removes a note and its permission rows. Owner only.
func DeleteNote(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	noteID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	var note models.Note

	if err := db.DB.Where("id = ? AND username = ?", noteID, currentUser.Username).First(&note).Error; err != nil {
		ctx.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "You do not have permission to delete this note",
		})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("note_id = ?", noteID).Delete(&models.NotePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&note).Error
	})

	if err != nil {
		log.Printf("Failed to delete note %d: %v", noteID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error deleting note"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Note deleted successfully"})
}

// ShareNote grants a friend read (and optionally edit) access. The grantee
// must have an accepted friendship with the owner.
func ShareNote(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body ShareNoteRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var note models.Note

	if err := db.DB.First(&note, body.NoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Note not found"})
			return
		}
		log.Printf("Failed to fetch note: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sharing note"})
		return
	}

	if note.Username != currentUser.Username {
		ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Only the owner can share this note"})
		return
	}

	friends, err := policy.AreFriends(currentUser.Username, body.ShareWith)

	if err != nil {
		log.Printf("Failed to check friendship: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sharing note"})
		return
	}

	if !friends {
		ctx.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Can only share notes with accepted friends",
		})
		return
	}

	var existing models.NotePermission

	err = db.DB.Where("note_id = ? AND username = ?", body.NoteID, body.ShareWith).First(&existing).Error

	if err == nil {
		if err := db.DB.Model(&existing).Update("can_edit", body.CanEdit).Error; err != nil {
			log.Printf("Failed to update note permission: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sharing note"})
			return
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		perm := models.NotePermission{
			NoteID:   body.NoteID,
			Username: body.ShareWith,
			CanRead:  true,
			CanEdit:  body.CanEdit,
		}

		if err := db.DB.Create(&perm).Error; err != nil {
			log.Printf("Failed to create note permission: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sharing note"})
			return
		}
	} else {
		log.Printf("Failed to check existing share: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sharing note"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Note shared successfully"})
}
