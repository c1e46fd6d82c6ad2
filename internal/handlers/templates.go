package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/policy"
	"github.com/underleaf-dev/underleaf/internal/utils"
	"gorm.io/gorm"
)

type CreateTemplateRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type EditTemplateRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

type ShareTemplateRequest struct {
	TemplateID uint   `json:"templateId" binding:"required"`
	ShareWith  string `json:"shareWith" binding:"required"`
	CanEdit    bool   `json:"canEdit"`
}

// ListTemplates returns the caller's own templates plus the ones shared
// with them.
func ListTemplates(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var own []models.Template

	if err := db.DB.Where("username = ?", currentUser.Username).Order("title").Find(&own).Error; err != nil {
		log.Printf("Failed to fetch templates: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching templates"})
		return
	}

	var shared []models.Template

	err = db.DB.Model(&models.Template{}).
		Select("templates.*").
		Joins("JOIN template_permissions ON template_permissions.template_id = templates.id AND template_permissions.deleted_at IS NULL").
		Where("template_permissions.username = ? AND template_permissions.can_read = ?", currentUser.Username, true).
		Order("templates.title").
		Find(&shared).Error

	if err != nil {
		log.Printf("Failed to fetch shared templates: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching templates"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"userTemplates":   own,
		"sharedTemplates": shared,
	})
}

func CreateTemplate(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateTemplateRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	template := models.Template{
		Title:    body.Title,
		Content:  body.Content,
		Username: currentUser.Username,
		Category: body.Category,
	}

	if err := db.DB.Create(&template).Error; err != nil {
		log.Printf("Failed to create template: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save template"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"templateId": template.ID,
		"message":    "Template saved successfully",
	})
}

func EditTemplate(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	templateID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	var body EditTemplateRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	access, err := policy.ForTemplate(currentUser.Username, templateID)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Template not found"})
			return
		}
		log.Printf("Failed to check template access: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to edit template"})
		return
	}

	if !access.CanEdit {
		ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "No permission to edit this template"})
		return
	}

	updates := map[string]interface{}{
		"title":      body.Title,
		"content":    body.Content,
		"updated_at": time.Now(),
	}

	if err := db.DB.Model(&models.Template{}).Where("id = ?", templateID).Updates(updates).Error; err != nil {
		log.Printf("Failed to update template %d: %v", templateID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to edit template"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Template updated successfully"})
}

func DeleteTemplate(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	templateID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	var template models.Template

	if err := db.DB.Where("id = ? AND username = ?", templateID, currentUser.Username).First(&template).Error; err != nil {
		ctx.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "No permission to delete this template",
		})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("template_id = ?", templateID).Delete(&models.TemplatePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&template).Error
	})

	if err != nil {
		log.Printf("Failed to delete template %d: %v", templateID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete template"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Template deleted successfully"})
}

func ShareTemplate(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body ShareTemplateRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var template models.Template

	if err := db.DB.First(&template, body.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Template not found"})
			return
		}
		log.Printf("Failed to fetch template: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to share template"})
		return
	}

	if template.Username != currentUser.Username {
		ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Only the owner can share this template"})
		return
	}

	friends, err := policy.AreFriends(currentUser.Username, body.ShareWith)

	if err != nil {
		log.Printf("Failed to check friendship: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to share template"})
		return
	}

	if !friends {
		ctx.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Can only share templates with friends",
		})
		return
	}

	var existing models.TemplatePermission

	err = db.DB.Where("template_id = ? AND username = ?", body.TemplateID, body.ShareWith).First(&existing).Error

	if err == nil {
		if err := db.DB.Model(&existing).Update("can_edit", body.CanEdit).Error; err != nil {
			log.Printf("Failed to update template permission: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to share template"})
			return
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		perm := models.TemplatePermission{
			TemplateID: body.TemplateID,
			Username:   body.ShareWith,
			CanRead:    true,
			CanEdit:    body.CanEdit,
		}

		if err := db.DB.Create(&perm).Error; err != nil {
			log.Printf("Failed to create template permission: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to share template"})
			return
		}
	} else {
		log.Printf("Failed to check existing share: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to share template"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Template shared successfully"})
}
