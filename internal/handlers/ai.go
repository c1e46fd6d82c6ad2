package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/middleware"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/services"
	"github.com/underleaf-dev/underleaf/internal/utils"
	"gorm.io/datatypes"
)

type ProcessSelectionRequest struct {
	SelectedHTML string `json:"selectedHtml" binding:"required"`
	LatexSource  string `json:"latexSource" binding:"required"`
	Context      string `json:"context" binding:"required"`
}

type RewriteTextRequest struct {
	Text         string `json:"text" binding:"required"`
	Instructions string `json:"instructions" binding:"required"`
}

type PhotoToLatexRequest struct {
	Photo string `json:"photo" binding:"required"`
}

// ProcessSelection applies a natural-language instruction to a selected
// fragment of a document and returns the full updated source.
func ProcessSelection(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body ProcessSelectionRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updated, err := services.AI.EditSelection(body.LatexSource, body.SelectedHTML, body.Context)

	if err != nil {
		log.Printf("Selection edit failed for %s: %v", currentUser.Username, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the request."})
		return
	}

	recordAIUsage(currentUser.Username, "process-selection", gin.H{
		"instruction": body.Context,
	})

	ctx.JSON(http.StatusOK, gin.H{"updatedLatex": updated})
}

// RewriteText rewrites a passage per the given instructions.
func RewriteText(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body RewriteTextRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updated, err := services.AI.RewriteText(body.Text, body.Instructions)

	if err != nil {
		log.Printf("Rewrite failed for %s: %v", currentUser.Username, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process the request."})
		return
	}

	recordAIUsage(currentUser.Username, "rewrite-text", gin.H{
		"instructions": body.Instructions,
	})

	ctx.JSON(http.StatusOK, gin.H{"updatedLatex": updated})
}

// PhotoToLatex transcribes a photographed document into LaTeX. Credit
// deduction happens in middleware before this handler runs.
func PhotoToLatex(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body PhotoToLatexRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No photo provided"})
		return
	}

	latexOut, err := services.AI.PhotoToLaTeX(body.Photo)

	if err != nil {
		log.Printf("Photo transcription failed for %s: %v", currentUser.Username, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process image"})
		return
	}

	recordAIUsage(currentUser.Username, "photo-to-latex", gin.H{
		"photo_bytes": len(body.Photo),
	})

	ctx.JSON(http.StatusOK, gin.H{"success": true, "latex": latexOut})
}

// GetUserCredits reports the caller's current credit balance, reading the
// database rather than the session cache.
func GetUserCredits(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User

	if err := db.DB.Where("username = ?", currentUser.Username).First(&user).Error; err != nil {
		log.Printf("Failed to load credits for %s: %v", currentUser.Username, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.UpdateSessionCredits(ctx, user.AICredits)

	ctx.JSON(http.StatusOK, gin.H{
		"ai_credits":        user.AICredits,
		"is_premium":        user.IsPremium,
		"last_credit_reset": user.LastCreditReset,
	})
}

// recordAIUsage writes the audit row; failures are logged, never surfaced.
func recordAIUsage(username string, endpoint string, detail gin.H) {
	payload, err := json.Marshal(detail)

	if err != nil {
		log.Printf("Failed to marshal AI usage detail: %v", err)
		payload = []byte("{}")
	}

	usage := models.AIUsage{
		Username: username,
		Endpoint: endpoint,
		Detail:   datatypes.JSON(payload),
	}

	if err := db.DB.Create(&usage).Error; err != nil {
		log.Printf("Failed to record AI usage for %s: %v", username, err)
	}
}
