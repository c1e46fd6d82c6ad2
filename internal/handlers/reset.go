package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/auth"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/services"
	"github.com/underleaf-dev/underleaf/internal/types"
	"gorm.io/gorm"
)

// ResetMailer is swapped for a capture mock in tests.
var ResetMailer services.Mailer = services.NewSMTPMailer()

type RequestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// RequestPasswordReset issues a fresh token and emails it. Outstanding
// tokens for the same user stay valid until they expire.
func RequestPasswordReset(ctx *gin.Context) {
	var body RequestResetRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var user models.User

	err := db.DB.Where("email = ?", email).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "No account found with this email"})
			return
		}
		log.Printf("Database error during password reset request: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process reset request"})
		return
	}

	token, err := services.GenerateResetToken()

	if err != nil {
		log.Printf("Failed to generate reset token: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process reset request"})
		return
	}

	record := models.PasswordResetToken{
		Token:     token,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(types.ResetTokenTTL),
	}

	if err := db.DB.Create(&record).Error; err != nil {
		log.Printf("Failed to store reset token: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process reset request"})
		return
	}

	if err := ResetMailer.SendPasswordReset(email, token); err != nil {
		log.Printf("Email sending error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send email"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Reset code sent successfully"})
}

func VerifyResetToken(ctx *gin.Context) {
	var body VerifyTokenRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	record, err := validResetToken(body.Token)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	var user models.User

	if err := db.DB.Where("username = ?", record.Username).First(&user).Error; err != nil {
		log.Printf("Failed to load user for reset token: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify token"})
		return
	}

	if user.Email != strings.ToLower(strings.TrimSpace(body.Email)) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Email does not match token"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"valid": true})
}

// ResetPassword updates the hash and consumes the token in one transaction,
// so a token can never be spent without the password actually changing.
func ResetPassword(ctx *gin.Context) {
	var body ResetPasswordRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	record, err := validResetToken(body.Token)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	passwordHash, err := auth.HashPassword(body.NewPassword)

	if err != nil {
		log.Printf("Failed to hash new password: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("username = ?", record.Username).
			Update("password_hash", passwordHash).Error; err != nil {
			return err
		}

		result := tx.Model(&models.PasswordResetToken{}).
			Where("token = ? AND used = ?", record.Token, false).
			Update("used", true)

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
			return
		}
		log.Printf("Reset password error: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func validResetToken(token string) (models.PasswordResetToken, error) {
	var record models.PasswordResetToken

	err := db.DB.Where("token = ? AND used = ? AND expires_at > ?", token, false, time.Now()).
		First(&record).Error

	return record, err
}
