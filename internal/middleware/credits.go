package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/types"
	"gorm.io/gorm"
)

// RequireAICredits gates AI-backed endpoints. Premium users pass through;
// everyone else pays one credit per request. The decrement is a single
// conditional UPDATE checked by rows-affected, so concurrent requests from
// the same user cannot race past zero.
func RequireAICredits() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, exists := ctx.Get(types.ContextUserKey)

		if !exists {
			// Endpoint-specific auth handles the anonymous case.
			ctx.Next()
			return
		}

		user, ok := raw.(AuthenticatedUser)

		if !ok {
			ctx.Next()
			return
		}

		if user.IsPremium {
			ctx.Next()
			return
		}

		result := db.DB.Model(&models.User{}).
			Where("username = ? AND ai_credits > 0", user.Username).
			Updates(map[string]interface{}{
				"ai_credits":        gorm.Expr("ai_credits - 1"),
				"last_credit_reset": gorm.Expr("COALESCE(last_credit_reset, ?)", time.Now()),
			})

		if result.Error != nil {
			log.Printf("Failed to deduct AI credit for %s: %v", user.Username, result.Error)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if result.RowsAffected == 0 {
			var current models.User

			if err := db.DB.Where("username = ?", user.Username).First(&current).Error; err != nil {
				log.Printf("Failed to load user %s after credit check: %v", user.Username, err)
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}

			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "No AI credits remaining",
				"message":           "Please upgrade to premium or wait for your credits to reset",
				"last_credit_reset": current.LastCreditReset,
			})
			return
		}

		remaining := user.AICredits - 1
		UpdateSessionCredits(ctx, remaining)

		user.AICredits = remaining
		ctx.Set(types.ContextUserKey, user)

		ctx.Next()
	}
}
