package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/auth"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/types"
)

type AuthenticatedUser struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsPremium bool   `json:"is_premium"`
	AICredits int    `json:"ai_credits"`
}

// Session keys written at login and cleared at logout.
const (
	SessionUsernameKey  = "username"
	SessionCreditsKey   = "ai_credits"
	SessionIsPremiumKey = "is_premium"
)

// AuthRequired resolves the caller's identity from the session cookie or an
// Authorization bearer token and places an AuthenticatedUser in the gin
// context. Browser requests without identity are redirected to /login; API
// requests get a 401.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username := usernameFromSession(ctx)

		if username == "" {
			username = usernameFromBearer(ctx)
		}

		if username == "" {
			reject(ctx)
			return
		}

		var user models.User

		if err := db.DB.Where("username = ?", username).First(&user).Error; err != nil {
			clearSession(ctx)
			reject(ctx)
			return
		}

		refreshWeeklyCredits(ctx, &user)

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			IsPremium: user.IsPremium,
			AICredits: user.AICredits,
		})
		ctx.Next()
	}
}

func usernameFromSession(ctx *gin.Context) string {
	session := sessions.Default(ctx)

	raw := session.Get(SessionUsernameKey)
	if raw == nil {
		return ""
	}

	username, ok := raw.(string)
	if !ok {
		// Corrupt session data, drop it.
		clearSession(ctx)
		return ""
	}

	return username
}

func usernameFromBearer(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")

	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)

	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	token, err := auth.VerifyJWT(parts[1])

	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)

	if !ok {
		return ""
	}

	username, _ := claims["username"].(string)
	return username
}

// refreshWeeklyCredits refills a non-premium user whose last reset is more
// than a week old. The check and the write are one conditional UPDATE, so
// concurrent requests cannot double-refill.
func refreshWeeklyCredits(ctx *gin.Context, user *models.User) {
	if user.IsPremium {
		return
	}

	cutoff := time.Now().Add(-types.CreditResetInterval)

	if user.LastCreditReset != nil && user.LastCreditReset.After(cutoff) {
		return
	}

	now := time.Now()
	result := db.DB.Model(&models.User{}).
		Where("username = ? AND is_premium = ? AND (last_credit_reset IS NULL OR last_credit_reset < ?)",
			user.Username, false, cutoff).
		Updates(map[string]interface{}{
			"ai_credits":        types.WeeklyCreditQuota,
			"last_credit_reset": now,
		})

	if result.Error != nil {
		log.Printf("Failed to refresh credits for %s: %v", user.Username, result.Error)
		return
	}

	if result.RowsAffected > 0 {
		user.AICredits = types.WeeklyCreditQuota
		user.LastCreditReset = &now
		UpdateSessionCredits(ctx, user.AICredits)
	}
}

// UpdateSessionCredits rewrites the session's cached credit count, if the
// request carries a session.
func UpdateSessionCredits(ctx *gin.Context, credits int) {
	session := sessions.Default(ctx)

	if session.Get(SessionUsernameKey) == nil {
		return
	}

	session.Set(SessionCreditsKey, credits)

	if err := session.Save(); err != nil {
		log.Printf("Failed to save session credits: %v", err)
	}
}

func clearSession(ctx *gin.Context) {
	session := sessions.Default(ctx)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})

	if err := session.Save(); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}
}

func reject(ctx *gin.Context) {
	if wantsJSON(ctx) {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	ctx.Redirect(http.StatusFound, "/login")
	ctx.Abort()
}

func wantsJSON(ctx *gin.Context) bool {
	if ctx.GetHeader("Authorization") != "" {
		return true
	}

	accept := ctx.GetHeader("Accept")
	return strings.Contains(accept, "application/json") || !strings.Contains(accept, "text/html")
}
