package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
)

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}

	return uint(id), true
}

func friendCounts(username string) (int64, int64) {
	var friendCount, pendingCount int64

	db.DB.Model(&models.Friendship{}).
		Where("(requester = ? OR addressee = ?) AND status = ?", username, username, models.FriendshipAccepted).
		Count(&friendCount)

	db.DB.Model(&models.Friendship{}).
		Where("addressee = ? AND status = ?", username, models.FriendshipPending).
		Count(&pendingCount)

	return friendCount, pendingCount
}
