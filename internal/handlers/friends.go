package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/utils"
	"gorm.io/gorm"
)

type SendFriendRequestRequest struct {
	Addressee string `json:"addressee" binding:"required"`
}

type FriendRequestActionRequest struct {
	RequestID uint `json:"requestId" binding:"required"`
}

type RemoveFriendRequest struct {
	FriendID uint `json:"friendId" binding:"required"`
}

// ListFriends returns accepted friends and pending incoming requests.
func ListFriends(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var accepted []models.Friendship

	err = db.DB.Where("(requester = ? OR addressee = ?) AND status = ?",
		currentUser.Username, currentUser.Username, models.FriendshipAccepted).
		Find(&accepted).Error

	if err != nil {
		log.Printf("Failed to fetch friends: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching friends data"})
		return
	}

	type friendEntry struct {
		ID             uint   `json:"id"`
		FriendUsername string `json:"friend_username"`
	}

	friends := make([]friendEntry, 0, len(accepted))

	for _, f := range accepted {
		other := f.Addressee
		if f.Addressee == currentUser.Username {
			other = f.Requester
		}
		friends = append(friends, friendEntry{ID: f.ID, FriendUsername: other})
	}

	var pending []models.Friendship

	err = db.DB.Where("addressee = ? AND status = ?", currentUser.Username, models.FriendshipPending).
		Order("created_at DESC").
		Find(&pending).Error

	if err != nil {
		log.Printf("Failed to fetch pending requests: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching friends data"})
		return
	}

	type pendingEntry struct {
		ID        uint   `json:"id"`
		Requester string `json:"requester"`
	}

	pendingRequests := make([]pendingEntry, 0, len(pending))

	for _, f := range pending {
		pendingRequests = append(pendingRequests, pendingEntry{ID: f.ID, Requester: f.Requester})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"friends":         friends,
		"pendingRequests": pendingRequests,
	})
}

// SendFriendRequest inserts a pending friendship. A row between the pair in
// either direction, whatever its status, blocks a new request.
func SendFriendRequest(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body SendFriendRequestRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	if body.Addressee == currentUser.Username {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Cannot send a friend request to yourself"})
		return
	}

	var addressee models.User

	if err := db.DB.Where("username = ?", body.Addressee).First(&addressee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
			return
		}
		log.Printf("Failed to look up addressee: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sending friend request"})
		return
	}

	var existing models.Friendship

	err = db.DB.Where("(requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?)",
		currentUser.Username, body.Addressee, body.Addressee, currentUser.Username).
		First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "Friend request already exists"})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to check existing friendship: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sending friend request"})
		return
	}

	request := models.Friendship{
		Requester: currentUser.Username,
		Addressee: body.Addressee,
		Status:    models.FriendshipPending,
	}

	if err := db.DB.Create(&request).Error; err != nil {
		log.Printf("Failed to create friend request: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error sending friend request"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "Friend request sent"})
}

// AcceptFriendRequest flips a pending request to accepted. Only the
// addressee may act on it.
func AcceptFriendRequest(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body FriendRequestActionRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var request models.Friendship

	err = db.DB.Where("id = ? AND addressee = ? AND status = ?",
		body.RequestID, currentUser.Username, models.FriendshipPending).
		First(&request).Error

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	if err := db.DB.Model(&request).Update("status", models.FriendshipAccepted).Error; err != nil {
		log.Printf("Failed to accept friend request %d: %v", body.RequestID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error accepting friend request"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend request accepted"})
}

// RejectFriendRequest deletes a pending request addressed to the caller.
func RejectFriendRequest(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body FriendRequestActionRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	result := db.DB.Where("id = ? AND addressee = ? AND status = ?",
		body.RequestID, currentUser.Username, models.FriendshipPending).
		Delete(&models.Friendship{})

	if result.Error != nil {
		log.Printf("Failed to reject friend request %d: %v", body.RequestID, result.Error)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error rejecting friend request"})
		return
	}

	if result.RowsAffected == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend request rejected"})
}

// RemoveFriend lets either party delete an accepted friendship.
func RemoveFriend(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body RemoveFriendRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var friendship models.Friendship

	err = db.DB.Where("id = ? AND (requester = ? OR addressee = ?) AND status = ?",
		body.FriendID, currentUser.Username, currentUser.Username, models.FriendshipAccepted).
		First(&friendship).Error

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid friendship"})
		return
	}

	if err := db.DB.Delete(&friendship).Error; err != nil {
		log.Printf("Failed to remove friendship %d: %v", body.FriendID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error removing friend"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend removed successfully"})
}

// FriendshipStatus reports the relationship between the caller and another
// user: none, pending or accepted, with the request direction.
func FriendshipStatus(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	other := ctx.Param("username")

	var friendship models.Friendship

	err = db.DB.Where("(requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?)",
		currentUser.Username, other, other, currentUser.Username).
		First(&friendship).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusOK, gin.H{"status": "none", "direction": nil, "id": nil})
			return
		}
		log.Printf("Failed to fetch friendship status: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error getting friendship status"})
		return
	}

	direction := "received"
	if friendship.Requester == currentUser.Username {
		direction = "sent"
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":    friendship.Status,
		"direction": direction,
		"id":        friendship.ID,
	})
}

// GetFriendsForSharing lists accepted friend usernames for the share picker.
func GetFriendsForSharing(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var accepted []models.Friendship

	err = db.DB.Where("(requester = ? OR addressee = ?) AND status = ?",
		currentUser.Username, currentUser.Username, models.FriendshipAccepted).
		Find(&accepted).Error

	if err != nil {
		log.Printf("Failed to fetch friends for sharing: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching friends list"})
		return
	}

	type friendEntry struct {
		FriendUsername string `json:"friend_username"`
	}

	friends := make([]friendEntry, 0, len(accepted))

	for _, f := range accepted {
		other := f.Addressee
		if f.Addressee == currentUser.Username {
			other = f.Requester
		}
		friends = append(friends, friendEntry{FriendUsername: other})
	}

	ctx.JSON(http.StatusOK, friends)
}
