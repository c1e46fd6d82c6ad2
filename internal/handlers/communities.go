package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/latex"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/policy"
	"github.com/underleaf-dev/underleaf/internal/services"
	"github.com/underleaf-dev/underleaf/internal/utils"
	"gorm.io/gorm"
)

type CreateCommunityRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

type JoinPrivateCommunityRequest struct {
	AccessCode string `json:"accessCode" binding:"required"`
}

type AnnouncementRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type CommunityMessageRequest struct {
	Content string `json:"content" binding:"required"`
	ToUser  string `json:"toUser" binding:"required"`
}

type ShareNoteWithCommunityRequest struct {
	NoteID uint `json:"noteId" binding:"required"`
}

type CommunityResponse struct {
	ID          uint   `json:"community_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	CreatedBy   string `json:"created_by"`
	IsAdmin     bool   `json:"is_admin"`
}

func communityResponse(c *models.Community, viewer string) CommunityResponse {
	return CommunityResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsPrivate:   c.IsPrivate,
		CreatedBy:   c.CreatedBy,
		IsAdmin:     c.CreatedBy == viewer,
	}
}

// CreateCommunity makes the caller the admin and first member. Private
// communities get a short access code, returned only here.
func CreateCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateCommunityRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var accessCode string

	if body.IsPrivate {
		accessCode, err = services.GenerateAccessCode()

		if err != nil {
			log.Printf("Failed to generate access code: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create community"})
			return
		}
	}

	community := models.Community{
		Name:        body.Name,
		Description: body.Description,
		IsPrivate:   body.IsPrivate,
		AccessCode:  accessCode,
		CreatedBy:   currentUser.Username,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&community).Error; err != nil {
			return err
		}

		membership := models.CommunityMembership{
			CommunityID: community.ID,
			Username:    currentUser.Username,
		}

		return tx.Create(&membership).Error
	})

	if err != nil {
		log.Printf("Failed to create community: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create community"})
		return
	}

	response := gin.H{
		"success":     true,
		"message":     "Community created successfully",
		"communityId": community.ID,
	}

	if accessCode != "" {
		response["accessCode"] = accessCode
	}

	ctx.JSON(http.StatusCreated, response)
}

// JoinCommunity enrolls the caller in a public community. The unique index
// on (community_id, username) is the duplicate guard; a violation surfaces
// as Conflict.
func JoinCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	var community models.Community

	if err := db.DB.First(&community, communityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Community not found"})
			return
		}
		log.Printf("Failed to fetch community: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to join community"})
		return
	}

	if community.IsPrivate {
		ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "This community requires an access code"})
		return
	}

	membership := models.CommunityMembership{
		CommunityID: communityID,
		Username:    currentUser.Username,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "You are already a member of this community"})
			return
		}
		log.Printf("Failed to join community %d: %v", communityID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to join community"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "Successfully joined community"})
}

func JoinPrivateCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body JoinPrivateCommunityRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var community models.Community

	err = db.DB.Where("access_code = ? AND is_private = ?", body.AccessCode, true).First(&community).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Invalid access code or community not found",
			})
			return
		}
		log.Printf("Failed to resolve access code: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to join community"})
		return
	}

	member, err := policy.IsMember(currentUser.Username, community.ID)

	if err != nil {
		log.Printf("Failed to check membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to join community"})
		return
	}

	if member {
		ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "You are already a member of this community"})
		return
	}

	membership := models.CommunityMembership{
		CommunityID: community.ID,
		Username:    currentUser.Username,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "You are already a member of this community"})
			return
		}
		log.Printf("Failed to join private community %d: %v", community.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to join community"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Successfully joined community",
		"communityName": community.Name,
	})
}

// LeaveCommunity deletes the caller's membership. An admin may leave and
// orphan their community; that matches the original behavior.
func LeaveCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	// Hard delete: a soft-deleted row would still occupy the membership
	// unique index and block rejoining.
	err = db.DB.Unscoped().Where("community_id = ? AND username = ?", communityID, currentUser.Username).
		Delete(&models.CommunityMembership{}).Error

	if err != nil {
		log.Printf("Failed to leave community %d: %v", communityID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to leave community"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Left community"})
}

// ListCommunities returns the caller's communities plus public ones they
// have not joined.
func ListCommunities(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var joined []models.Community

	err = db.DB.Model(&models.Community{}).
		Select("communities.*").
		Joins("JOIN community_memberships ON community_memberships.community_id = communities.id AND community_memberships.deleted_at IS NULL").
		Where("community_memberships.username = ?", currentUser.Username).
		Find(&joined).Error

	if err != nil {
		log.Printf("Failed to fetch communities: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error while fetching communities"})
		return
	}

	var public []models.Community

	err = db.DB.Where("is_private = ?", false).
		Where("id NOT IN (?)", db.DB.Model(&models.CommunityMembership{}).
			Select("community_id").
			Where("username = ?", currentUser.Username)).
		Find(&public).Error

	if err != nil {
		log.Printf("Failed to fetch public communities: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error while fetching communities"})
		return
	}

	mine := make([]CommunityResponse, 0, len(joined))
	for i := range joined {
		mine = append(mine, communityResponse(&joined[i], currentUser.Username))
	}

	joinable := make([]CommunityResponse, 0, len(public))
	for i := range public {
		joinable = append(joinable, communityResponse(&public[i], currentUser.Username))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"communities":       mine,
		"publicCommunities": joinable,
	})
}

// GetCommunity returns the role-dependent detail view: announcements,
// message threads, and the note sets for the admin or a member.
func GetCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	community, isAdmin, ok := requireMembership(ctx, currentUser.Username, communityID)

	if !ok {
		return
	}

	var announcements []models.CommunityAnnouncement

	if err := db.DB.Where("community_id = ?", communityID).Order("created_at DESC").Find(&announcements).Error; err != nil {
		log.Printf("Failed to fetch announcements: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	messages, err := communityMessages(communityID, currentUser.Username, community.CreatedBy, isAdmin)

	if err != nil {
		log.Printf("Failed to fetch messages: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	response := gin.H{
		"community":     communityResponse(community, currentUser.Username),
		"isAdmin":       isAdmin,
		"announcements": announcements,
		"messages":      messages,
	}

	if isAdmin {
		sharedNotes, err := adminSharedNotes(communityID, currentUser.Username)
		if err != nil {
			log.Printf("Failed to fetch shared notes: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		studentCopies, err := communityCopies(communityID, "%'s copy of %", currentUser.Username)
		if err != nil {
			log.Printf("Failed to fetch student copies: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		var members []string

		err = db.DB.Model(&models.CommunityMembership{}).
			Where("community_id = ? AND username != ?", communityID, currentUser.Username).
			Order("username").
			Pluck("username", &members).Error

		if err != nil {
			log.Printf("Failed to fetch members: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		response["notes"] = sharedNotes
		response["studentCopies"] = studentCopies
		response["members"] = members
	} else {
		personalNotes, teacherNotes, err := memberNoteSets(communityID, currentUser.Username, community.CreatedBy)

		if err != nil {
			log.Printf("Failed to fetch member notes: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}

		response["personalNotes"] = personalNotes
		response["teacherNotes"] = teacherNotes
	}

	ctx.JSON(http.StatusOK, response)
}

// ListCommunityMembers returns all members with their derived role.
func ListCommunityMembers(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	community, _, ok := requireMembership(ctx, currentUser.Username, communityID)

	if !ok {
		return
	}

	var memberships []models.CommunityMembership

	err = db.DB.Where("community_id = ?", communityID).Order("username").Find(&memberships).Error

	if err != nil {
		log.Printf("Failed to fetch community members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error while fetching community members"})
		return
	}

	type memberEntry struct {
		Username string    `json:"username"`
		JoinedAt time.Time `json:"joined_at"`
		IsAdmin  bool      `json:"is_admin"`
	}

	members := make([]memberEntry, 0, len(memberships))

	for _, m := range memberships {
		members = append(members, memberEntry{
			Username: m.Username,
			JoinedAt: m.CreatedAt,
			IsAdmin:  m.Username == community.CreatedBy,
		})
	}

	ctx.JSON(http.StatusOK, members)
}

// CreateAnnouncement posts a community announcement. Admin only.
func CreateAnnouncement(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	var community models.Community

	if err := db.DB.First(&community, communityID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
		return
	}

	if community.CreatedBy != currentUser.Username {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to create announcements"})
		return
	}

	var body AnnouncementRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	announcement := models.CommunityAnnouncement{
		CommunityID: communityID,
		Title:       body.Title,
		Content:     body.Content,
		CreatedBy:   currentUser.Username,
	}

	if err := db.DB.Create(&announcement).Error; err != nil {
		log.Printf("Failed to create announcement: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true})
}

// SendCommunityMessage stores a direct message and pushes it to the
// community's websocket subscribers.
func SendCommunityMessage(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	if _, _, ok := requireMembership(ctx, currentUser.Username, communityID); !ok {
		return
	}

	var body CommunityMessageRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	message := models.DirectMessage{
		CommunityID: communityID,
		FromUser:    currentUser.Username,
		ToUser:      body.ToUser,
		Content:     body.Content,
		SentAt:      time.Now(),
	}

	if err := db.DB.Create(&message).Error; err != nil {
		log.Printf("Failed to store message: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error posting message"})
		return
	}

	BroadcastCommunityMessage(communityID, &message)

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// GetCommunityMessages returns the thread between the caller and one
// counterpart inside a community.
func GetCommunityMessages(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	if _, _, ok := requireMembership(ctx, currentUser.Username, communityID); !ok {
		return
	}

	other := ctx.Param("username")

	var messages []models.DirectMessage

	err = db.DB.Where("community_id = ? AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))",
		communityID, currentUser.Username, other, other, currentUser.Username).
		Order("sent_at ASC").
		Find(&messages).Error

	if err != nil {
		log.Printf("Failed to fetch messages: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	ctx.JSON(http.StatusOK, messages)
}

// ShareNoteWithCommunity shares one of the caller's notes into a community.
func ShareNoteWithCommunity(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	if _, _, ok := requireMembership(ctx, currentUser.Username, communityID); !ok {
		return
	}

	var body ShareNoteWithCommunityRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	var note models.Note

	if err := db.DB.First(&note, body.NoteID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Note not found"})
		return
	}

	if note.Username != currentUser.Username {
		ctx.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Can only share your own notes"})
		return
	}

	share := models.CommunityNote{
		NoteID:      body.NoteID,
		CommunityID: communityID,
		SharedBy:    currentUser.Username,
		IsPublic:    true,
		SharedAt:    time.Now(),
	}

	if err := db.DB.Create(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusConflict, gin.H{
				"success": false,
				"message": "Note already shared with this community",
			})
			return
		}
		log.Printf("Failed to share note into community: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to share note"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Note shared successfully"})
}

// CheckNoteCopy reports whether the caller already copied a shared note.
func CheckNoteCopy(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	noteID, ok := parseIDParam(ctx, "noteId")

	if !ok {
		return
	}

	var original models.Note

	if err := db.DB.First(&original, noteID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	var copy models.Note

	err = db.DB.Where("username = ? AND title = ?",
		currentUser.Username, copyTitle(currentUser.Username, original.Title)).
		First(&copy).Error

	if err != nil {
		ctx.JSON(http.StatusOK, gin.H{"hasCopy": false})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"hasCopy": true, "copyId": copy.ID})
}

// CopyCommunityNote copies a note shared in the community into the caller's
// namespace, shares the copy back into the community, and grants the admin
// read and edit on it.
func CopyCommunityNote(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	noteID, ok := parseIDParam(ctx, "noteId")

	if !ok {
		return
	}

	community, _, ok := requireMembership(ctx, currentUser.Username, communityID)

	if !ok {
		return
	}

	var shared models.CommunityNote

	err = db.DB.Where("note_id = ? AND community_id = ?", noteID, communityID).First(&shared).Error

	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Note not found or access denied"})
		return
	}

	var original models.Note

	if err := db.DB.First(&original, noteID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Note not found or access denied"})
		return
	}

	newTitle := copyTitle(currentUser.Username, original.Title)

	var existing models.Note

	if err := db.DB.Where("username = ? AND title = ?", currentUser.Username, newTitle).First(&existing).Error; err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "You already have a copy of this note", "noteId": existing.ID})
		return
	}

	category := original.Category
	if category == "" {
		category = "General"
	}

	copy := models.Note{
		Title:    newTitle,
		Content:  original.Content,
		Username: currentUser.Username,
		Category: category,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&copy).Error; err != nil {
			return err
		}

		share := models.CommunityNote{
			NoteID:      copy.ID,
			CommunityID: communityID,
			SharedBy:    currentUser.Username,
			IsPublic:    true,
			SharedAt:    time.Now(),
		}

		if err := tx.Create(&share).Error; err != nil {
			return err
		}

		perm := models.NotePermission{
			NoteID:   copy.ID,
			Username: community.CreatedBy,
			CanRead:  true,
			CanEdit:  true,
		}

		return tx.Create(&perm).Error
	})

	if err != nil {
		log.Printf("Failed to copy note %d: %v", noteID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create note copy"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"noteId":         copy.ID,
		"originalNoteId": noteID,
		"communityId":    communityID,
	})
}

// ListNoteCopies lets the admin enumerate student copies of one of their
// shared notes, matched by the copy title pattern.
func ListNoteCopies(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(ctx, "id")

	if !ok {
		return
	}

	noteID, ok := parseIDParam(ctx, "noteId")

	if !ok {
		return
	}

	_, isAdmin, ok := requireMembership(ctx, currentUser.Username, communityID)

	if !ok {
		return
	}

	if !isAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only the admin can list note copies"})
		return
	}

	var original models.Note

	if err := db.DB.First(&original, noteID).Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	copies, err := communityCopies(communityID, "%'s copy of "+original.Title, currentUser.Username)

	if err != nil {
		log.Printf("Failed to fetch copies: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch copies"})
		return
	}

	ctx.JSON(http.StatusOK, copies)
}

// GetUserNotes returns the caller's own notes for the community share picker.
func GetUserNotes(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var notes []models.Note

	if err := db.DB.Where("username = ?", currentUser.Username).Order("title").Find(&notes).Error; err != nil {
		log.Printf("Failed to fetch user notes: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}

	type noteEntry struct {
		ID      uint   `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	entries := make([]noteEntry, 0, len(notes))

	for _, note := range notes {
		entries = append(entries, noteEntry{
			ID:      note.ID,
			Title:   note.Title,
			Content: latex.Unescape(note.Content),
		})
	}

	ctx.JSON(http.StatusOK, entries)
}

func copyTitle(username string, originalTitle string) string {
	return fmt.Sprintf("%s's copy of %s", username, originalTitle)
}

// requireMembership loads the community and aborts with 404/403 unless the
// caller is a member. The second result reports whether the caller is the
// admin.
func requireMembership(ctx *gin.Context, username string, communityID uint) (*models.Community, bool, bool) {
	var community models.Community

	if err := db.DB.First(&community, communityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
		} else {
			log.Printf("Failed to fetch community %d: %v", communityID, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return nil, false, false
	}

	member, err := policy.IsMember(username, communityID)

	if err != nil {
		log.Printf("Failed to check membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return nil, false, false
	}

	if !member {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this community"})
		return nil, false, false
	}

	return &community, community.CreatedBy == username, true
}

func communityMessages(communityID uint, username string, admin string, isAdmin bool) ([]models.DirectMessage, error) {
	var messages []models.DirectMessage

	if isAdmin {
		// Admin sees every conversation in the community, newest first.
		err := db.DB.Where("community_id = ?", communityID).
			Order("sent_at DESC").
			Find(&messages).Error
		return messages, err
	}

	err := db.DB.Where("community_id = ? AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))",
		communityID, username, admin, admin, username).
		Order("sent_at ASC").
		Find(&messages).Error

	return messages, err
}

type SharedNoteEntry struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	SharedAt  time.Time `json:"shared_at"`
	IsPublic  bool      `json:"is_public"`
	CopyCount int64     `json:"copy_count"`
}

func adminSharedNotes(communityID uint, admin string) ([]SharedNoteEntry, error) {
	var shares []models.CommunityNote

	err := db.DB.Where("community_id = ? AND shared_by = ?", communityID, admin).
		Order("shared_at DESC").
		Find(&shares).Error

	if err != nil {
		return nil, err
	}

	entries := make([]SharedNoteEntry, 0, len(shares))

	for _, share := range shares {
		var note models.Note

		if err := db.DB.First(&note, share.NoteID).Error; err != nil {
			continue
		}

		var copyCount int64

		db.DB.Model(&models.Note{}).
			Where("title LIKE ?", "%'s copy of "+note.Title).
			Count(&copyCount)

		entries = append(entries, SharedNoteEntry{
			ID:        note.ID,
			Title:     note.Title,
			Username:  note.Username,
			SharedAt:  share.SharedAt,
			IsPublic:  share.IsPublic,
			CopyCount: copyCount,
		})
	}

	return entries, nil
}

type CopyEntry struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	StudentName string    `json:"student_name"`
	SharedAt    time.Time `json:"shared_at"`
}

// communityCopies finds notes shared in the community whose titles match the
// copy pattern and whose originals belong to the given admin.
func communityCopies(communityID uint, titlePattern string, admin string) ([]CopyEntry, error) {
	var copies []models.Note

	err := db.DB.Model(&models.Note{}).
		Select("notes.*").
		Joins("JOIN community_notes ON community_notes.note_id = notes.id AND community_notes.deleted_at IS NULL").
		Where("community_notes.community_id = ? AND notes.title LIKE ?", communityID, titlePattern).
		Order("notes.username").
		Find(&copies).Error

	if err != nil {
		return nil, err
	}

	entries := make([]CopyEntry, 0, len(copies))

	for _, note := range copies {
		// Copies of the admin's own shared note only.
		originalTitle, ok := originalTitleFromCopy(note.Username, note.Title)

		if ok {
			var count int64

			db.DB.Model(&models.Note{}).
				Where("username = ? AND title = ?", admin, originalTitle).
				Count(&count)

			if count == 0 {
				continue
			}
		}

		var share models.CommunityNote

		if err := db.DB.Where("note_id = ? AND community_id = ?", note.ID, communityID).First(&share).Error; err != nil {
			continue
		}

		entries = append(entries, CopyEntry{
			ID:          note.ID,
			Title:       note.Title,
			StudentName: note.Username,
			SharedAt:    share.SharedAt,
		})
	}

	return entries, nil
}

func originalTitleFromCopy(username string, title string) (string, bool) {
	prefix := username + "'s copy of "

	if len(title) <= len(prefix) || title[:len(prefix)] != prefix {
		return "", false
	}

	return title[len(prefix):], true
}

type MemberNoteEntry struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	SharedBy string    `json:"shared_by"`
	SharedAt time.Time `json:"shared_at"`
	HasCopy  bool      `json:"has_copy"`
}

func memberNoteSets(communityID uint, username string, admin string) ([]MemberNoteEntry, []MemberNoteEntry, error) {
	var shares []models.CommunityNote

	err := db.DB.Where("community_id = ?", communityID).Order("shared_at DESC").Find(&shares).Error

	if err != nil {
		return nil, nil, err
	}

	var personal, teacher []MemberNoteEntry

	for _, share := range shares {
		var note models.Note

		if err := db.DB.First(&note, share.NoteID).Error; err != nil {
			continue
		}

		entry := MemberNoteEntry{
			ID:       note.ID,
			Title:    note.Title,
			SharedBy: share.SharedBy,
			SharedAt: share.SharedAt,
		}

		switch {
		case note.Username == username:
			personal = append(personal, entry)
		case share.SharedBy == admin:
			var count int64

			db.DB.Model(&models.Note{}).
				Where("username = ? AND title = ?", username, copyTitle(username, note.Title)).
				Count(&count)

			entry.HasCopy = count > 0
			teacher = append(teacher, entry)
		}
	}

	return personal, teacher, nil
}
