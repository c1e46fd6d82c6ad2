package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
)

func createCommunity(t *testing.T, r *gin.Engine, token string, body gin.H) (uint, map[string]interface{}) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/create-community", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	parsed := parseBody(t, w)
	id, ok := parsed["communityId"].(float64)
	require.True(t, ok)

	return uint(id), parsed
}

func TestCreateCommunityMakesCreatorAdmin(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	id, body := createCommunity(t, r, token, gin.H{"name": "Math 101"})
	assert.NotContains(t, body, "accessCode")

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/community/%d", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	detail := parseBody(t, w)
	assert.Equal(t, true, detail["isAdmin"])

	community := detail["community"].(map[string]interface{})
	assert.Equal(t, "alice", community["created_by"])
}

func TestJoinCommunityDuplicate(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Open Group"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "You are already a member of this community", parseBody(t, w)["error"])

	var count int64
	db.DB.Model(&models.CommunityMembership{}).Where("username = ?", "bob").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestJoinPrivateCommunity(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, body := createCommunity(t, r, aliceToken, gin.H{"name": "Secret Group", "isPrivate": true})
	accessCode, ok := body["accessCode"].(string)
	require.True(t, ok)
	require.NotEmpty(t, accessCode)

	// Direct join is refused for private communities.
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/join-private-community", bobToken, gin.H{"accessCode": "wrong"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid access code or community not found", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/join-private-community", bobToken, gin.H{"accessCode": accessCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Secret Group", parseBody(t, w)["communityName"])

	w = doJSON(t, r, http.MethodPost, "/join-private-community", bobToken, gin.H{"accessCode": accessCode})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListCommunitiesSplitsJoinedAndPublic(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	createCommunity(t, r, aliceToken, gin.H{"name": "Alice Public"})
	createCommunity(t, r, aliceToken, gin.H{"name": "Alice Private", "isPrivate": true})
	createCommunity(t, r, bobToken, gin.H{"name": "Bob Public"})

	w := doJSON(t, r, http.MethodGet, "/communities", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := parseBody(t, w)
	mine := body["communities"].([]interface{})
	require.Len(t, mine, 1)
	assert.Equal(t, true, mine[0].(map[string]interface{})["is_admin"])

	// Private communities never show up as joinable.
	public := body["publicCommunities"].([]interface{})
	require.Len(t, public, 1)
	assert.Equal(t, "Alice Public", public[0].(map[string]interface{})["name"])
}

func TestLeaveCommunity(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Leavers"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/leave-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/community/%d", id), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Leaving then rejoining is allowed.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Leaving must not leave a soft-deleted row behind, or the rejoin
	// would trip the membership unique index.
	var count int64
	db.DB.Unscoped().Model(&models.CommunityMembership{}).
		Where("community_id = ? AND username = ?", id, "bob").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAnnouncementsAdminOnly(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Announcers"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/announcement", id), bobToken, gin.H{
		"title":   "Hi",
		"content": "not allowed",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to create announcements", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/announcement", id), aliceToken, gin.H{
		"title":   "Welcome",
		"content": "First announcement",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	announcements := parseBody(t, w)["announcements"].([]interface{})
	require.Len(t, announcements, 1)
}

func TestCommunityMessaging(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Chat"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/message", id), bobToken, gin.H{
		"content": "Hello teacher",
		"toUser":  "alice",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/community/%d/messages/bob", id), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello teacher")

	carolToken := registerUser(t, r, "carol")
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), carolToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/message", id), bobToken, gin.H{
		"content": "Psst, carol",
		"toUser":  "carol",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The admin's community view carries every message, including ones
	// between members.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/community/%d", id), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := parseBody(t, w)["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Contains(t, w.Body.String(), "Psst, carol")
}

func TestCommunityNoteCopyWorkflow(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Class"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	noteID := saveNote(t, r, aliceToken, gin.H{"title": "Homework 1", "content": "$$1+1$$"})

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/share-note", id), aliceToken, gin.H{"noteId": noteID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Sharing the same note twice is a conflict.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/share-note", id), aliceToken, gin.H{"noteId": noteID})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/community/%d/check-note-copy/%d", id, noteID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, parseBody(t, w)["hasCopy"])

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/copy-note/%d", id, noteID), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	copyID := uint(parseBody(t, w)["noteId"].(float64))

	var copy models.Note
	require.NoError(t, db.DB.First(&copy, copyID).Error)
	assert.Equal(t, "bob's copy of Homework 1", copy.Title)
	assert.Equal(t, "bob", copy.Username)

	// The admin gets read and edit on the copy.
	w = doJSON(t, r, http.MethodPost, "/save-latex", aliceToken, gin.H{
		"title":   copy.Title,
		"content": "graded",
		"noteId":  copyID,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/community/%d/check-note-copy/%d", id, noteID), bobToken, nil)
	assert.Equal(t, true, parseBody(t, w)["hasCopy"])

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/copy-note/%d", id, noteID), bobToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Only the admin can enumerate copies.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/community/%d/note/%d/copies", id, noteID), bobToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/community/%d/note/%d/copies", id, noteID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bob's copy of Homework 1")
}

func TestShareNoteWithCommunityOwnershipAndMembership(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")
	eveToken := registerUser(t, r, "eve")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Strict"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	aliceNoteID := saveNote(t, r, aliceToken, gin.H{"title": "A", "content": "a"})
	eveNoteID := saveNote(t, r, eveToken, gin.H{"title": "E", "content": "e"})

	// Non-members cannot share at all.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/share-note", id), eveToken, gin.H{"noteId": eveNoteID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Members can only share notes they own.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/community/%d/share-note", id), bobToken, gin.H{"noteId": aliceNoteID})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Can only share your own notes", parseBody(t, w)["error"])
}

func TestCommunityMembersList(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	id, _ := createCommunity(t, r, aliceToken, gin.H{"name": "Roster"})

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/join-community/%d", id), bobToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/community/%d/members", id), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var members []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 2)

	byName := map[string]bool{}
	for _, m := range members {
		byName[m["username"].(string)] = m["is_admin"].(bool)
	}

	assert.True(t, byName["alice"])
	assert.False(t, byName["bob"])
}

func TestGetUserNotesForSharePicker(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")
	saveNote(t, r, token, gin.H{"title": "Pick me", "content": `x "quoted"`})

	w := doJSON(t, r, http.MethodGet, "/api/user/notes", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var notes []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Pick me", notes[0]["title"])
	assert.Equal(t, `x "quoted"`, notes[0]["content"])
}
