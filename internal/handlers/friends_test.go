package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestValidation(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/send-friend-request", token, gin.H{"addressee": "alice"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot send a friend request to yourself", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/send-friend-request", token, gin.H{"addressee": "ghost"})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", parseBody(t, w)["error"])
}

func TestFriendRequestDuplicateEitherDirection(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/send-friend-request", aliceToken, gin.H{"addressee": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/send-friend-request", aliceToken, gin.H{"addressee": "bob"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Friend request already exists", parseBody(t, w)["error"])

	// The reverse direction is blocked by the same row.
	w = doJSON(t, r, http.MethodPost, "/send-friend-request", bobToken, gin.H{"addressee": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFriendshipLifecycle(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/send-friend-request", aliceToken, gin.H{"addressee": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/friendship-status/bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := parseBody(t, w)
	assert.Equal(t, "pending", status["status"])
	assert.Equal(t, "sent", status["direction"])

	w = doJSON(t, r, http.MethodGet, "/friendship-status/alice", bobToken, nil)
	status = parseBody(t, w)
	assert.Equal(t, "received", status["direction"])
	requestID := status["id"].(float64)

	// Only the addressee may accept.
	w = doJSON(t, r, http.MethodPost, "/accept-friend-request", aliceToken, gin.H{"requestId": requestID})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/accept-friend-request", bobToken, gin.H{"requestId": requestID})
	require.Equal(t, http.StatusOK, w.Code)

	// Both sides see the friendship.
	for _, token := range []string{aliceToken, bobToken} {
		w = doJSON(t, r, http.MethodGet, "/friends", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		friends := parseBody(t, w)["friends"].([]interface{})
		require.Len(t, friends, 1)
	}

	w = doJSON(t, r, http.MethodGet, "/get-friends-for-sharing", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bob")

	// Either party may remove it.
	w = doJSON(t, r, http.MethodPost, "/remove-friend", bobToken, gin.H{"friendId": requestID})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/friendship-status/bob", aliceToken, nil)
	assert.Equal(t, "none", parseBody(t, w)["status"])
}

func TestRejectFriendRequest(t *testing.T) {
	r := setupTest(t)

	aliceToken := registerUser(t, r, "alice")
	bobToken := registerUser(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/send-friend-request", aliceToken, gin.H{"addressee": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/friendship-status/alice", bobToken, nil)
	requestID := parseBody(t, w)["id"].(float64)

	w = doJSON(t, r, http.MethodPost, "/reject-friend-request", bobToken, gin.H{"requestId": requestID})
	require.Equal(t, http.StatusOK, w.Code)

	// The pair can start over after a rejection.
	w = doJSON(t, r, http.MethodPost, "/send-friend-request", bobToken, gin.H{"addressee": "alice"})
	assert.Equal(t, http.StatusCreated, w.Code)
}
