package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
)

func TestRegisterAndMe(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := parseBody(t, w)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, float64(10), user["ai_credits"])
	assert.Equal(t, false, user["is_premium"])
}

func TestRegisterDuplicate(t *testing.T) {
	r := setupTest(t)

	registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/register", "", gin.H{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username/email already exists", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/register", "", gin.H{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var count int64
	db.DB.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLogin(t *testing.T) {
	r := setupTest(t)

	registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/login", "", gin.H{
		"username": "nobody",
		"password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "wrongpassword",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid password", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := parseBody(t, w)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice", body["user"].(map[string]interface{})["username"])
}

func TestLogoutIsIdempotent(t *testing.T) {
	r := setupTest(t)

	w := doJSON(t, r, http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangePassword(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/change-password", token, gin.H{
		"oldPassword": "wrongpassword",
		"newPassword": "newpassword1",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Old password is incorrect", parseBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/change-password", token, gin.H{
		"oldPassword": "password123",
		"newPassword": "newpassword1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "newpassword1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	r := setupTest(t)

	w := doJSON(t, r, http.MethodGet, "/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/notes", "not-a-valid-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
