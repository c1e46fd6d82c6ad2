package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
)

// fakeCompletionServer stands in for the completion API and records the
// last request payload.
func fakeCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(gin.H{
			"choices": []gin.H{
				{"message": gin.H{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	t.Setenv("AI_API_BASE_URL", srv.URL)
	t.Setenv("AI_API_KEY", "test-key")

	return srv
}

func TestProcessSelection(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, `\documentclass{article} $$x^2$$`)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/process-selection", token, gin.H{
		"selectedHtml": "<p>x squared</p>",
		"latexSource":  `$$x$$`,
		"context":      "square it",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `\documentclass{article} $$x^2$$`, parseBody(t, w)["updatedLatex"])

	var usage models.AIUsage
	require.NoError(t, db.DB.Where("username = ?", "alice").First(&usage).Error)
	assert.Equal(t, "process-selection", usage.Endpoint)
}

func TestRewriteText(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, `$$E = mc^2$$`)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/rewrite-text", token, gin.H{
		"text":         "energy equals mass times c squared",
		"instructions": "as an equation",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `$$E = mc^2$$`, parseBody(t, w)["updatedLatex"])
}

func TestPhotoToLatexStripsCodeFences(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, "```latex\n$$a+b$$\n```")

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/photo-to-latex", token, gin.H{
		"photo": "data:image/png;base64,aGVsbG8=",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := parseBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "$$a+b$$", body["latex"])
}

func TestPhotoToLatexSpendsOneCredit(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, "$$x$$")

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/photo-to-latex", token, gin.H{
		"photo": "data:image/png;base64,aGVsbG8=",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, db.DB.Where("username = ?", "alice").First(&user).Error)
	assert.Equal(t, 9, user.AICredits)
}

func TestPhotoToLatexRejectedWithoutCredits(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, "$$x$$")

	token := registerUser(t, r, "alice")

	require.NoError(t, db.DB.Model(&models.User{}).
		Where("username = ?", "alice").
		Update("ai_credits", 0).Error)

	w := doJSON(t, r, http.MethodPost, "/photo-to-latex", token, gin.H{
		"photo": "data:image/png;base64,aGVsbG8=",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	body := parseBody(t, w)
	assert.Equal(t, "No AI credits remaining", body["error"])
	assert.Equal(t, "Please upgrade to premium or wait for your credits to reset", body["message"])
}

func TestPremiumUserBypassesCreditGate(t *testing.T) {
	r := setupTest(t)
	fakeCompletionServer(t, "$$x$$")

	token := registerUser(t, r, "alice")

	require.NoError(t, db.DB.Model(&models.User{}).
		Where("username = ?", "alice").
		Updates(map[string]interface{}{"ai_credits": 0, "is_premium": true}).Error)

	w := doJSON(t, r, http.MethodPost, "/photo-to-latex", token, gin.H{
		"photo": "data:image/png;base64,aGVsbG8=",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestWeeklyCreditRefreshOnAuth(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	// Simulate a stale account: no credits, last reset over a week ago.
	stale := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, db.DB.Model(&models.User{}).
		Where("username = ?", "alice").
		Updates(map[string]interface{}{"ai_credits": 0, "last_credit_reset": stale}).Error)

	w := doJSON(t, r, http.MethodGet, "/get-user-credits", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := parseBody(t, w)
	assert.Equal(t, float64(10), body["ai_credits"])
}

func TestGetUserCredits(t *testing.T) {
	r := setupTest(t)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/get-user-credits", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := parseBody(t, w)
	assert.Equal(t, float64(10), body["ai_credits"])
	assert.Equal(t, false, body["is_premium"])
	assert.NotNil(t, body["last_credit_reset"])
}

func TestCompletionUpstreamFailure(t *testing.T) {
	r := setupTest(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("AI_API_BASE_URL", srv.URL)

	token := registerUser(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/rewrite-text", token, gin.H{
		"text":         "hello",
		"instructions": "latex please",
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to process the request.", parseBody(t, w)["error"])
}
