package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/underleaf-dev/underleaf/internal/handlers"
	"github.com/underleaf-dev/underleaf/internal/middleware"
	"github.com/underleaf-dev/underleaf/internal/types"
)

func NewRouter(sessionSecret string) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions("underleaf_session", store))

	r.GET("/welcome", handlers.Welcome)

	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	r.POST("/logout", handlers.Logout)

	r.POST("/request-password-reset", handlers.RequestPasswordReset)
	r.POST("/verify-reset-token", handlers.VerifyResetToken)
	r.POST("/reset-password", handlers.ResetPassword)

	authed := r.Group("", middleware.AuthRequired())
	{
		authed.GET("/me", handlers.Me)
		authed.POST("/change-password", handlers.ChangePassword)

		// Notes
		authed.POST("/save-latex", handlers.SaveNote)
		authed.GET("/notes", handlers.ListNotes)
		authed.GET("/get-notes", handlers.GetNotes)
		authed.GET("/get-note/:id", handlers.GetNote)
		authed.DELETE("/delete-note/:id", handlers.DeleteNote)
		authed.POST("/share-note", handlers.ShareNote)

		// Templates
		authed.GET("/templates", handlers.ListTemplates)
		authed.POST("/create-template", handlers.CreateTemplate)
		authed.POST("/edit-template/:id", handlers.EditTemplate)
		authed.DELETE("/delete-template/:id", handlers.DeleteTemplate)
		authed.POST("/share-template", handlers.ShareTemplate)

		// Friend graph
		authed.GET("/friends", handlers.ListFriends)
		authed.POST("/send-friend-request", handlers.SendFriendRequest)
		authed.POST("/accept-friend-request", handlers.AcceptFriendRequest)
		authed.POST("/reject-friend-request", handlers.RejectFriendRequest)
		authed.POST("/remove-friend", handlers.RemoveFriend)
		authed.GET("/friendship-status/:username", handlers.FriendshipStatus)
		authed.GET("/get-friends-for-sharing", handlers.GetFriendsForSharing)

		// Communities
		authed.POST("/create-community", handlers.CreateCommunity)
		authed.POST("/join-community/:id", handlers.JoinCommunity)
		authed.POST("/join-private-community", handlers.JoinPrivateCommunity)
		authed.POST("/leave-community/:id", handlers.LeaveCommunity)
		authed.GET("/communities", handlers.ListCommunities)
		authed.GET("/community/:id", handlers.GetCommunity)
		authed.GET("/community/:id/members", handlers.ListCommunityMembers)

		authed.GET("/ws/community/:id", handlers.CommunityFeed)

		api := authed.Group("/api")
		{
			api.POST("/community/:id/announcement", handlers.CreateAnnouncement)
			api.POST("/community/:id/message", handlers.SendCommunityMessage)
			api.GET("/community/:id/messages/:username", handlers.GetCommunityMessages)
			api.POST("/community/:id/share-note", handlers.ShareNoteWithCommunity)
			api.GET("/community/:id/check-note-copy/:noteId", handlers.CheckNoteCopy)
			api.POST("/community/:id/copy-note/:noteId", handlers.CopyCommunityNote)
			api.GET("/community/:id/note/:noteId/copies", handlers.ListNoteCopies)
			api.GET("/user/notes", handlers.GetUserNotes)
		}

		// AI bridge
		authed.POST("/process-selection", handlers.ProcessSelection)
		authed.POST("/rewrite-text", handlers.RewriteText)
		authed.POST("/photo-to-latex", middleware.RequireAICredits(), handlers.PhotoToLatex)
		authed.GET("/get-user-credits", handlers.GetUserCredits)
	}

	return r
}
