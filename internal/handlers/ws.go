package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/policy"
	"github.com/underleaf-dev/underleaf/internal/types"
	"github.com/underleaf-dev/underleaf/internal/utils"
)

var (
	communityClients   = make(map[uint]map[*websocket.Conn]bool)
	communityClientsMu sync.RWMutex
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// BroadcastCommunityMessage pushes a new direct message to every open
// websocket subscribed to the community. Clients filter by recipient.
func BroadcastCommunityMessage(communityID uint, message *models.DirectMessage) {
	communityClientsMu.RLock()
	clients, exists := communityClients[communityID]
	if !exists || len(clients) == 0 {
		communityClientsMu.RUnlock()
		return
	}

	// Copy the connection set so the lock is not held while writing
	clientsCopy := make([]*websocket.Conn, 0, len(clients))
	for conn := range clients {
		clientsCopy = append(clientsCopy, conn)
	}
	communityClientsMu.RUnlock()

	for _, conn := range clientsCopy {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("Failed to set write deadline for broadcast: %v", err)
			continue
		}

		err := conn.WriteJSON(gin.H{
			"type":         "message",
			"community_id": communityID,
			"from_user":    message.FromUser,
			"to_user":      message.ToUser,
			"content":      message.Content,
			"sent_at":      message.SentAt,
		})

		if err != nil {
			log.Printf("Failed to broadcast message to client: %v", err)
			communityClientsMu.Lock()
			if clients, exists := communityClients[communityID]; exists {
				delete(clients, conn)
				if len(clients) == 0 {
					delete(communityClients, communityID)
				}
			}
			communityClientsMu.Unlock()
			conn.Close()
		}
	}
}

// CommunityFeed upgrades the request to a websocket and keeps the client
// subscribed to community message broadcasts until it disconnects.
func CommunityFeed(c *gin.Context) {
	currentUser, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	communityID, ok := parseIDParam(c, "id")

	if !ok {
		return
	}

	member, err := policy.IsMember(currentUser.Username, communityID)

	if err != nil {
		log.Printf("Failed to check membership: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this community"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	communityClientsMu.Lock()
	if communityClients[communityID] == nil {
		communityClients[communityID] = make(map[*websocket.Conn]bool)
	}
	communityClients[communityID][conn] = true
	communityClientsMu.Unlock()

	defer func() {
		communityClientsMu.Lock()

		if clients, exists := communityClients[communityID]; exists {
			delete(clients, conn)

			if len(clients) == 0 {
				delete(communityClients, communityID)
			}
		}

		communityClientsMu.Unlock()
		conn.Close()

		log.Printf("WebSocket connection closed for community %d", communityID)
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Failed to set write deadline for welcome message: %v", err)
		return
	}

	err = conn.WriteJSON(gin.H{
		"type":         "connected",
		"message":      "WebSocket connection established",
		"community_id": communityID,
	})

	if err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Stopping the ticker alone would leave the ping goroutine parked on
	// its channel forever.
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set write deadline for community %d: %v", communityID, err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping failed for community %d: %v", communityID, err)
				return
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline for community %d: %v", communityID, err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for community %d: %v", communityID, err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			log.Printf("Received message from client in community %d: %s", communityID, string(message))
		}
	}
}
