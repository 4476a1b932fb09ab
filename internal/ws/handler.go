package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/zaqqye/examguard/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on JWT auth.
		return true
	},
}

// MonitorHandler upgrades an authenticated admin to a live observer.
// ?session_id= scopes the subscription to one session; absent means the
// global "all sessions" channel.
func MonitorHandler(db *gorm.DB, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		aVal, ok := c.Get("admin")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		admin := aVal.(models.Admin)

		sessionID := c.Query("session_id")
		if sessionID != "" {
			var session models.ExamSession
			if err := db.Where("id = ? AND admin_id_ref = ?", sessionID, admin.ID).First(&session).Error; err != nil {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		o := newObserver(hub, conn, sessionID)
		hub.register <- o

		go o.writePump()
		o.readPump()
	}
}

// AgentHandler upgrades a locked client so the server can push terminate
// orders for its attempt. Only active attempts may connect.
func AgentHandler(db *gorm.DB, hub *AgentHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		attemptID := c.Query("attempt_id")
		if attemptID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "attempt_id is required"})
			return
		}
		var attempt models.ExamAttempt
		if err := db.Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
			return
		}
		if attempt.Status != models.AttemptActive {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Attempt already ended"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newAgentClient(hub, conn, attemptID)
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}
