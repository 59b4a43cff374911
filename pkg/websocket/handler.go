package websocket

import (
	"net/http"

	"aarohyatrika/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Tighten per deployment.
	},
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleWebSocket upgrades an authenticated request to a realtime channel
// and registers it with the hub. The auth middleware has already resolved
// the principal.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(utils.ContextUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	role, exists := c.Get(utils.ContextRole)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Role not found"})
		return
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	roleStr, _ := role.(string)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userObjectID, roleStr, c.GetString("user_name"))
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}
