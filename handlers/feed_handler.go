package handlers

import (
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/sdcpainting/referral_site/middleware"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/websocket"
)

type feedAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeFeed authenticates the socket with its first message, then keeps it
// registered with the hub until the client goes away. Browsers cannot set an
// Authorization header on the upgrade request, hence the auth message.
func (h *Handler) ServeFeed(c *websocketcontrib.Conn) {
	var authMsg feedAuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		h.Log.Warn("feed auth failed: invalid or missing auth message", zap.Error(err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	token, err := middleware.ParseToken(h.JWTSecret, authMsg.Token)
	if err != nil {
		h.Log.Warn("feed auth failed: invalid token", zap.Error(err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	userID, _ := claims["user_id"].(string)
	if role, _ := claims["role"].(string); role != models.RoleAdmin || userID == "" {
		_ = c.WriteJSON(fiber.Map{"error": "Admin access required"})
		c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	h.Hub.Register(client)
	h.Log.Info("feed client registered", zap.String("user_id", userID))
	defer func() {
		h.Hub.Unregister(client)
		c.Close()
	}()

	// Nothing is expected from the client; reading detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				h.Log.Debug("feed read error", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
	}
}
