package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"wacontacts/internal/infrastructure"
)

// WhatsAppHandler pairs and inspects the caller's WhatsApp device.
type WhatsAppHandler struct {
	manager *infrastructure.WhatsAppManager
	log     *zap.Logger
}

func NewWhatsAppHandler(manager *infrastructure.WhatsAppManager, logger *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{manager: manager, log: logger}
}

func (h *WhatsAppHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/connect", h.Connect)
	g.GET("/qr", h.QRCode)
	g.GET("/status", h.Status)
	g.POST("/logout", h.Logout)
}

func (h *WhatsAppHandler) Connect(c *gin.Context) {
	userID := UserID(c)
	client, err := h.manager.ConnectClient(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("whatsapp connect failed", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect whatsapp"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "connecting",
		"connected": client.IsLoggedIn(),
		"phone":     client.GetPhoneNumber(),
		"name":      client.GetName(),
	})
}

// QRCode serves the pairing code as a PNG.
func (h *WhatsAppHandler) QRCode(c *gin.Context) {
	userID := UserID(c)
	client, err := h.manager.ConnectClient(c.Request.Context(), userID)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to connect")
		return
	}

	code := client.GetQR()
	if code == "" {
		if client.IsLoggedIn() {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *WhatsAppHandler) Status(c *gin.Context) {
	client := h.manager.GetClient(UserID(c))
	if client == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "initialized": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":   client.IsConnected(),
		"ready":       client.Ready(),
		"initialized": true,
		"phone":       client.GetPhoneNumber(),
		"name":        client.GetName(),
		"hasQR":       client.GetQR() != "",
	})
}

func (h *WhatsAppHandler) Logout(c *gin.Context) {
	userID := UserID(c)
	if err := h.manager.LogoutClient(c.Request.Context(), userID); err != nil {
		h.log.Warn("whatsapp logout", zap.Int64("user_id", userID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
