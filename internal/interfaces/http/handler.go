package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
	"wacontacts/internal/usecases"
)

// ContactAPI is the part of usecases.ContactService the handlers use.
type ContactAPI interface {
	Authorize(ctx context.Context, session interfaces.Session) (int64, error)
	SyncAll(ctx context.Context, dir interfaces.Directory) (usecases.SyncSummary, error)
	Lookup(ctx context.Context, dir interfaces.Directory, identifier string) (*entities.ContactView, bool, error)
	SoftDelete(ctx context.Context, session interfaces.Session, contactID int64) error
	Restore(ctx context.Context, session interfaces.Session, contactID int64) error
	ListActive(ctx context.Context, session interfaces.Session) ([]entities.ContactView, error)
	ListDeleted(ctx context.Context, session interfaces.Session) ([]entities.ContactView, error)
	Stats(ctx context.Context, session interfaces.Session) (entities.ContactStats, error)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// SessionProvider returns the user's live session, nil when none exists.
type SessionProvider func(userID int64) interfaces.Directory

type Handler struct {
	contacts ContactAPI
	auth     Authenticator
	sessions SessionProvider
	log      *zap.Logger

	syncMu  sync.Mutex
	syncing map[int64]bool
}

func NewHandler(contacts ContactAPI, auth Authenticator, sessions SessionProvider, logger *zap.Logger) *Handler {
	return &Handler{
		contacts: contacts,
		auth:     auth,
		sessions: sessions,
		log:      logger,
		syncing:  make(map[int64]bool),
	}
}

// SetupRoutes registers the API. wa may be nil when WhatsApp is disabled.
func SetupRoutes(r *gin.Engine, h *Handler, wa *WhatsAppHandler, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))
	r.Use(middleware.CORSMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/api/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		contacts := api.Group("/contacts")
		contacts.POST("/sync", h.SyncContacts)
		contacts.GET("", h.ListActive)
		contacts.GET("/deleted", h.ListDeleted)
		contacts.GET("/stats", h.Stats)
		contacts.GET("/lookup/:identifier", h.Lookup)
		contacts.DELETE("/:id", h.SoftDelete)
		contacts.POST("/:id/restore", h.Restore)

		if wa != nil {
			wa.RegisterRoutes(api.Group("/whatsapp"))
		}
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !ValidEmail(req.Email) || len(req.Password) < MinPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	token, err := h.auth.Login(c.Request.Context(), SanitizeString(req.Email), req.Password)
	if err != nil {
		if !errors.Is(err, usecases.ErrInvalidCredentials) {
			h.log.Error("login failed", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// session returns the caller's live session after checking that the auth
// gate maps it to the JWT user. It writes the error response itself.
func (h *Handler) session(c *gin.Context) (interfaces.Directory, bool) {
	userID := UserID(c)
	dir := h.sessions(userID)
	if dir == nil {
		c.JSON(http.StatusConflict, gin.H{"error": usecases.ErrSessionNotReady.Error()})
		return nil, false
	}
	gateUser, err := h.contacts.Authorize(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if gateUser != userID {
		h.log.Warn("session belongs to another user", zap.Int64("user_id", userID), zap.Int64("session_user_id", gateUser))
		c.JSON(http.StatusForbidden, gin.H{"error": usecases.ErrNotAuthorized.Error()})
		return nil, false
	}
	return dir, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecases.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrSessionNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrContactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) SyncContacts(c *gin.Context) {
	dir, ok := h.session(c)
	if !ok {
		return
	}
	userID := UserID(c)

	h.syncMu.Lock()
	if h.syncing[userID] {
		h.syncMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}
	h.syncing[userID] = true
	h.syncMu.Unlock()
	defer func() {
		h.syncMu.Lock()
		delete(h.syncing, userID)
		h.syncMu.Unlock()
	}()

	summary, err := h.contacts.SyncAll(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListActive(c *gin.Context) {
	dir, ok := h.session(c)
	if !ok {
		return
	}
	views, err := h.contacts.ListActive(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": views, "count": len(views)})
}

func (h *Handler) ListDeleted(c *gin.Context) {
	dir, ok := h.session(c)
	if !ok {
		return
	}
	views, err := h.contacts.ListDeleted(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": views, "count": len(views)})
}

func (h *Handler) Stats(c *gin.Context) {
	dir, ok := h.session(c)
	if !ok {
		return
	}
	stats, err := h.contacts.Stats(c.Request.Context(), dir)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Lookup(c *gin.Context) {
	identifier := strings.TrimPrefix(SanitizeString(c.Param("identifier")), "+")
	if !ValidIdentifier(identifier) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return
	}
	dir, ok := h.session(c)
	if !ok {
		return
	}
	view, found, err := h.contacts.Lookup(c.Request.Context(), dir, identifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "identifier not on whatsapp"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) SoftDelete(c *gin.Context) {
	h.toggleDeleted(c, true)
}

func (h *Handler) Restore(c *gin.Context) {
	h.toggleDeleted(c, false)
}

func (h *Handler) toggleDeleted(c *gin.Context, deleted bool) {
	id, ok := ParseContactID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return
	}
	dir, ok := h.session(c)
	if !ok {
		return
	}
	var err error
	if deleted {
		err = h.contacts.SoftDelete(c.Request.Context(), dir, id)
	} else {
		err = h.contacts.Restore(c.Request.Context(), dir, id)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	status := "restored"
	if deleted {
		status = "deleted"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "contact_id": id})
}
