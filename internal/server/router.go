package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/auth"
	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey         = "docrev_user_id"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingDocsService      = errors.New("docs service dependency required")
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingIdentityResolver = errors.New("identity resolver dependency required")
	errMissingRealtime         = errors.New("realtime dispatcher dependency required")
)

// SessionValidator extracts and validates the caller's session token.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// IdentityResolver maps validated claims onto a canonical caller id.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, claims auth.SessionClaims) (docs.UserID, error)
}

// HTTPMetrics records request counts and serves the metrics endpoint.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, route string, status int)
	Handler() http.Handler
}

type Dependencies struct {
	DocsService       *docs.Service
	SessionValidator  SessionValidator
	Identities        IdentityResolver
	Realtime          *RealtimeDispatcher
	Metrics           HTTPMetrics
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.DocsService == nil {
		return nil, errMissingDocsService
	}
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityResolver
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	corsHandler, err := corsMiddleware(deps.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	handler := &httpHandler{
		docsService: deps.DocsService,
		sessions:    deps.SessionValidator,
		identities:  deps.Identities,
		realtime:    deps.Realtime,
		heartbeat:   heartbeat,
		logger:      logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(requestMetrics(deps.Metrics))
	}
	router.Use(corsHandler)
	router.Use(handler.resolveIdentity)

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/documents", handler.handleListDocuments)
	router.POST("/documents", handler.handleCreateDocument)
	router.GET("/documents/:id", handler.handleGetDocument)
	router.DELETE("/documents/:id", handler.handleDeleteDocument)
	router.GET("/documents/:id/versions", handler.handleListVersions)
	router.GET("/documents/:id/suggestions", handler.handleListSuggestions)
	router.POST("/documents/:id/suggestions", handler.handleSubmitSuggestion)
	router.GET("/documents/:id/suggestions/:suggestion_id", handler.handleGetDocumentSuggestion)
	router.GET("/documents/:id/events", handler.handleDocumentEvents)

	router.GET("/versions/:id", handler.handleGetVersion)

	router.GET("/suggestions/:id", handler.handleGetSuggestion)
	router.POST("/suggestions/:id/accept", handler.handleAcceptSuggestion)
	router.POST("/suggestions/:id/reject", handler.handleRejectSuggestion)

	return router, nil
}

type httpHandler struct {
	docsService *docs.Service
	sessions    SessionValidator
	identities  IdentityResolver
	realtime    *RealtimeDispatcher
	heartbeat   time.Duration
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveIdentity attaches the caller id when a valid session is present.
// Requests without one continue anonymously; the service decides whether
// that is acceptable.
func (h *httpHandler) resolveIdentity(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingSessionToken) {
			h.logTokenFailure(err)
		}
		c.Next()
		return
	}
	userID, err := h.identities.ResolveUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.Next()
		return
	}
	c.Set(userIDContextKey, userID.String())
	c.Next()
}

func (h *httpHandler) logTokenFailure(err error) {
	if errors.Is(err, auth.ErrExpiredSessionToken) {
		h.logger.Info("session token validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("session token validation failed", zap.Error(err))
}

func callerID(c *gin.Context) docs.UserID {
	return docs.UserID(c.GetString(userIDContextKey))
}

func requestMetrics(metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}

// corsMiddleware allows credentialed (cookie) requests only from an explicit
// origin list. A wildcard or empty list answers with a literal "*" and no
// credentials, so browsers will not attach session cookies cross-origin.
func corsMiddleware(allowedOrigins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders: []string{"Location"},
		MaxAge:        12 * time.Hour,
	}
	if allowsAnyOrigin(allowedOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cors.New(cfg), nil
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
