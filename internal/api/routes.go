package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/entities"
	"github.com/satriahrh/audioscribe/domain/repositories"
	"github.com/satriahrh/audioscribe/internal/auth"
	"github.com/satriahrh/audioscribe/internal/websocket"
	"github.com/satriahrh/audioscribe/usecase"
)

const sessionContextKey = "session"

// Dependencies are the services the HTTP layer needs
type Dependencies struct {
	Batch          *usecase.BatchService
	Sessions       repositories.SessionRepository
	Tokens         *auth.TokenManager
	Hub            *websocket.Hub // optional
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

type handlers struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handlers{Dependencies: deps, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "audioscribe",
		})
	})

	// Upload page
	e.GET("/", h.index)

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/sessions", h.createSession)

	transcriptions := v1.Group("/transcriptions", h.requireSession)
	transcriptions.POST("", h.createTranscriptions)
	transcriptions.GET("", h.listTranscriptions)
	transcriptions.GET("/:key/download", h.downloadTranscription)
	transcriptions.DELETE("/:key", h.dismissTranscription)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

// requireSession validates the bearer token and loads the session
func (h *handlers) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var token string
		authHeader := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header",
			})
		}

		session, status, resp := h.resolveSession(c, token)
		if session == nil {
			return c.JSON(status, resp)
		}

		c.Set(sessionContextKey, session)
		return next(c)
	}
}

func (h *handlers) resolveSession(c echo.Context, token string) (*entities.Session, int, ErrorResponse) {
	claims, err := h.Tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("Request rejected: invalid token", zap.Error(err))
		return nil, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}

	session, err := h.Sessions.GetByID(c.Request().Context(), claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Error("Failed to load session", zap.Error(err))
		}
		return nil, http.StatusUnauthorized, ErrorResponse{
			Error:   "session_expired",
			Message: "Session not found or expired, create a new one",
		}
	}

	session.Touch()
	return session, http.StatusOK, ErrorResponse{}
}

func sessionFrom(c echo.Context) *entities.Session {
	session, _ := c.Get(sessionContextKey).(*entities.Session)
	return session
}

// websocketWithAuth handles WebSocket connections. Browsers cannot set
// headers on a websocket, so the token comes from the query string.
func (h *handlers) websocketWithAuth(c echo.Context) error {
	if h.Hub == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Progress stream is disabled",
		})
	}

	token := c.QueryParam("token")
	if token == "" {
		h.logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in the token query parameter",
		})
	}

	session, status, resp := h.resolveSession(c, token)
	if session == nil {
		return c.JSON(status, resp)
	}

	h.logger.Info("WebSocket connection authenticated", zap.String("session_id", session.ID))
	return websocket.HandleWebSocketWithAuth(h.Hub, c, session.ID, h.logger)
}
