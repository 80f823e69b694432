package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collabhub.app/config"
	"collabhub.app/internal/middleware"
	"collabhub.app/internal/realtime"
	"collabhub.app/internal/store"
	apperr "collabhub.app/pkg/errors"
	"collabhub.app/pkg/validation"
)

// Server represents the HTTP server and API handler
type Server struct {
	router        *gin.Engine
	config        *config.Config
	store         *store.RedisStore
	presence      *realtime.Presence
	limiter       *realtime.RateLimiter
	messages      *realtime.MessageWindow
	notifications *realtime.NotificationQueue
}

// NewServer creates and configures a new HTTP server
func NewServer(
	cfg *config.Config,
	cacheStore *store.RedisStore,
	presence *realtime.Presence,
	limiter *realtime.RateLimiter,
	messages *realtime.MessageWindow,
	notifications *realtime.NotificationQueue,
) *Server {
	router := gin.Default()

	server := &Server{
		router:        router,
		config:        cfg,
		store:         cacheStore,
		presence:      presence,
		limiter:       limiter,
		messages:      messages,
		notifications: notifications,
	}

	registerValidators()
	server.setupRoutes()
	return server
}

// registerValidators adds custom binding validators to the gin validation engine.
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
			return validation.IsValidRoomID(fl.Field().String())
		})
	}
}

func (s *Server) setupRoutes() {
	requestCache := middleware.RequestCache(s.store, middleware.RequestCacheOptions{
		TTL: s.config.Cache.RequestTTL(),
	})

	api := s.router.Group("/api")
	api.Use(s.sessionContext)
	{
		api.GET("/notifications/unread-count", requestCache, s.getUnreadCount)
		api.GET("/users/online-status", requestCache, s.getOnlineStatus)
		api.GET("/messages/:roomId/latest", requestCache, s.getLatestMessages)
		api.GET("/session/status", requestCache, s.getSessionStatus)
		api.GET("/sessions/active", requestCache, s.getActiveSessions)
		api.GET("/dashboard/stats", requestCache, s.getDashboardStats)

		api.POST("/messages/:roomId", middleware.Invalidation(s.store, middleware.InvalidationOptions{
			Patterns: []middleware.InvalidationPattern{
				{Resolve: func(c *gin.Context) string {
					return "realtime:GET:/api/messages/" + c.Param("roomId") + "/latest:*"
				}},
			},
		}), s.postMessage)

		api.POST("/notifications", middleware.Invalidation(s.store, middleware.InvalidationOptions{
			Patterns: []middleware.InvalidationPattern{
				{Literal: "realtime:GET:/api/notifications/unread-count:{userId}"},
			},
		}), s.postNotification)

		api.POST("/notifications/:id/read", middleware.Invalidation(s.store, middleware.InvalidationOptions{
			Patterns: []middleware.InvalidationPattern{
				{Literal: "realtime:GET:/api/notifications/unread-count:{userId}"},
			},
		}), s.markNotificationRead)

		presenceInvalidation := middleware.Invalidation(s.store, middleware.InvalidationOptions{
			Patterns: []middleware.InvalidationPattern{
				{Literal: "realtime:GET:/api/users/online-status:*"},
				{Literal: "realtime:GET:/api/sessions/active:*"},
				{Literal: "realtime:GET:/api/session/status:{userId}"},
			},
		})
		api.POST("/presence/online", presenceInvalidation, s.goOnline)
		api.POST("/presence/offline", presenceInvalidation, s.goOffline)
		api.POST("/rooms/:roomId/join", presenceInvalidation, s.joinRoom)
		api.POST("/rooms/:roomId/leave", presenceInvalidation, s.leaveRoom)
	}

	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start begins the HTTP server
func (s *Server) Start() error {
	return s.router.Run(fmt.Sprintf(":%d", s.config.Server.Port))
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// sessionContext resolves the authenticated user from the session header and
// stores it on the request context for handlers and cache middleware.
func (s *Server) sessionContext(c *gin.Context) {
	if id := c.GetHeader("X-User-ID"); id != "" {
		c.Set("userId", id)
	}
	c.Next()
}

func currentUser(c *gin.Context) string {
	return c.GetString("userId")
}

func (s *Server) getUnreadCount(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	count := s.notifications.GetUnreadCount(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "unreadCount": count})
}

func (s *Server) getOnlineStatus(c *gin.Context) {
	users := s.presence.GetOnlineUsers(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"online": users, "count": len(users)})
}

func (s *Server) getLatestMessages(c *gin.Context) {
	roomID := c.Param("roomId")
	if !validation.IsValidRoomID(roomID) {
		s.handleError(c, apperr.NewValidationError("invalid room identifier"))
		return
	}

	count := s.config.Cache.MessageWindowSize
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.handleError(c, apperr.NewValidationError("count must be a positive integer"))
			return
		}
		count = parsed
	}

	messages := s.messages.GetRecentMessages(c.Request.Context(), roomID, count)
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "messages": messages})
}

func (s *Server) getSessionStatus(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	online := s.presence.IsUserOnline(c.Request.Context(), userID)
	response := gin.H{"userId": userID, "online": online}
	if record, ok := s.presence.GetUser(c.Request.Context(), userID); ok {
		response["socketId"] = record.SocketID
		response["since"] = record.Timestamp
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) getActiveSessions(c *gin.Context) {
	ctx := c.Request.Context()
	sessions := make([]realtime.PresenceRecord, 0)
	for _, userID := range s.presence.GetOnlineUsers(ctx) {
		if record, ok := s.presence.GetUser(ctx, userID); ok {
			sessions = append(sessions, *record)
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) getDashboardStats(c *gin.Context) {
	userID := currentUser(c)
	ctx := c.Request.Context()

	online := s.presence.GetOnlineUsers(ctx)
	stats := gin.H{
		"onlineUsers":    len(online),
		"cacheAvailable": s.store.IsAvailable(ctx),
	}
	if userID != "" {
		stats["unreadNotifications"] = s.notifications.GetUnreadCount(ctx, userID)
	}
	c.JSON(http.StatusOK, stats)
}

type sendMessageRequest struct {
	Text     string `json:"text" binding:"required"`
	ThreadID string `json:"threadId" binding:"omitempty,roomid"`
}

func (s *Server) postMessage(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	roomID := c.Param("roomId")
	if !validation.IsValidRoomID(roomID) {
		s.handleError(c, apperr.NewValidationError("invalid room identifier"))
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("Request binding error", "error", err)
		s.handleError(c, apperr.NewValidationError("invalid request format"))
		return
	}

	ctx := c.Request.Context()
	limit := int64(s.config.Cache.RateLimitDefault)
	window := time.Duration(s.config.Cache.RateWindowSeconds) * time.Second
	if !s.limiter.CheckLimit(ctx, userID, "send-message", limit, window) {
		remaining := s.limiter.GetRemainingAttempts(ctx, userID, "send-message", limit)
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "message rate limit exceeded",
			"remaining": remaining,
		})
		c.Abort()
		return
	}

	message := realtime.Message{
		"sender": userID,
		"text":   req.Text,
	}
	if req.ThreadID != "" {
		message["threadId"] = req.ThreadID
	}
	s.messages.AddMessage(ctx, roomID, message)

	slog.Debug("Message posted", "roomId", roomID, "userId", userID)
	c.JSON(http.StatusCreated, gin.H{"roomId": roomID, "message": message})
}

type queueNotificationRequest struct {
	UserID string                 `json:"userId" binding:"required"`
	Data   map[string]interface{} `json:"data" binding:"required"`
}

func (s *Server) postNotification(c *gin.Context) {
	var req queueNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("Request binding error", "error", err)
		s.handleError(c, apperr.NewValidationError("invalid request format"))
		return
	}

	id := s.notifications.QueueNotification(c.Request.Context(), req.UserID, req.Data)
	if id == "" {
		s.handleError(c, apperr.NewCacheError("notification queue unavailable", nil))
		return
	}

	slog.Debug("Notification queued", "id", id, "userId", req.UserID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	notificationID, ok := validation.TrimAndValidate(c.Param("id"))
	if !ok {
		s.handleError(c, apperr.NewValidationError("notification id is required"))
		return
	}

	if !s.notifications.MarkNotificationRead(c.Request.Context(), userID, notificationID) {
		s.handleError(c, apperr.NewNotFoundError("notification not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": notificationID, "read": true})
}

type presenceRequest struct {
	SocketID string `json:"socketId" binding:"required"`
}

func (s *Server) goOnline(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("Request binding error", "error", err)
		s.handleError(c, apperr.NewValidationError("invalid request format"))
		return
	}

	s.presence.AddUser(c.Request.Context(), userID, req.SocketID)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "online": true})
}

func (s *Server) goOffline(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	s.presence.RemoveUser(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "online": false})
}

func (s *Server) joinRoom(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	roomID := c.Param("roomId")
	if !validation.IsValidRoomID(roomID) {
		s.handleError(c, apperr.NewValidationError("invalid room identifier"))
		return
	}

	s.presence.JoinRoom(c.Request.Context(), roomID, userID)
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "userId": userID, "joined": true})
}

func (s *Server) leaveRoom(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		s.handleError(c, apperr.NewValidationError("authenticated user required"))
		return
	}

	roomID := c.Param("roomId")
	if !validation.IsValidRoomID(roomID) {
		s.handleError(c, apperr.NewValidationError("invalid room identifier"))
		return
	}

	s.presence.LeaveRoom(c.Request.Context(), roomID, userID)
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "userId": userID, "joined": false})
}

func (s *Server) health(c *gin.Context) {
	available := s.store.IsAvailable(c.Request.Context())
	cacheStatus := "ok"
	if !available {
		cacheStatus = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cache":  cacheStatus,
		"stats":  s.store.Stats(),
	})
}

// handleError handles different types of application errors
func (s *Server) handleError(c *gin.Context, err error) {
	var appErr *apperr.AppError
	var statusCode int
	var message string

	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperr.ErrorTypeValidation:
			statusCode = http.StatusBadRequest
			message = appErr.Message
		case apperr.ErrorTypeNotFound:
			statusCode = http.StatusNotFound
			message = appErr.Message
		case apperr.ErrorTypeCache:
			statusCode = http.StatusServiceUnavailable
			message = "Cache service unavailable"
		case apperr.ErrorTypeSerialization, apperr.ErrorTypeDatabase:
			statusCode = http.StatusInternalServerError
			message = "Internal server error"
		default:
			statusCode = http.StatusInternalServerError
			message = "Internal server error"
		}
	} else {
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
	}

	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}
