package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"quizplay/internal/domain"
	"quizplay/internal/platform"
)

const principalKey = "principal"

type ErrorResponse struct {
	Error string `json:"error"`
}

type playRequest struct {
	Response string `json:"response"`
}

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler serves the platform REST API.
type Handler struct {
	service *platform.Service
	logger  *slog.Logger
}

// NewRouter wires the REST endpoints, the played-event websocket and the health check.
func NewRouter(service *platform.Service, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{service: service, logger: logger}
	ws := NewWSHandler(service, logger)

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/ws", gin.WrapF(ws.ServeWS))

	r.GET("/quizzes", h.listQuizzes)
	r.GET("/categories", h.listCategories)
	r.POST("/users/login", h.login(false))
	r.POST("/auth/login", h.login(true))
	r.POST("/users/signup", h.signup)

	users := r.Group("/users")
	users.Use(h.requireAuth())
	{
		users.GET("/:id", h.requireSelfOrAdmin(), h.getUser)
		users.DELETE("/:id", h.requireSelfOrAdmin(), h.deleteUser)
		users.PATCH("/update/:id", h.requireSelfOrAdmin(), h.updateUser)
		users.GET("/:id/played-quizzes", h.requireSelfOrAdmin(), h.listPlayed)
		users.POST("/:id/quizzes/:quizId/play", h.requireSelf(), h.play)
	}

	admin := r.Group("/auth")
	admin.Use(h.requireAuth(), h.requireAdmin())
	{
		admin.PUT("/update/:id", h.updateUser)
	}
	return r
}

func (h *Handler) listQuizzes(c *gin.Context) {
	quizzes, err := h.service.Quizzes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) login(requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds domain.Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		identity, err := h.service.Login(c.Request.Context(), creds, requireAdmin)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, identity)
	}
}

func (h *Handler) signup(c *gin.Context) {
	var reg domain.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	identity, err := h.service.Signup(c.Request.Context(), reg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

func (h *Handler) getUser(c *gin.Context) {
	identity, err := h.service.Identity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *Handler) updateUser(c *gin.Context) {
	var update domain.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	identity, err := h.service.UpdateProfile(c.Request.Context(), principalOf(c), c.Param("id"), update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listPlayed(c *gin.Context) {
	records, err := h.service.Played(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result, err := h.service.Play(c.Request.Context(), c.Param("id"), c.Param("quizId"), req.Response)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization header required"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			return
		}
		principal, err := h.service.Authenticate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// requireSelfOrAdmin lets admins act on any account and players only on their own.
func (h *Handler) requireSelfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalOf(c)
		if p.UserID != c.Param("id") && !p.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principalOf(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "admin only"})
			return
		}
		c.Next()
	}
}

// requireSelf restricts plays to the account owner; admins cannot answer for players.
func (h *Handler) requireSelf() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalOf(c).UserID != c.Param("id") {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.logger.Debug("request", "method", c.Request.Method, "path", c.FullPath(), "status", c.Writer.Status())
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(status, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func principalOf(c *gin.Context) platform.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(platform.Principal); ok {
			return p
		}
	}
	return platform.Principal{}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
