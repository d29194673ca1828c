package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"synergysphere/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	publicAPIKey string,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	projectH *ProjectHandler,
	opts ...RouterOption,
) *gin.Engine {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := gin.New()

	var m *metrics
	if o.metrics {
		m = newMetrics()
		r.Use(m.middleware())
	}
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	// /metrics se registra antes de CORS y del rate limit para que no le apliquen.
	if m != nil {
		r.GET("/metrics", m.handler())
	}
	if len(o.corsOrigins) > 0 {
		r.Use(corsMiddleware(o.corsOrigins))
	}
	r.Use(jsonContentTypeMiddleware())
	if o.rps > 0 {
		r.Use(newIPRateLimiter(o.rps, o.burst, m).middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("", apiKeyMiddleware(publicAPIKey))

	auth := api.Group("/auth")
	auth.POST("/signup", authH.SignUp)
	auth.POST("/signin", authH.SignIn)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/signout", authH.SignOut)

	protected := api.Group("", JWTAuthMiddleware(jwtSvc))
	protected.GET("/auth/user", authH.CurrentUser)
	protected.GET("/profiles/:id", authH.GetProfile)

	projects := protected.Group("/projects")
	projects.POST("", projectH.Create)
	projects.GET("", projectH.List)
	projects.GET("/:id", projectH.Get)
	projects.PATCH("/:id", projectH.Update)
	projects.DELETE("/:id", projectH.Delete)
	projects.POST("/:id/members", projectH.AddMember)
	projects.DELETE("/:id/members/:user_id", projectH.RemoveMember)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// apiKeyMiddleware exige la clave publica en el header apikey cuando esta configurada.
func apiKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader("apikey")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
