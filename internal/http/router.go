package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	gate *AuthGate,
	authH *AuthHandler,
	postH *PostHandler,
	realtime http.Handler,
) *gin.Engine {
	r := gin.New()

	// Middlewares básicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/verify-email", authH.VerifyEmail)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)
	auth.POST("/logout", gate.Authenticate(), authH.Logout)
	auth.GET("/me", gate.Authenticate(), authH.Me)
	auth.POST("/send-verification", gate.Authenticate(), authH.SendVerification)
	auth.PATCH("/change-password", gate.Authenticate(), authH.ChangePassword)

	posts := api.Group("/posts")
	posts.GET("/:id", gate.OptionalAuth(), postH.GetPost)
	posts.POST("", gate.Authenticate(), postH.CreatePost)
	posts.DELETE("/:id", gate.Authenticate(), CheckOwnership("id", postH.LoadPost, "author_id"), postH.DeletePost)
	posts.POST("/:id/comments", gate.Authenticate(), postH.AddComment)

	admin := api.Group("/admin", gate.Authenticate(), Authorize(domain.RoleAdmin))
	admin.PATCH("/users/:id/deactivate", authH.DeactivateUser)

	if realtime != nil {
		r.GET("/ws", gin.WrapH(realtime))
	}

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
