package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/service"
)

const (
	authUserKey      = "auth_user"
	ownedResourceKey = "owned_resource"
)

// AccessResolver valida un access token y carga al usuario vigente.
type AccessResolver interface {
	ResolveAccessToken(ctx context.Context, token string) (domain.User, error)
}

// OwnedResource es un recurso con campos de propiedad consultables.
type OwnedResource interface {
	OwnerOf(field string) (string, bool)
}

// ResourceLoader carga el recurso por id; un recurso inexistente debe
// devolver un error que envuelva service.ErrNotFound.
type ResourceLoader func(ctx context.Context, id string) (OwnedResource, error)

// AuthGate agrupa los middlewares de autenticación y autorización.
type AuthGate struct {
	logger   *zap.Logger
	resolver AccessResolver
}

func NewAuthGate(logger *zap.Logger, resolver AccessResolver) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{logger: logger, resolver: resolver}
}

// Authenticate exige un bearer token válido de un usuario activo.
func (g *AuthGate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			c.Abort()
			return
		}

		user, err := g.resolver.ResolveAccessToken(c.Request.Context(), token)
		if err != nil {
			status, msg := authFailure(err)
			if status == http.StatusInternalServerError {
				g.logger.Error("resolve access token failed", zap.Error(err))
			}
			c.JSON(status, gin.H{"error": msg})
			c.Abort()
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// OptionalAuth adjunta el usuario si el token es válido y nunca bloquea.
func (g *AuthGate) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := g.resolver.ResolveAccessToken(c.Request.Context(), token); err == nil {
				c.Set(authUserKey, user)
			}
		}
		c.Next()
	}
}

// Authorize deja pasar solo a los roles indicados.
func Authorize(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		c.Abort()
	}
}

// CheckOwnership carga el recurso indicado por param y exige que el usuario
// sea su dueño según ownerField, salvo que sea admin.
func CheckOwnership(param string, loader ResourceLoader, ownerField string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		resource, err := loader(c.Request.Context(), c.Param(param))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
			c.Abort()
			return
		}

		owner, ok := resource.OwnerOf(ownerField)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
			return
		}
		if owner != user.ID && user.Role != domain.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to access this resource"})
			c.Abort()
			return
		}

		c.Set(ownedResourceKey, resource)
		c.Next()
	}
}

// CurrentUser obtiene el usuario adjuntado por el gate.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(authUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized, "user not found"
	case errors.Is(err, service.ErrAccountDeactivated):
		return http.StatusUnauthorized, "account deactivated"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
