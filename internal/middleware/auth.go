package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

const (
	ctxUser     = "user"
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// Authenticate resolves the bearer token to a live user and stores it in
// the context.
func Authenticate(tokens *utils.TokenService, users repository.UserRepository, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "No autorizado para acceder a esta ruta")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "No autorizado para acceder a esta ruta")
			return
		}

		subject, err := tokens.Verify(tokenString)
		if errors.Is(err, utils.ErrExpiredToken) {
			abort(c, http.StatusUnauthorized, "Token expirado")
			return
		}
		if err != nil {
			abort(c, http.StatusUnauthorized, "Token inválido")
			return
		}
		userID, err := primitive.ObjectIDFromHex(subject)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Token inválido")
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			abort(c, http.StatusUnauthorized, "Usuario no encontrado")
			return
		}
		if err != nil {
			logger.Error("auth user lookup failed", "user_id", subject, "error", err)
			abort(c, http.StatusInternalServerError, "Error en la autenticación")
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxUserID, user.ID)
		c.Set(ctxUserRole, user.Role)
		c.Next()
	}
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "No autorizado para acceder a esta ruta")
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "No tiene permiso para acceder a esta ruta")
	}
}
