package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/middleware"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/services"
)

const genericError = "Error interno del servidor"

// envelope is the body of every API response.
type envelope struct {
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	User    *models.Profile `json:"user,omitempty"`
	Code    string          `json:"code,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindBadRequest:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// fail writes err as an error envelope. Messages of *services.Error are
// user-facing; anything else is reported generically.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusFor(kind)

	env := envelope{Success: false, Error: genericError}
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		env.Error = svcErr.Message
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.logger.Error("request failed",
			"request_id", middleware.RequestID(c),
			"route", c.FullPath(),
			"kind", kind.String(),
			"error", err,
		)
		if h.devMode {
			env.Detail = err.Error()
		}
	}
	c.JSON(status, env)
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.fail(c, services.BadRequest(msg))
}

// paramID parses an ObjectID path parameter.
func (h *Handler) paramID(c *gin.Context, name, invalidMsg string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		h.badRequest(c, invalidMsg)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser is only called behind middleware.Authenticate.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.fail(c, services.Unauthorized("No autorizado para acceder a esta ruta"))
		return nil, false
	}
	return user, true
}
