package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

const invalidBody = "Formato de solicitud inválido"

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Specialty string `json:"specialty"`
}

// phoneRequest accepts both field names used by the web client.
type phoneRequest struct {
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phoneNumber"`
}

func (p phoneRequest) phone() string {
	if p.Phone != "" {
		return p.Phone
	}
	return p.PhoneNumber
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Role:      req.Role,
		Specialty: req.Specialty,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, envelope{
		Success: true,
		Data:    user.Profile(),
		Message: "Usuario registrado. Se ha enviado un código de verificación a su teléfono",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		phoneRequest
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	if req.phone() == "" || req.Password == "" {
		h.badRequest(c, "Teléfono y contraseña son obligatorios")
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), req.phone(), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Token: session.Token, User: session.User.Profile()})
}

func (h *Handler) VerifyCode(c *gin.Context) {
	var req struct {
		phoneRequest
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	if req.phone() == "" || req.Code == "" {
		h.badRequest(c, "Teléfono y código son obligatorios")
		return
	}

	session, err := h.Auth.VerifyCode(c.Request.Context(), req.phone(), req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Cuenta verificada correctamente",
		Token:   session.Token,
		User:    session.User.Profile(),
	})
}

// RequestPasswordReset texts a reset code. The code is echoed back only in
// development mode.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	if req.phone() == "" {
		h.badRequest(c, "El número de teléfono es obligatorio")
		return
	}

	code, err := h.Auth.RequestPasswordReset(c.Request.Context(), req.phone())
	if err != nil {
		h.fail(c, err)
		return
	}
	env := envelope{Success: true, Message: "Se ha enviado un código de recuperación a su teléfono"}
	if h.devMode {
		env.Code = code
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		phoneRequest
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	password := req.NewPassword
	if password == "" {
		password = req.Password
	}
	if req.phone() == "" || req.Code == "" {
		h.badRequest(c, "Teléfono y código son obligatorios")
		return
	}

	if err := h.Auth.ConfirmPasswordReset(c.Request.Context(), req.phone(), req.Code, password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Contraseña actualizada correctamente"})
}

func (h *Handler) Me(c *gin.Context) {
	current, ok := h.currentUser(c)
	if !ok {
		return
	}
	user, err := h.Auth.Me(c.Request.Context(), current.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	current, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req struct {
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
		Email     *string `json:"email"`
		Specialty *string `json:"specialty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}

	user, err := h.Auth.UpdateProfile(c.Request.Context(), current.ID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Specialty: req.Specialty,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// ListUsers is the admin view of every account, optionally filtered by ?role=.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Auth.ListUsers(c.Request.Context(), c.Query("role"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}
