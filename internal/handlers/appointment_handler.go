package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

const invalidAppointmentID = "ID de cita inválido"

type paymentRequest struct {
	Amount *float64 `json:"amount"`
	Method string   `json:"method"`
}

type createAppointmentRequest struct {
	DoctorID string          `json:"doctorId"`
	Doctor   string          `json:"doctor"`
	Date     string          `json:"date"`
	Type     string          `json:"type"`
	Reason   string          `json:"reason"`
	Symptoms []string        `json:"symptoms"`
	Notes    string          `json:"notes"`
	Payment  *paymentRequest `json:"payment"`
}

type updateAppointmentRequest struct {
	Date          *string   `json:"date"`
	Type          *string   `json:"type"`
	Reason        *string   `json:"reason"`
	Symptoms      *[]string `json:"symptoms"`
	Notes         *string   `json:"notes"`
	Status        *string   `json:"status"`
	AIPreAnalysis *string   `json:"aiPreAnalysis"`
}

// parseDate accepts RFC3339 timestamps.
func parseDate(v string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CreateAppointment books an appointment for the authenticated patient.
func (h *Handler) CreateAppointment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}

	doctorHex := req.DoctorID
	if doctorHex == "" {
		doctorHex = req.Doctor
	}
	doctorID, err := primitive.ObjectIDFromHex(doctorHex)
	if err != nil {
		h.badRequest(c, "Médico no válido")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		h.badRequest(c, "Formato de fecha inválido, use RFC3339")
		return
	}

	in := services.CreateAppointmentInput{
		DoctorID: doctorID,
		Date:     date,
		Type:     req.Type,
		Reason:   req.Reason,
		Symptoms: req.Symptoms,
		Notes:    req.Notes,
	}
	if req.Payment != nil {
		in.Payment = &services.PaymentInput{Amount: req.Payment.Amount, Method: req.Payment.Method}
	}

	view, err := h.Appointments.Create(c.Request.Context(), user, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, view)
}

// GetAppointments lists every appointment the caller takes part in.
func (h *Handler) GetAppointments(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	views, err := h.Appointments.ListFor(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.paramID(c, "id", invalidAppointmentID)
	if !ok {
		return
	}
	view, err := h.Appointments.GetView(c.Request.Context(), user, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.paramID(c, "id", invalidAppointmentID)
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}

	patch := services.AppointmentPatch{
		Type:          req.Type,
		Reason:        req.Reason,
		Symptoms:      req.Symptoms,
		Notes:         req.Notes,
		Status:        req.Status,
		AIPreAnalysis: req.AIPreAnalysis,
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok {
			h.badRequest(c, "Formato de fecha inválido, use RFC3339")
			return
		}
		patch.Date = &date
	}

	view, err := h.Appointments.Update(c.Request.Context(), user.ID, id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.paramID(c, "id", invalidAppointmentID)
	if !ok {
		return
	}
	apt, err := h.Appointments.Cancel(c.Request.Context(), user.ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, apt)
}
