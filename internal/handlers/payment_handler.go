package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessPayment records a payment against one of the caller's appointments.
func (h *Handler) ProcessPayment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req struct {
		AppointmentID string  `json:"appointmentId"`
		Amount        float64 `json:"amount"`
		Method        string  `json:"method"`
		TransactionID string  `json:"transactionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	id, err := primitive.ObjectIDFromHex(req.AppointmentID)
	if err != nil {
		h.badRequest(c, invalidAppointmentID)
		return
	}

	apt, err := h.Appointments.ProcessPayment(c.Request.Context(), user.ID, id, req.Amount, req.Method, req.TransactionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, apt)
}

// GeneratePaymentQR issues a QR payload for a pending payment.
func (h *Handler) GeneratePaymentQR(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req struct {
		AppointmentID string  `json:"appointmentId"`
		Amount        float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	id, err := primitive.ObjectIDFromHex(req.AppointmentID)
	if err != nil {
		h.badRequest(c, invalidAppointmentID)
		return
	}

	qr, err := h.Appointments.GeneratePaymentQR(c.Request.Context(), user.ID, id, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, qr)
}

// ConfirmPayment is the doctor's confirmation of a pending cash or QR payment.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.paramID(c, "appointmentId", invalidAppointmentID)
	if !ok {
		return
	}
	apt, err := h.Appointments.ConfirmPayment(c.Request.Context(), user.ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, apt)
}
