package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

const invalidPatientID = "ID de paciente inválido"

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.Auth.ListDoctors(c.Request.Context(), "")
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, doctors)
}

func (h *Handler) ListDoctorsBySpecialty(c *gin.Context) {
	doctors, err := h.Auth.ListDoctors(c.Request.Context(), c.Param("specialty"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, doctors)
}

func (h *Handler) TodaysAppointments(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	views, err := h.Appointments.TodaysAppointments(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}

func (h *Handler) Income(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	income, err := h.Appointments.CompletedIncome(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, income)
}

func (h *Handler) PatientMedicalHistory(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	patientID, ok := h.paramID(c, "id", invalidPatientID)
	if !ok {
		return
	}
	history, err := h.History.GetForDoctor(c.Request.Context(), user.ID, patientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, history)
}

func (h *Handler) AddConsultationNote(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	patientID, ok := h.paramID(c, "id", invalidPatientID)
	if !ok {
		return
	}
	var req struct {
		Symptoms  []string `json:"symptoms"`
		Diagnosis string   `json:"diagnosis"`
		Treatment string   `json:"treatment"`
		Notes     string   `json:"notes"`
		AnalyzeAI bool     `json:"analyzeWithAI"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}

	history, err := h.History.AddConsultationNote(c.Request.Context(), user.ID, patientID, services.NoteInput{
		Symptoms:  req.Symptoms,
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
		AnalyzeAI: req.AnalyzeAI,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, history)
}
