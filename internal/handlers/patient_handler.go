package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

func (h *Handler) GetMedicalHistory(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	history, err := h.History.GetOrCreate(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, history)
}

// AddDocument accepts either JSON {title, type, fileUrl} or a multipart form
// with the same fields plus a "file" part.
func (h *Handler) AddDocument(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var in services.DocumentInput
	if isMultipart(c) {
		file, err := h.readUpload(c, "file")
		if err != nil {
			h.uploadError(c, err)
			return
		}
		in = services.DocumentInput{
			Title:   c.PostForm("title"),
			Type:    c.PostForm("type"),
			FileURL: c.PostForm("fileUrl"),
			File:    file,
		}
	} else {
		var req struct {
			Title   string `json:"title"`
			Type    string `json:"type"`
			FileURL string `json:"fileUrl"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, invalidBody)
			return
		}
		in = services.DocumentInput{Title: req.Title, Type: req.Type, FileURL: req.FileURL}
	}

	history, err := h.History.AddDocument(c.Request.Context(), user.ID, user.ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, history)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	docs, err := h.History.ListDocuments(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, docs)
}

func (h *Handler) GetPatientAppointments(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	views, err := h.Appointments.ListForPatient(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}

func (h *Handler) GetPaymentHistory(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	views, err := h.Appointments.PaymentHistory(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, views)
}
