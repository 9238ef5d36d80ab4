package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

const maxChatHistory = 20

func (h *Handler) analysisFailed(c *gin.Context, msg string, err error) {
	h.fail(c, services.Internal(msg, err))
}

func (h *Handler) AnalyzeText(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.badRequest(c, "El texto a analizar es obligatorio")
		return
	}
	analysis, err := h.Analyzer.AnalyzeText(c.Request.Context(), req.Prompt)
	if err != nil {
		h.analysisFailed(c, "Error al analizar texto", err)
		return
	}
	respond(c, http.StatusOK, analysis)
}

func (h *Handler) AnalyzeSymptoms(c *gin.Context) {
	var req struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, invalidBody)
		return
	}
	var symptoms []string
	for _, s := range req.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		h.badRequest(c, "Debe indicar al menos un síntoma")
		return
	}
	analysis, err := h.Analyzer.AnalyzeSymptoms(c.Request.Context(), strings.Join(symptoms, ", "))
	if err != nil {
		h.analysisFailed(c, "Error al analizar síntomas", err)
		return
	}
	respond(c, http.StatusOK, analysis)
}

// AnalyzeImage takes a multipart "image" part plus an optional "prompt".
func (h *Handler) AnalyzeImage(c *gin.Context) {
	if !isMultipart(c) {
		h.badRequest(c, "La imagen es obligatoria")
		return
	}
	file, err := h.readUpload(c, "image")
	if err != nil {
		h.uploadError(c, err)
		return
	}
	if file == nil {
		h.badRequest(c, "La imagen es obligatoria")
		return
	}
	if !strings.HasPrefix(file.ContentType, "image/") {
		h.badRequest(c, "El archivo debe ser una imagen")
		return
	}
	img := services.ImageInput{Data: file.Data, MIMEType: file.ContentType}
	prompt := c.PostForm("prompt")

	analysis, err := h.Analyzer.AnalyzeImage(c.Request.Context(), img, prompt)
	if err != nil {
		h.analysisFailed(c, "Error al analizar imagen", err)
		return
	}
	respond(c, http.StatusOK, analysis)
}

// AnalyzeDocument takes JSON {text} or a multipart form with a "text" field
// or a plain-text "document" part.
func (h *Handler) AnalyzeDocument(c *gin.Context) {
	var text string
	if isMultipart(c) {
		file, err := h.readUpload(c, "document")
		if err != nil {
			h.uploadError(c, err)
			return
		}
		text = c.PostForm("text")
		if strings.TrimSpace(text) == "" && file != nil && strings.HasPrefix(file.ContentType, "text/") {
			text = string(file.Data)
		}
	} else {
		var req struct {
			Text         string `json:"text"`
			DocumentText string `json:"documentText"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, invalidBody)
			return
		}
		text = req.Text
		if text == "" {
			text = req.DocumentText
		}
	}
	if strings.TrimSpace(text) == "" {
		h.badRequest(c, "El texto del documento es obligatorio")
		return
	}

	analysis, err := h.Analyzer.AnalyzeDocument(c.Request.Context(), text)
	if err != nil {
		h.analysisFailed(c, "Error al analizar documento", err)
		return
	}
	respond(c, http.StatusOK, analysis)
}

// Chat continues a conversation with the medical assistant. Only the most
// recent turns of history are forwarded.
func (h *Handler) Chat(c *gin.Context) {
	var req struct {
		Message string                 `json:"message"`
		History []services.ChatMessage `json:"history"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, `Formato inválido, se espera {"message": "..."}`)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.badRequest(c, "El mensaje no puede estar vacío")
		return
	}
	history := req.History
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}

	analysis, err := h.Analyzer.Chat(c.Request.Context(), history, req.Message)
	if err != nil {
		h.analysisFailed(c, "Error al procesar el mensaje", err)
		return
	}
	respond(c, http.StatusOK, analysis)
}
