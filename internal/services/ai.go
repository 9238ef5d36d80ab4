package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/metrics"
)

var aiTracer = otel.Tracer("diagnosia.internal.services.ai")

// ErrAnalysisFailed wraps every provider failure.
var ErrAnalysisFailed = errors.New("ai analysis failed")

const (
	medicalAssistantPrompt  = "Eres un asistente médico AI. Proporciona información médica precisa y siempre recuerda incluir un descargo de responsabilidad cuando sea necesario."
	imageAssistantPrompt    = "Eres un asistente médico especializado en análisis de imágenes médicas. Incluye un descargo de responsabilidad cuando sea necesario."
	documentAssistantPrompt = "Eres un asistente médico especializado en análisis de documentos médicos. Incluye un descargo de responsabilidad cuando sea necesario."

	documentPromptPrefix = "Por favor, analiza el siguiente documento médico y proporciona un resumen y puntos clave: "
	symptomsPromptPrefix = "Analiza los siguientes síntomas, indica posibles causas y recomienda si es necesario consultar a un médico: "
	defaultImagePrompt   = "Describe los hallazgos relevantes de esta imagen médica."
)

// Analysis is the assistant message returned by the provider.
type Analysis struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessage is one prior turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ImageInput carries inline image bytes. The provider only accepts inline
// data for uploaded images, so there is no remote URI variant.
type ImageInput struct {
	Data     []byte
	MIMEType string
}

// Analyzer is the AI analysis gateway used by the handlers and services.
type Analyzer interface {
	AnalyzeText(ctx context.Context, prompt string) (*Analysis, error)
	AnalyzeSymptoms(ctx context.Context, symptoms string) (*Analysis, error)
	AnalyzeImage(ctx context.Context, img ImageInput, prompt string) (*Analysis, error)
	AnalyzeDocument(ctx context.Context, text string) (*Analysis, error)
	Chat(ctx context.Context, history []ChatMessage, message string) (*Analysis, error)
}

type completionRequest struct {
	System      string
	Temperature float32 // negative leaves the model default
	MaxTokens   int32
	History     []ChatMessage
	Prompt      string
	Image       *ImageInput
}

type completer interface {
	complete(ctx context.Context, req completionRequest) (string, error)
}

// GeminiAnalyzer implements Analyzer on top of Google's Gemini API.
type GeminiAnalyzer struct {
	provider completer
	client   *genai.Client
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewGeminiAnalyzer builds an analyzer. An empty apiKey yields an analyzer
// whose every call fails with ErrAnalysisFailed.
func NewGeminiAnalyzer(ctx context.Context, apiKey, modelID string, logger *logging.Logger, m *metrics.Metrics) (*GeminiAnalyzer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &GeminiAnalyzer{logger: logger, metrics: m}
	if strings.TrimSpace(apiKey) == "" {
		logger.Warn("GEMINI_API_KEY not set, AI analysis is disabled")
		return a, nil
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	a.client = client
	a.provider = &geminiCompleter{client: client, modelID: modelID}
	return a, nil
}

// Close releases the underlying client.
func (a *GeminiAnalyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *GeminiAnalyzer) run(ctx context.Context, op string, req completionRequest) (*Analysis, error) {
	ctx, span := aiTracer.Start(ctx, "ai."+op)
	defer span.End()
	span.SetAttributes(attribute.String("ai.operation", op))

	if a.provider == nil {
		err := fmt.Errorf("%w: provider not configured", ErrAnalysisFailed)
		a.metrics.ObserveAI(op, err)
		return nil, err
	}
	text, err := a.provider.complete(ctx, req)
	a.metrics.ObserveAI(op, err)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("ai request failed", "operation", op, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return &Analysis{Role: "assistant", Content: text}, nil
}

func (a *GeminiAnalyzer) AnalyzeText(ctx context.Context, prompt string) (*Analysis, error) {
	return a.run(ctx, "analyze_text", completionRequest{
		System:      medicalAssistantPrompt,
		Temperature: 0.7,
		Prompt:      prompt,
	})
}

func (a *GeminiAnalyzer) AnalyzeSymptoms(ctx context.Context, symptoms string) (*Analysis, error) {
	return a.run(ctx, "analyze_symptoms", completionRequest{
		System:      medicalAssistantPrompt,
		Temperature: 0.7,
		Prompt:      symptomsPromptPrefix + symptoms,
	})
}

func (a *GeminiAnalyzer) AnalyzeImage(ctx context.Context, img ImageInput, prompt string) (*Analysis, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrAnalysisFailed)
	}
	if img.MIMEType == "" {
		img.MIMEType = http.DetectContentType(img.Data)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultImagePrompt
	}
	return a.run(ctx, "analyze_image", completionRequest{
		System:      imageAssistantPrompt,
		Temperature: -1,
		MaxTokens:   500,
		Prompt:      prompt,
		Image:       &img,
	})
}

func (a *GeminiAnalyzer) AnalyzeDocument(ctx context.Context, text string) (*Analysis, error) {
	return a.run(ctx, "analyze_document", completionRequest{
		System:      documentAssistantPrompt,
		Temperature: 0.5,
		Prompt:      documentPromptPrefix + text,
	})
}

func (a *GeminiAnalyzer) Chat(ctx context.Context, history []ChatMessage, message string) (*Analysis, error) {
	return a.run(ctx, "chat", completionRequest{
		System:      medicalAssistantPrompt,
		Temperature: 0.7,
		History:     history,
		Prompt:      message,
	})
}

func messageParts(req completionRequest) []genai.Part {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if img := req.Image; img != nil && len(img.Data) > 0 {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

type geminiCompleter struct {
	client  *genai.Client
	modelID string
}

func (g *geminiCompleter) complete(ctx context.Context, req completionRequest) (string, error) {
	model := g.client.GenerativeModel(g.modelID)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	cs := model.StartChat()
	for _, msg := range req.History {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == "system" {
			continue
		}
		role := "user"
		if msg.Role == "assistant" || msg.Role == "model" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}

	resp, err := cs.SendMessage(ctx, messageParts(req)...)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("gemini returned empty content")
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return strings.TrimSpace(out.String()), nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
