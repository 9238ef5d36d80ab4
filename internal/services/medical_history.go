package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
)

// UploadedFile is a file received with a document upload.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type DocumentInput struct {
	Title   string
	Type    string
	FileURL string
	File    *UploadedFile
}

type NoteInput struct {
	Symptoms  []string
	Diagnosis string
	Treatment string
	Notes     string
	AnalyzeAI bool
}

type MedicalHistoryService struct {
	histories    repository.MedicalHistoryRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	store        DocumentStore
	analyzer     Analyzer
	logger       *logging.Logger
	now          func() time.Time
}

func NewMedicalHistoryService(
	histories repository.MedicalHistoryRepository,
	appointments repository.AppointmentRepository,
	users repository.UserRepository,
	store DocumentStore,
	analyzer Analyzer,
	logger *logging.Logger,
) *MedicalHistoryService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MedicalHistoryService{
		histories:    histories,
		appointments: appointments,
		users:        users,
		store:        store,
		analyzer:     analyzer,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *MedicalHistoryService) WithClock(now func() time.Time) *MedicalHistoryService {
	s.now = now
	return s
}

// GetOrCreate returns the patient's history, creating an empty one on first
// access. Two concurrent first reads may both try to insert; the loser of
// the unique index race re-reads the winner's record.
func (s *MedicalHistoryService) GetOrCreate(ctx context.Context, patientID primitive.ObjectID) (*models.MedicalHistory, error) {
	h, err := s.histories.FindByPatient(ctx, patientID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, Internal("Error al obtener el historial médico", err)
	}

	h = models.NewMedicalHistory(patientID, s.now())
	if err := s.histories.Create(ctx, h); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, Internal("Error al obtener el historial médico", err)
		}
		if h, err = s.histories.FindByPatient(ctx, patientID); err != nil {
			return nil, Internal("Error al obtener el historial médico", err)
		}
	}
	return h, nil
}

// AddDocument appends a document to the patient's history. The file, when
// present, is uploaded to the document store first.
func (s *MedicalHistoryService) AddDocument(ctx context.Context, patientID, uploaderID primitive.ObjectID, in DocumentInput) (*models.MedicalHistory, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, BadRequest("El título del documento es obligatorio")
	}
	docType := models.DocumentType(strings.TrimSpace(in.Type))
	if docType == "" {
		docType = models.DocOther
	}
	if !docType.Valid() {
		return nil, BadRequest("Tipo de documento inválido")
	}

	now := s.now()
	fileURL := strings.TrimSpace(in.FileURL)
	if in.File != nil {
		if len(in.File.Data) == 0 {
			return nil, BadRequest("El archivo está vacío")
		}
		if s.store == nil {
			return nil, Unavailable("El almacenamiento de documentos no está disponible", ErrStorageDisabled)
		}
		url, err := s.store.Put(ctx, DocumentKey(patientID.Hex(), in.File.Name, now), in.File.ContentType, in.File.Data)
		if errors.Is(err, ErrStorageDisabled) {
			return nil, Unavailable("El almacenamiento de documentos no está disponible", err)
		}
		if err != nil {
			return nil, Unavailable("Error al subir el documento", err)
		}
		fileURL = url
	}
	if fileURL == "" {
		return nil, BadRequest("Se requiere un archivo o fileUrl")
	}

	if _, err := s.GetOrCreate(ctx, patientID); err != nil {
		return nil, err
	}
	doc := models.MedicalDocument{
		Title:      title,
		Type:       docType,
		FileURL:    fileURL,
		UploadDate: now,
		UploadedBy: uploaderID,
	}
	h, err := s.histories.PushDocument(ctx, patientID, doc, now)
	if err != nil {
		return nil, Internal("Error al subir el documento", err)
	}
	return h, nil
}

func (s *MedicalHistoryService) ListDocuments(ctx context.Context, patientID primitive.ObjectID) ([]models.MedicalDocument, error) {
	h, err := s.GetOrCreate(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return h.Documents, nil
}

func (s *MedicalHistoryService) checkDoctorAccess(ctx context.Context, doctorID, patientID primitive.ObjectID) error {
	patient, err := s.users.FindByID(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && patient.Role != models.RolePatient) {
		return NotFound("Paciente no encontrado")
	}
	if err != nil {
		return Internal("Error al obtener el paciente", err)
	}
	ok, err := s.appointments.ExistsBetween(ctx, patientID, doctorID)
	if err != nil {
		return Internal("Error al verificar el acceso", err)
	}
	if !ok {
		return Forbidden("No tiene citas con este paciente")
	}
	return nil
}

// GetForDoctor returns a patient's history to a doctor who has seen them.
func (s *MedicalHistoryService) GetForDoctor(ctx context.Context, doctorID, patientID primitive.ObjectID) (*models.MedicalHistory, error) {
	if err := s.checkDoctorAccess(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, patientID)
}

// AddConsultationNote appends a doctor's note. When requested, the note's
// symptoms are analysed first; a failed analysis leaves aiAnalysis empty.
func (s *MedicalHistoryService) AddConsultationNote(ctx context.Context, doctorID, patientID primitive.ObjectID, in NoteInput) (*models.MedicalHistory, error) {
	if err := s.checkDoctorAccess(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	symptoms := cleanSymptoms(in.Symptoms)
	diagnosis := strings.TrimSpace(in.Diagnosis)
	if len(symptoms) == 0 && diagnosis == "" && strings.TrimSpace(in.Notes) == "" {
		return nil, BadRequest("La nota debe incluir síntomas, diagnóstico o notas")
	}

	now := s.now()
	note := models.ConsultationNote{
		Date:      now,
		DoctorID:  doctorID,
		Symptoms:  symptoms,
		Diagnosis: diagnosis,
		Treatment: strings.TrimSpace(in.Treatment),
		Notes:     strings.TrimSpace(in.Notes),
	}
	if in.AnalyzeAI && len(symptoms) > 0 && s.analyzer != nil {
		analysis, err := s.analyzer.AnalyzeSymptoms(ctx, strings.Join(symptoms, ", "))
		if err != nil {
			s.logger.Warn("consultation note analysis skipped", "patient_id", patientID.Hex(), "error", err)
		} else {
			note.AIAnalysis = analysis.Content
		}
	}

	if _, err := s.GetOrCreate(ctx, patientID); err != nil {
		return nil, err
	}
	h, err := s.histories.PushConsultationNote(ctx, patientID, note, now)
	if err != nil {
		return nil, Internal("Error al guardar la nota de consulta", err)
	}
	return h, nil
}
