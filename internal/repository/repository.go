// Package repository persists users, appointments and medical histories.
// Each entity has an interface so services never depend on the driver.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/models"
)

var (
	ErrNotFound  = errors.New("repository: document not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	// FindByPhoneAndCode matches an unexpired verification code.
	FindByPhoneAndCode(ctx context.Context, phone, code string, now time.Time) (*models.User, error)
	// FindByPhoneAndResetCode matches an unexpired password-reset code.
	FindByPhoneAndResetCode(ctx context.Context, phone, code string, now time.Time) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ListByRole filters by specialty too when specialty is not empty.
	ListByRole(ctx context.Context, role models.Role, specialty string) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, apt *models.Appointment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// ListByParticipant returns appointments where the user is patient or doctor.
	ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error)
	ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]models.Appointment, error)
	// ListByDoctorBetween returns the doctor's appointments with from <= date < to.
	ListByDoctorBetween(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error)
	ListByDoctorAndPaymentStatus(ctx context.Context, doctorID primitive.ObjectID, status models.PaymentStatus) ([]models.Appointment, error)
	// ListDueForReminder returns scheduled, not yet reminded appointments with from < date <= to.
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	ExistsBetween(ctx context.Context, patientID, doctorID primitive.ObjectID) (bool, error)
	Update(ctx context.Context, apt *models.Appointment) error
	MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type MedicalHistoryRepository interface {
	FindByPatient(ctx context.Context, patientID primitive.ObjectID) (*models.MedicalHistory, error)
	Create(ctx context.Context, history *models.MedicalHistory) error
	PushDocument(ctx context.Context, patientID primitive.ObjectID, doc models.MedicalDocument, now time.Time) (*models.MedicalHistory, error)
	PushConsultationNote(ctx context.Context, patientID primitive.ObjectID, note models.ConsultationNote, now time.Time) (*models.MedicalHistory, error)
}

// Repositories bundles the three stores handed to the services.
type Repositories struct {
	Users          UserRepository
	Appointments   AppointmentRepository
	MedicalHistory MedicalHistoryRepository
}
