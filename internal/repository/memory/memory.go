// Package memory holds map-backed repositories with the same uniqueness
// rules as the Mongo indexes. Values are copied in and out so callers
// never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
)

// New returns a fresh set of empty repositories.
func New() repository.Repositories {
	return repository.Repositories{
		Users:          NewUserRepository(),
		Appointments:   NewAppointmentRepository(),
		MedicalHistory: NewMedicalHistoryRepository(),
	}
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]models.User)}
}

// conflicts must be called with the lock held.
func (r *UserRepository) conflicts(u *models.User) bool {
	for id, existing := range r.users {
		if id == u.ID {
			continue
		}
		if existing.Phone == u.Phone {
			return true
		}
		if u.Email != "" && existing.Email == u.Email {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, ok := r.users[user.ID]; ok || r.conflicts(user) {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepository) first(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.first(func(u models.User) bool { return u.Phone == phone })
}

func (r *UserRepository) FindByPhoneAndCode(_ context.Context, phone, code string, now time.Time) (*models.User, error) {
	return r.first(func(u models.User) bool {
		return u.Phone == phone && code != "" && u.VerificationCode == code &&
			u.VerificationCodeExpires != nil && now.Before(*u.VerificationCodeExpires)
	})
}

func (r *UserRepository) FindByPhoneAndResetCode(_ context.Context, phone, code string, now time.Time) (*models.User, error) {
	return r.first(func(u models.User) bool {
		return u.Phone == phone && code != "" && u.ResetPasswordCode == code &&
			u.ResetPasswordExpires != nil && now.Before(*u.ResetPasswordExpires)
	})
}

func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.conflicts(user) {
		return repository.ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) ListByRole(_ context.Context, role models.Role, specialty string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0)
	for _, u := range r.users {
		if u.Role == role && (specialty == "" || u.Specialty == specialty) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

func (r *UserRepository) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type AppointmentRepository struct {
	mu   sync.RWMutex
	apts map[primitive.ObjectID]models.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{apts: make(map[primitive.ObjectID]models.Appointment)}
}

func cloneAppointment(a models.Appointment) models.Appointment {
	if a.Symptoms != nil {
		a.Symptoms = append([]string(nil), a.Symptoms...)
	}
	if a.Payment != nil {
		p := *a.Payment
		a.Payment = &p
	}
	return a
}

func (r *AppointmentRepository) Create(_ context.Context, apt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if _, ok := r.apts[apt.ID]; ok {
		return repository.ErrDuplicate
	}
	r.apts[apt.ID] = cloneAppointment(*apt)
	return nil
}

func (r *AppointmentRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a = cloneAppointment(a)
	return &a, nil
}

func (r *AppointmentRepository) filter(match func(models.Appointment) bool, ascending bool) []models.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Appointment, 0)
	for _, a := range r.apts {
		if match(a) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func (r *AppointmentRepository) ListByParticipant(_ context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool { return a.IsParticipant(userID) }, false), nil
}

func (r *AppointmentRepository) ListByPatient(_ context.Context, patientID primitive.ObjectID) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool { return a.PatientID == patientID }, false), nil
}

func (r *AppointmentRepository) ListByDoctorBetween(_ context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool {
		return a.DoctorID == doctorID && !a.Date.Before(from) && a.Date.Before(to)
	}, true), nil
}

func (r *AppointmentRepository) ListByDoctorAndPaymentStatus(_ context.Context, doctorID primitive.ObjectID, status models.PaymentStatus) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool {
		return a.DoctorID == doctorID && a.Payment != nil && a.Payment.Status == status
	}, false), nil
}

func (r *AppointmentRepository) ListDueForReminder(_ context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool {
		return a.Status == models.StatusScheduled && a.ReminderSentAt == nil &&
			a.Date.After(from) && !a.Date.After(to)
	}, true), nil
}

func (r *AppointmentRepository) ExistsBetween(_ context.Context, patientID, doctorID primitive.ObjectID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.apts {
		if a.PatientID == patientID && a.DoctorID == doctorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *AppointmentRepository) Update(_ context.Context, apt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apts[apt.ID]; !ok {
		return repository.ErrNotFound
	}
	r.apts[apt.ID] = cloneAppointment(*apt)
	return nil
}

func (r *AppointmentRepository) MarkReminderSent(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ReminderSentAt = &at
	r.apts[id] = a
	return nil
}

type MedicalHistoryRepository struct {
	mu        sync.RWMutex
	histories map[primitive.ObjectID]models.MedicalHistory // keyed by patient
}

func NewMedicalHistoryRepository() *MedicalHistoryRepository {
	return &MedicalHistoryRepository{histories: make(map[primitive.ObjectID]models.MedicalHistory)}
}

func cloneHistory(h models.MedicalHistory) models.MedicalHistory {
	h.Allergies = append([]string{}, h.Allergies...)
	h.Conditions = append([]models.Condition{}, h.Conditions...)
	h.Medications = append([]models.Medication{}, h.Medications...)
	h.Surgeries = append([]models.Surgery{}, h.Surgeries...)
	h.FamilyHistory = append([]models.FamilyHistoryEntry{}, h.FamilyHistory...)
	h.Documents = append([]models.MedicalDocument{}, h.Documents...)
	h.ConsultationNotes = append([]models.ConsultationNote{}, h.ConsultationNotes...)
	return h
}

func (r *MedicalHistoryRepository) FindByPatient(_ context.Context, patientID primitive.ObjectID) (*models.MedicalHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.histories[patientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	h = cloneHistory(h)
	return &h, nil
}

func (r *MedicalHistoryRepository) Create(_ context.Context, history *models.MedicalHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.histories[history.PatientID]; ok {
		return repository.ErrDuplicate
	}
	if history.ID.IsZero() {
		history.ID = primitive.NewObjectID()
	}
	history.Normalize()
	r.histories[history.PatientID] = cloneHistory(*history)
	return nil
}

func (r *MedicalHistoryRepository) update(patientID primitive.ObjectID, now time.Time, mutate func(*models.MedicalHistory)) (*models.MedicalHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histories[patientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	h = cloneHistory(h)
	mutate(&h)
	h.UpdatedAt = now
	r.histories[patientID] = h
	out := cloneHistory(h)
	return &out, nil
}

func (r *MedicalHistoryRepository) PushDocument(_ context.Context, patientID primitive.ObjectID, doc models.MedicalDocument, now time.Time) (*models.MedicalHistory, error) {
	return r.update(patientID, now, func(h *models.MedicalHistory) {
		h.Documents = append(h.Documents, doc)
	})
}

func (r *MedicalHistoryRepository) PushConsultationNote(_ context.Context, patientID primitive.ObjectID, note models.ConsultationNote, now time.Time) (*models.MedicalHistory, error) {
	return r.update(patientID, now, func(h *models.MedicalHistory) {
		h.ConsultationNotes = append(h.ConsultationNotes, note)
	})
}

var (
	_ repository.UserRepository           = (*UserRepository)(nil)
	_ repository.AppointmentRepository    = (*AppointmentRepository)(nil)
	_ repository.MedicalHistoryRepository = (*MedicalHistoryRepository)(nil)
)
