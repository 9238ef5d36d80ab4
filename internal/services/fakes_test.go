package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
	"github.com/harentsoaR/diagnosia-api/internal/repository/memory"
	"github.com/harentsoaR/diagnosia-api/internal/utils"
)

type sentSMS struct {
	To   string
	Body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentSMS
	fail bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider down")
	}
	f.sent = append(f.sent, sentSMS{To: to, Body: body})
	return nil
}

func (f *fakeSender) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type fakeCompleter struct {
	requests []completionRequest
	reply    string
	err      error
}

func (f *fakeCompleter) complete(_ context.Context, req completionRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type fakeS3 struct {
	keys   []string
	bodies map[string][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	if f.bodies == nil {
		f.bodies = make(map[string][]byte)
	}
	f.keys = append(f.keys, *in.Key)
	f.bodies[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []AppointmentEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e AppointmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) types() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeAnalyzer struct {
	content string
	err     error
	calls   int
}

func (f *fakeAnalyzer) result() (*Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Analysis{Role: "assistant", Content: f.content}, nil
}

func (f *fakeAnalyzer) AnalyzeText(context.Context, string) (*Analysis, error) {
	return f.result()
}

func (f *fakeAnalyzer) AnalyzeSymptoms(context.Context, string) (*Analysis, error) {
	return f.result()
}

func (f *fakeAnalyzer) AnalyzeImage(context.Context, ImageInput, string) (*Analysis, error) {
	return f.result()
}

func (f *fakeAnalyzer) AnalyzeDocument(context.Context, string) (*Analysis, error) {
	return f.result()
}

func (f *fakeAnalyzer) Chat(context.Context, []ChatMessage, string) (*Analysis, error) {
	return f.result()
}

// fixture wires every service over in-memory repositories and fakes.
type fixture struct {
	now       time.Time
	repos     repository.Repositories
	sender    *fakeSender
	publisher *fakePublisher
	s3        *fakeS3
	analyzer  *fakeAnalyzer
	notifier  *NotificationService

	auth         *AuthService
	appointments *AppointmentService
	history      *MedicalHistoryService
	reminders    *ReminderJob
}

func newFixture() *fixture {
	f := &fixture{
		now:       time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC),
		repos:     memory.New(),
		sender:    &fakeSender{},
		publisher: &fakePublisher{},
		s3:        &fakeS3{},
		analyzer:  &fakeAnalyzer{content: "Posible resfriado común."},
	}
	clock := func() time.Time { return f.now }
	log := logging.Discard()

	f.notifier = NewNotificationService(f.sender, time.UTC, log, nil)
	tokens := utils.NewTokenService("test-secret", 24*time.Hour).WithClock(clock)
	store := NewS3Store(f.s3, "diagnosia-docs", "us-east-1", "", log)

	f.auth = NewAuthService(f.repos.Users, tokens, f.notifier, log).WithClock(clock)
	f.appointments = NewAppointmentService(f.repos.Users, f.repos.Appointments, f.notifier, f.publisher, time.UTC, log).WithClock(clock)
	f.history = NewMedicalHistoryService(f.repos.MedicalHistory, f.repos.Appointments, f.repos.Users, store, f.analyzer, log).WithClock(clock)
	f.reminders = NewReminderJob(f.repos.Users, f.repos.Appointments, f.notifier, time.Minute, time.UTC, log).WithClock(clock)
	return f
}

func (f *fixture) addUser(role models.Role, first, phone string) *models.User {
	u := &models.User{
		ID:         primitive.NewObjectID(),
		Role:       role,
		FirstName:  first,
		LastName:   "Test",
		Phone:      phone,
		IsVerified: true,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	if err := f.repos.Users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) addAppointment(patient, doctor *models.User, date time.Time, status models.AppointmentStatus) *models.Appointment {
	a := &models.Appointment{
		ID:        primitive.NewObjectID(),
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      date,
		Type:      models.TypeVirtual,
		Status:    status,
		Reason:    "control",
		Symptoms:  []string{},
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	if err := f.repos.Appointments.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}
