package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
)

// reminderWindow is how far ahead appointments are reminded.
const reminderWindow = 24 * time.Hour

// ReminderJob texts patients about scheduled appointments in the next 24h.
// Each appointment is reminded at most once.
type ReminderJob struct {
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	notifier     *NotificationService
	interval     time.Duration
	loc          *time.Location
	logger       *logging.Logger
	now          func() time.Time

	scheduler *gocron.Scheduler
}

func NewReminderJob(
	users repository.UserRepository,
	appointments repository.AppointmentRepository,
	notifier *NotificationService,
	interval time.Duration,
	loc *time.Location,
	logger *logging.Logger,
) *ReminderJob {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderJob{
		users:        users,
		appointments: appointments,
		notifier:     notifier,
		interval:     interval,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (j *ReminderJob) WithClock(now func() time.Time) *ReminderJob {
	j.now = now
	return j
}

// SendDueReminders returns how many reminders were delivered.
func (j *ReminderJob) SendDueReminders(ctx context.Context) (int, error) {
	now := j.now()
	due, err := j.appointments.ListDueForReminder(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return 0, fmt.Errorf("list due appointments: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(due)*2)
	for _, a := range due {
		ids = append(ids, a.PatientID, a.DoctorID)
	}
	users, err := j.users.FindByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load participants: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(users))
	phones := make(map[primitive.ObjectID]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].FullName()
		phones[users[i].ID] = users[i].Phone
	}

	sent := 0
	for _, a := range due {
		phone := phones[a.PatientID]
		if phone == "" {
			j.logger.Warn("reminder skipped: patient has no phone", "appointment_id", a.ID.Hex())
			continue
		}
		if !j.notifier.SendAppointmentReminder(ctx, phone, a.Date, names[a.DoctorID]) {
			continue
		}
		if err := j.appointments.MarkReminderSent(ctx, a.ID, j.now()); err != nil {
			j.logger.Error("mark reminder sent failed", "appointment_id", a.ID.Hex(), "error", err)
			continue
		}
		sent++
	}
	j.logger.Info("appointment reminders processed", "due", len(due), "sent", sent)
	return sent, nil
}

// Start runs SendDueReminders every interval until Stop is called.
func (j *ReminderJob) Start() error {
	scheduler := gocron.NewScheduler(j.loc)
	_, err := scheduler.Every(j.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.interval)
		defer cancel()
		if _, err := j.SendDueReminders(ctx); err != nil {
			j.logger.Error("appointment reminder run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	scheduler.StartAsync()
	j.scheduler = scheduler
	j.logger.Info("appointment reminder job started", "interval", j.interval.String())
	return nil
}

func (j *ReminderJob) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}
