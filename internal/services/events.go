package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
)

// AppointmentEventsQueue is the durable queue appointment events land on.
const AppointmentEventsQueue = "appointments.events"

type EventType string

const (
	EventAppointmentCreated   EventType = "appointment.created"
	EventAppointmentUpdated   EventType = "appointment.updated"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentPaid      EventType = "appointment.paid"
)

type AppointmentEvent struct {
	Type          EventType                `json:"type"`
	AppointmentID string                   `json:"appointmentId"`
	PatientID     string                   `json:"patientId"`
	DoctorID      string                   `json:"doctorId"`
	Status        models.AppointmentStatus `json:"status"`
	Date          time.Time                `json:"date"`
	OccurredAt    time.Time                `json:"occurredAt"`
}

func newAppointmentEvent(t EventType, apt *models.Appointment, now time.Time) AppointmentEvent {
	return AppointmentEvent{
		Type:          t,
		AppointmentID: apt.ID.Hex(),
		PatientID:     apt.PatientID.Hex(),
		DoctorID:      apt.DoctorID.Hex(),
		Status:        apt.Status,
		Date:          apt.Date,
		OccurredAt:    now,
	}
}

// EventPublisher emits domain events. Callers treat failures as best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event AppointmentEvent) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, AppointmentEvent) error { return nil }

const (
	defaultDialTimeout   = 2 * time.Second
	defaultRedialBackoff = 10 * time.Second
)

var (
	errDialInProgress = errors.New("rabbitmq dial: connection attempt in progress")
	errRedialBackoff  = errors.New("rabbitmq dial: waiting before the next connection attempt")
	errPublisherDone  = errors.New("rabbitmq publisher closed")
)

// RabbitPublisher publishes persistent JSON messages to AppointmentEventsQueue.
// The connection is dialled lazily and re-dialled after a failure. A failed dial
// suppresses further attempts for redialBackoff.
type RabbitPublisher struct {
	url           string
	logger        *logging.Logger
	dialTimeout   time.Duration
	redialBackoff time.Duration
	now           func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
	closed  bool
}

func NewRabbitPublisher(url string, logger *logging.Logger) *RabbitPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &RabbitPublisher{
		url:           url,
		logger:        logger,
		dialTimeout:   defaultDialTimeout,
		redialBackoff: defaultRedialBackoff,
		now:           time.Now,
	}
}

// channel returns the open channel or dials a new one. The mutex is released
// while dialling.
func (p *RabbitPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errPublisherDone
	}
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing {
		p.mu.Unlock()
		return nil, errDialInProgress
	}
	if p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, errRedialBackoff
	}
	p.closeLocked()
	p.dialing = true
	p.mu.Unlock()

	conn, ch, err := p.dial(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(p.redialBackoff)
		return nil, err
	}
	if p.closed {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errPublisherDone
	}
	p.retryAt = time.Time{}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// dial connects within dialTimeout or the context deadline, whichever is sooner.
func (p *RabbitPublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
		}
		if left < timeout {
			timeout = left
		}
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:   amqp.DefaultDial(timeout),
		Locale: "en_US",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		AppointmentEventsQueue, // name
		true,                   // durable
		false,                  // autoDelete
		false,                  // exclusive
		false,                  // noWait
		nil,                    // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event AppointmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		p.logger.Warn("rabbitmq unavailable", "error", err, "event", event.Type)
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",                     // default exchange
		AppointmentEventsQueue, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         body,
		})
	if err != nil {
		p.mu.Lock()
		if p.ch == ch {
			p.closeLocked()
		}
		p.mu.Unlock()
		p.logger.Warn("rabbitmq publish failed", "error", err, "event", event.Type)
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *RabbitPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close shuts the broker connection down.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeLocked()
	return nil
}

var (
	_ EventPublisher = NoopPublisher{}
	_ EventPublisher = (*RabbitPublisher)(nil)
)
