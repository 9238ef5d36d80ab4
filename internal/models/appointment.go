package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransition allows scheduled -> any terminal state and same-state writes.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	if !to.Valid() {
		return false
	}
	if s == to {
		return true
	}
	return s == StatusScheduled && to.IsTerminal()
}

type AppointmentType string

const (
	TypeVirtual    AppointmentType = "virtual"
	TypePresential AppointmentType = "presential"
)

func (t AppointmentType) Valid() bool {
	return t == TypeVirtual || t == TypePresential
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodQR   PaymentMethod = "qr"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodQR
}

type Payment struct {
	Amount        *float64      `bson:"amount,omitempty" json:"amount,omitempty"`
	Status        PaymentStatus `bson:"status" json:"status"`
	Method        PaymentMethod `bson:"method" json:"method"`
	TransactionID string        `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
}

// AmountOrZero treats a missing amount as zero.
func (p *Payment) AmountOrZero() float64 {
	if p == nil || p.Amount == nil {
		return 0
	}
	return *p.Amount
}

type Appointment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID      primitive.ObjectID `bson:"patientId" json:"patientId"`
	DoctorID       primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	Date           time.Time          `bson:"date" json:"date"`
	Type           AppointmentType    `bson:"type" json:"type"`
	Status         AppointmentStatus  `bson:"status" json:"status"`
	Reason         string             `bson:"reason" json:"reason"`
	Symptoms       []string           `bson:"symptoms" json:"symptoms"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	AIPreAnalysis  string             `bson:"aiPreAnalysis,omitempty" json:"aiPreAnalysis,omitempty"`
	Payment        *Payment           `bson:"payment,omitempty" json:"payment,omitempty"`
	ReminderSentAt *time.Time         `bson:"reminderSentAt,omitempty" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsParticipant reports whether userID is the patient or the doctor.
func (a *Appointment) IsParticipant(userID primitive.ObjectID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

// AppointmentView is an appointment with its references resolved.
// Patient or Doctor is nil when the referenced user no longer exists.
type AppointmentView struct {
	Appointment
	Patient *UserSummary `json:"patient,omitempty"`
	Doctor  *UserSummary `json:"doctor,omitempty"`
}
