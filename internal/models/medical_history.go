package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConditionStatus string

const (
	ConditionActive   ConditionStatus = "active"
	ConditionManaged  ConditionStatus = "managed"
	ConditionResolved ConditionStatus = "resolved"
)

type DocumentType string

const (
	DocLabResult    DocumentType = "lab_result"
	DocImaging      DocumentType = "imaging"
	DocPrescription DocumentType = "prescription"
	DocOther        DocumentType = "other"
)

func (d DocumentType) Valid() bool {
	switch d {
	case DocLabResult, DocImaging, DocPrescription, DocOther:
		return true
	}
	return false
}

type Condition struct {
	Name          string          `bson:"name" json:"name"`
	DiagnosedDate *time.Time      `bson:"diagnosedDate,omitempty" json:"diagnosedDate,omitempty"`
	Status        ConditionStatus `bson:"status,omitempty" json:"status,omitempty"`
}

type Medication struct {
	Name      string     `bson:"name" json:"name"`
	Dosage    string     `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Frequency string     `bson:"frequency,omitempty" json:"frequency,omitempty"`
	StartDate *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate   *time.Time `bson:"endDate,omitempty" json:"endDate,omitempty"`
}

type Surgery struct {
	Procedure string     `bson:"procedure" json:"procedure"`
	Date      *time.Time `bson:"date,omitempty" json:"date,omitempty"`
	Hospital  string     `bson:"hospital,omitempty" json:"hospital,omitempty"`
	Surgeon   string     `bson:"surgeon,omitempty" json:"surgeon,omitempty"`
}

type FamilyHistoryEntry struct {
	Condition    string `bson:"condition" json:"condition"`
	Relationship string `bson:"relationship" json:"relationship"`
}

type MedicalDocument struct {
	Title      string             `bson:"title" json:"title"`
	Type       DocumentType       `bson:"type" json:"type"`
	FileURL    string             `bson:"fileUrl" json:"fileUrl"`
	UploadDate time.Time          `bson:"uploadDate" json:"uploadDate"`
	UploadedBy primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
}

type ConsultationNote struct {
	Date       time.Time          `bson:"date" json:"date"`
	DoctorID   primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	Symptoms   []string           `bson:"symptoms" json:"symptoms"`
	Diagnosis  string             `bson:"diagnosis,omitempty" json:"diagnosis,omitempty"`
	Treatment  string             `bson:"treatment,omitempty" json:"treatment,omitempty"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	AIAnalysis string             `bson:"aiAnalysis,omitempty" json:"aiAnalysis,omitempty"`
}

// MedicalHistory is the single per-patient record. List fields are never nil
// so clients always receive arrays.
type MedicalHistory struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	PatientID         primitive.ObjectID   `bson:"patientId" json:"patientId"`
	Allergies         []string             `bson:"allergies" json:"allergies"`
	Conditions        []Condition          `bson:"conditions" json:"conditions"`
	Medications       []Medication         `bson:"medications" json:"medications"`
	Surgeries         []Surgery            `bson:"surgeries" json:"surgeries"`
	FamilyHistory     []FamilyHistoryEntry `bson:"familyHistory" json:"familyHistory"`
	Documents         []MedicalDocument    `bson:"documents" json:"documents"`
	ConsultationNotes []ConsultationNote   `bson:"consultationNotes" json:"consultationNotes"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// NewMedicalHistory returns an empty history for the patient.
func NewMedicalHistory(patientID primitive.ObjectID, now time.Time) *MedicalHistory {
	h := &MedicalHistory{PatientID: patientID, CreatedAt: now, UpdatedAt: now}
	h.Normalize()
	return h
}

// Normalize replaces nil lists with empty ones.
func (h *MedicalHistory) Normalize() {
	if h.Allergies == nil {
		h.Allergies = []string{}
	}
	if h.Conditions == nil {
		h.Conditions = []Condition{}
	}
	if h.Medications == nil {
		h.Medications = []Medication{}
	}
	if h.Surgeries == nil {
		h.Surgeries = []Surgery{}
	}
	if h.FamilyHistory == nil {
		h.FamilyHistory = []FamilyHistoryEntry{}
	}
	if h.Documents == nil {
		h.Documents = []MedicalDocument{}
	}
	if h.ConsultationNotes == nil {
		h.ConsultationNotes = []ConsultationNote{}
	}
}
