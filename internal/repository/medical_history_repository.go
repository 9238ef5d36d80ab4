package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/diagnosia-api/internal/models"
)

type medicalHistoryRepository struct {
	coll *mongo.Collection
}

func NewMedicalHistoryRepository(db *mongo.Database) MedicalHistoryRepository {
	return &medicalHistoryRepository{coll: db.Collection(medicalHistoryCollection)}
}

func (r *medicalHistoryRepository) FindByPatient(ctx context.Context, patientID primitive.ObjectID) (*models.MedicalHistory, error) {
	var h models.MedicalHistory
	if err := r.coll.FindOne(ctx, bson.M{"patientId": patientID}).Decode(&h); err != nil {
		return nil, translate(err)
	}
	h.Normalize()
	return &h, nil
}

func (r *medicalHistoryRepository) Create(ctx context.Context, history *models.MedicalHistory) error {
	if history.ID.IsZero() {
		history.ID = primitive.NewObjectID()
	}
	history.Normalize()
	if _, err := r.coll.InsertOne(ctx, history); err != nil {
		return fmt.Errorf("insert medical history: %w", translate(err))
	}
	return nil
}

func (r *medicalHistoryRepository) push(ctx context.Context, patientID primitive.ObjectID, field string, value any, now time.Time) (*models.MedicalHistory, error) {
	update := bson.M{
		"$push": bson.M{field: value},
		"$set":  bson.M{"updatedAt": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var h models.MedicalHistory
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"patientId": patientID}, update, opts).Decode(&h)
	if err != nil {
		return nil, translate(err)
	}
	h.Normalize()
	return &h, nil
}

func (r *medicalHistoryRepository) PushDocument(ctx context.Context, patientID primitive.ObjectID, doc models.MedicalDocument, now time.Time) (*models.MedicalHistory, error) {
	return r.push(ctx, patientID, "documents", doc, now)
}

func (r *medicalHistoryRepository) PushConsultationNote(ctx context.Context, patientID primitive.ObjectID, note models.ConsultationNote, now time.Time) (*models.MedicalHistory, error) {
	return r.push(ctx, patientID, "consultationNotes", note, now)
}
