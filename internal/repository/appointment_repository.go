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

type appointmentRepository struct {
	coll *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) AppointmentRepository {
	return &appointmentRepository{coll: db.Collection(appointmentsCollection)}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *models.Appointment) error {
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, apt); err != nil {
		return fmt.Errorf("insert appointment: %w", translate(err))
	}
	return nil
}

func (r *appointmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var apt models.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&apt); err != nil {
		return nil, translate(err)
	}
	return &apt, nil
}

func (r *appointmentRepository) find(ctx context.Context, filter bson.M, sortDir int) ([]models.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: sortDir}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	return decodeAll[models.Appointment](ctx, cursor)
}

func (r *appointmentRepository) ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"patientId": userID},
		bson.M{"doctorId": userID},
	}}, -1)
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"patientId": patientID}, -1)
}

func (r *appointmentRepository) ListByDoctorBetween(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{
		"doctorId": doctorID,
		"date":     bson.M{"$gte": from, "$lt": to},
	}, 1)
}

func (r *appointmentRepository) ListByDoctorAndPaymentStatus(ctx context.Context, doctorID primitive.ObjectID, status models.PaymentStatus) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{"doctorId": doctorID, "payment.status": status}, -1)
}

func (r *appointmentRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return r.find(ctx, bson.M{
		"status":         models.StatusScheduled,
		"date":           bson.M{"$gt": from, "$lte": to},
		"reminderSentAt": bson.M{"$exists": false},
	}, 1)
}

func (r *appointmentRepository) ExistsBetween(ctx context.Context, patientID, doctorID primitive.ObjectID) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"patientId": patientID, "doctorId": doctorID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count appointments: %w", err)
	}
	return n > 0, nil
}

func (r *appointmentRepository) Update(ctx context.Context, apt *models.Appointment) error {
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": apt.ID}, apt)
	if err != nil {
		return fmt.Errorf("replace appointment: %w", translate(err))
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reminderSentAt": at}})
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
