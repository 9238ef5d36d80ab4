package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection          = "users"
	appointmentsCollection   = "appointments"
	medicalHistoryCollection = "medicalhistories"
)

// NewMongoRepositories wires every repository to the same database.
func NewMongoRepositories(db *mongo.Database) Repositories {
	return Repositories{
		Users:          NewUserRepository(db),
		Appointments:   NewAppointmentRepository(db),
		MedicalHistory: NewMedicalHistoryRepository(db),
	}
}

// EnsureIndexes creates the uniqueness constraints the services rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "specialty", Value: 1}}},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	appointments := []mongo.IndexModel{
		{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}}},
	}
	if _, err := db.Collection(appointmentsCollection).Indexes().CreateMany(ctx, appointments); err != nil {
		return fmt.Errorf("create appointment indexes: %w", err)
	}

	history := mongo.IndexModel{Keys: bson.D{{Key: "patientId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := db.Collection(medicalHistoryCollection).Indexes().CreateOne(ctx, history); err != nil {
		return fmt.Errorf("create medical history index: %w", err)
	}
	return nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
