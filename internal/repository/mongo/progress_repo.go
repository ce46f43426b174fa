// internal/repository/mongo/progress_repo.go
package mongo

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const progressCollectionName = "exercise_progress"

// mongoProgressRepository implements repository.ProgressRepository
type mongoProgressRepository struct {
	collection *mongo.Collection
}

// NewMongoProgressRepository creates a new ExerciseProgress repository.
func NewMongoProgressRepository(db *mongo.Database) repository.ProgressRepository {
	return &mongoProgressRepository{
		collection: db.Collection(progressCollectionName),
	}
}

// CreateMany inserts the initial rows of a session.
func (r *mongoProgressRepository) CreateMany(ctx context.Context, rows []domain.ExerciseProgress) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(rows))
	for i := range rows {
		rows[i].ID = primitive.NewObjectID()
		rows[i].UpdatedAt = now
		docs[i] = rows[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// Get retrieves the row of one exercise by its original order.
func (r *mongoProgressRepository) Get(ctx context.Context, sessionID primitive.ObjectID, exerciseOrder int) (*domain.ExerciseProgress, error) {
	var row domain.ExerciseProgress
	filter := bson.M{"sessionId": sessionID, "exerciseOrder": exerciseOrder}
	err := r.collection.FindOne(ctx, filter).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// GetBySessionID returns a session's rows ordered by exerciseOrder.
func (r *mongoProgressRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseProgress, error) {
	return r.find(ctx, bson.M{"sessionId": sessionID})
}

// GetBySessionIDs returns the rows of several sessions.
func (r *mongoProgressRepository) GetBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseProgress, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"sessionId": bson.M{"$in": sessionIDs}})
}

func (r *mongoProgressRepository) find(ctx context.Context, filter bson.M) ([]domain.ExerciseProgress, error) {
	var rows []domain.ExerciseProgress
	findOptions := options.Find().SetSort(bson.D{{Key: "sessionId", Value: 1}, {Key: "exerciseOrder", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert writes the row keyed by (sessionId, exerciseOrder). Replaying the same
// write is harmless.
func (r *mongoProgressRepository) Upsert(ctx context.Context, row *domain.ExerciseProgress) error {
	if row.SessionID == primitive.NilObjectID || row.ExerciseOrder < 0 {
		return errors.New("progress row requires sessionId and a non-negative exerciseOrder")
	}
	if row.ID == primitive.NilObjectID {
		row.ID = primitive.NewObjectID()
	}
	row.UpdatedAt = time.Now().UTC()

	filter := bson.M{"sessionId": row.SessionID, "exerciseOrder": row.ExerciseOrder}
	_, err := r.collection.ReplaceOne(ctx, filter, row, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	return nil
}

// DeleteBySessionIDs removes all rows of the given sessions.
func (r *mongoProgressRepository) DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"sessionId": bson.M{"$in": sessionIDs}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureProgressIndexes makes (sessionId, exerciseOrder) the row identity.
func EnsureProgressIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "exerciseOrder", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
