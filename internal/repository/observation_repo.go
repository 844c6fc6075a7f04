package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imcitrack/internal/model"
)

// ObservationRepo handles MongoDB operations for scored observations
type ObservationRepo interface {
	Create(ctx context.Context, obs *model.Observation) error
	CreateMany(ctx context.Context, obs []*model.Observation) error
	GetByID(ctx context.Context, id string) (*model.Observation, error)
	ListByCourse(ctx context.Context, courseID string) ([]*model.Observation, error)
	UpdateScore(ctx context.Context, obs *model.Observation) error
	EnsureIndexes(ctx context.Context) error
}

type observationRepo struct {
	collection *mongo.Collection
}

// NewObservationRepo creates a new observation repository
func NewObservationRepo(db *mongo.Database) ObservationRepo {
	return &observationRepo{
		collection: db.Collection("observations"),
	}
}

func (r *observationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "courseId", Value: 1}, {Key: "observedAt", Value: 1}}},
		{Keys: bson.D{{Key: "participantId", Value: 1}}},
		{Keys: bson.D{{Key: "importBatchId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *observationRepo) Create(ctx context.Context, obs *model.Observation) error {
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, obs)
	return err
}

func (r *observationRepo) CreateMany(ctx context.Context, obs []*model.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(obs))
	for i, o := range obs {
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		docs[i] = o
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *observationRepo) GetByID(ctx context.Context, id string) (*model.Observation, error) {
	var obs model.Observation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&obs)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	obs.Answers = plainAnswers(obs.Answers)
	return &obs, nil
}

func (r *observationRepo) ListByCourse(ctx context.Context, courseID string) ([]*model.Observation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "observedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"courseId": courseID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []*model.Observation
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	for _, o := range list {
		o.Answers = plainAnswers(o.Answers)
	}
	return list, nil
}

// UpdateScore replaces the scoring output of an existing observation. The
// recorded answers are never rewritten.
func (r *observationRepo) UpdateScore(ctx context.Context, obs *model.Observation) error {
	update := bson.M{"$set": bson.M{
		"checklistVersion": obs.ChecklistVersion,
		"payload":          obs.Payload,
		"overall":          obs.Overall,
		"diagnostics":      obs.Diagnostics,
		"skipped":          obs.Skipped,
		"rescoredAt":       obs.RescoreAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": obs.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// plainAnswers turns decoded BSON arrays back into []interface{} so stored
// label sets read the same way as freshly submitted ones.
func plainAnswers(raw model.RawAnswers) model.RawAnswers {
	for _, values := range raw {
		for k, v := range values {
			if arr, ok := v.(primitive.A); ok {
				values[k] = []interface{}(arr)
			}
		}
	}
	return raw
}
