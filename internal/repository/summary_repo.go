package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imcitrack/internal/model"
)

// SummaryRepo stores course summary snapshots
type SummaryRepo interface {
	SaveSnapshot(ctx context.Context, summary *model.CourseSummary) error
	GetSnapshot(ctx context.Context, courseID string) (*model.CourseSummary, error)
}

type summaryRepo struct {
	snapshots *mongo.Collection
}

// NewSummaryRepo creates a new summary repository
func NewSummaryRepo(db *mongo.Database) SummaryRepo {
	return &summaryRepo{
		snapshots: db.Collection("course_summaries"),
	}
}

func (r *summaryRepo) SaveSnapshot(ctx context.Context, summary *model.CourseSummary) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.snapshots.ReplaceOne(ctx, bson.M{"courseId": summary.CourseID}, summary, opts)
	return err
}

func (r *summaryRepo) GetSnapshot(ctx context.Context, courseID string) (*model.CourseSummary, error) {
	var summary model.CourseSummary
	err := r.snapshots.FindOne(ctx, bson.M{"courseId": courseID}).Decode(&summary)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
