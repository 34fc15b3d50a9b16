package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/adapters"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

const (
	graphCollection = "graphs"
	maxWriteRetries = 3
)

// graphRecord is one conversation graph as stored in MongoDB. Version guards
// concurrent RecordTurn calls on the same conversation.
type graphRecord struct {
	adapters.GraphDocument `bson:",inline"`
	Version                int       `bson:"version"`
	UpdatedAt              time.Time `bson:"updated_at"`
}

// GraphRepository implements GraphRepository using MongoDB
type GraphRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
	now        func() time.Time
}

var _ repositories.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new MongoDB graph repository
func NewGraphRepository(db *mongo.Database, logger *zap.Logger) *GraphRepository {
	return &GraphRepository{
		collection: db.Collection(graphCollection),
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureIndexes creates the index used by ExpireIdle
func (r *GraphRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create graph indexes: %w", err)
	}
	r.logger.Info("Graph indexes created successfully")
	return nil
}

// RecordTurn implements repositories.GraphRepository
func (r *GraphRepository) RecordTurn(ctx context.Context, convID string, turn repositories.GraphTurn) error {
	convID, err := adapters.ValidateGraphTurn(convID, turn)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		err = r.appendTurn(ctx, convID, turn)
		if !errors.Is(err, errVersionConflict) {
			return err
		}
		r.logger.Warn("Graph write conflict, retrying",
			zap.String("convID", convID),
			zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("failed to record turn for %s: %w", convID, err)
}

var errVersionConflict = errors.New("graph was modified concurrently")

func (r *GraphRepository) appendTurn(ctx context.Context, convID string, turn repositories.GraphTurn) error {
	var record graphRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": convID}).Decode(&record)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		record = graphRecord{GraphDocument: adapters.NewGraphDocument(convID)}
	case err != nil:
		return fmt.Errorf("failed to load graph %s: %w", convID, err)
	}

	version := record.Version
	record.AppendTurn(turn)
	record.Version = version + 1
	record.UpdatedAt = r.now()

	if version == 0 {
		_, err = r.collection.InsertOne(ctx, record)
		if mongo.IsDuplicateKeyError(err) {
			return errVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create graph %s: %w", convID, err)
		}
		return nil
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": convID, "version": version}, record)
	if err != nil {
		return fmt.Errorf("failed to update graph %s: %w", convID, err)
	}
	if result.MatchedCount == 0 {
		return errVersionConflict
	}
	return nil
}

// Get implements repositories.GraphRepository
func (r *GraphRepository) Get(ctx context.Context, convID string) (*entities.ReasoningGraph, error) {
	var record graphRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": convID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph %s: %w", convID, err)
	}
	return record.Graph()
}

// ExpireIdle implements repositories.GraphRepository
func (r *GraphRepository) ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, errors.New("max idle must be positive")
	}

	cutoff := r.now().Add(-maxIdle)
	result, err := r.collection.DeleteMany(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to expire graphs: %w", err)
	}
	return int(result.DeletedCount), nil
}
