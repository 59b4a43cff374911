package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the query paths depend on. The unique
// index on (ride_id, rater_id) doubles as the duplicate-rating guard.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := m.Collection("users").Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	rides := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "from_zone", Value: 1}}},
		{Keys: bson.D{{Key: "rider_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := m.Collection("rides").Indexes().CreateMany(ctx, rides); err != nil {
		return fmt.Errorf("failed to create ride indexes: %w", err)
	}

	ratings := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ride_id", Value: 1}, {Key: "rater_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "rated_id", Value: 1}}},
	}
	if _, err := m.Collection("ratings").Indexes().CreateMany(ctx, ratings); err != nil {
		return fmt.Errorf("failed to create rating indexes: %w", err)
	}

	return nil
}
