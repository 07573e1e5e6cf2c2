package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
)

// EnsureIndexes creates every index the service relies on. CreateMany is
// idempotent for identical definitions, so this runs on every boot of the
// init command.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "account", Value: 1}}},
		},
		CollAccounts: {
			{
				Keys:    bson.D{{Key: "institution_name", Value: 1}, {Key: "city", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		CollRoles: {
			{Keys: bson.D{{Key: "internal_name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollDraftLessons: {
			// One draft per creator.
			{Keys: bson.D{{Key: "creator", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollPublishedLessons: {
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
			{Keys: bson.D{{Key: "categories", Value: 1}}},
		},
		CollArchivedLessons: {
			{Keys: bson.D{{Key: "archive_at", Value: 1}}},
		},
		CollCategories: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollReviews: {
			{Keys: bson.D{{Key: "lesson", Value: 1}}},
		},
	}

	for coll, models := range specs {
		if _, err := s.coll(coll).Indexes().CreateMany(ctx, models); err != nil {
			return apperrors.StorageFailure("create indexes for "+coll, err)
		}
		s.logger.WithField("collection", coll).Debug("indexes ensured")
	}
	return nil
}
