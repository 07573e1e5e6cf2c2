package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
)

// Collection names, one per entity.
const (
	CollRoles              = "roles"
	CollUsers              = "users"
	CollAccounts           = "accounts"
	CollDraftLessons       = "draft_lessons"
	CollPublishedLessons   = "published_lessons"
	CollArchivedLessons    = "archived_lessons"
	CollCategories         = "categories"
	CollReviews            = "reviews"
	CollSiteHelp           = "site_help"
	CollSiteHelpCategories = "site_help_categories"
)

// CollectionFor maps a protected resource to its backing collection.
func CollectionFor(r models.Resource) (string, error) {
	switch r {
	case models.ResourceRoles:
		return CollRoles, nil
	case models.ResourceUsers:
		return CollUsers, nil
	case models.ResourceAccounts:
		return CollAccounts, nil
	case models.ResourceDraftLessons:
		return CollDraftLessons, nil
	case models.ResourcePublishedLessons:
		return CollPublishedLessons, nil
	case models.ResourceArchivedLessons:
		return CollArchivedLessons, nil
	case models.ResourceCategories:
		return CollCategories, nil
	case models.ResourceReviews:
		return CollReviews, nil
	case models.ResourceSiteHelp:
		return CollSiteHelp, nil
	case models.ResourceSiteHelpCategories:
		return CollSiteHelpCategories, nil
	default:
		return "", fmt.Errorf("no collection for resource %q", r)
	}
}

// Store is the gateway to the document database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *logrus.Logger
}

// Options configures the connection.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	Logger         *logrus.Logger
}

// Connect dials the database and pings it before returning a Store.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, apperrors.StorageFailure("connect to document store", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		return nil, apperrors.StorageFailure("ping document store", err)
	}

	opts.Logger.WithField("database", opts.Database).Info("connected to document store")
	return &Store{client: client, db: client.Database(opts.Database), logger: opts.Logger}, nil
}

// NewWithDatabase wraps an existing connection. Used by tests and by the
// init command, which needs the raw client for session handling.
func NewWithDatabase(client *mongo.Client, db *mongo.Database, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{client: client, db: db, logger: logger}
}

// Close disconnects from the database.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return apperrors.StorageFailure("disconnect document store", err)
	}
	return nil
}

// HealthCheck verifies the database answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperrors.StorageFailure("health check", err)
	}
	return nil
}

func (s *Store) coll(name string) *mongo.Collection { return s.db.Collection(name) }

// FindOne decodes the first document matching filter into out.
func (s *Store) FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) error {
	err := s.coll(collection).FindOne(ctx, filter).Decode(out)
	if err != nil {
		return convertError(collection, "find one", err)
	}
	return nil
}

// FindMany decodes all documents matching filter into out (a pointer to a
// slice). opts may set sort, skip, and limit.
func (s *Store) FindMany(ctx context.Context, collection string, filter bson.M, out interface{}, opts ...*options.FindOptions) error {
	cur, err := s.coll(collection).Find(ctx, filter, opts...)
	if err != nil {
		return convertError(collection, "find many", err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return convertError(collection, "decode many", err)
	}
	return nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	n, err := s.coll(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, convertError(collection, "count", err)
	}
	return n, nil
}

// Distinct returns the distinct values of field across documents matching
// filter.
func (s *Store) Distinct(ctx context.Context, collection, field string, filter bson.M) ([]interface{}, error) {
	vals, err := s.coll(collection).Distinct(ctx, field, filter)
	if err != nil {
		return nil, convertError(collection, "distinct", err)
	}
	return vals, nil
}

// InsertOne writes a new document.
func (s *Store) InsertOne(ctx context.Context, collection string, doc interface{}) error {
	if _, err := s.coll(collection).InsertOne(ctx, doc); err != nil {
		return convertError(collection, "insert", err)
	}
	return nil
}

// UpdateOne applies update to the first document matching filter and reports
// whether a document matched.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter bson.M, update interface{}) (bool, error) {
	res, err := s.coll(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, convertError(collection, "update one", err)
	}
	return res.MatchedCount > 0, nil
}

// UpdateMany applies update to every document matching filter and returns
// the matched count.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter bson.M, update interface{}) (int64, error) {
	res, err := s.coll(collection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, convertError(collection, "update many", err)
	}
	return res.MatchedCount, nil
}

// FindOneAndUpdate atomically applies update to the first document matching
// filter and decodes the pre-update document into out. This is the CAS
// primitive behind editor seizure and edit-session opening: the filter
// carries the expected prior state, and a NotFound result means the
// precondition no longer held.
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter bson.M, update interface{}, out interface{}) error {
	err := s.coll(collection).FindOneAndUpdate(ctx, filter, update).Decode(out)
	if err != nil {
		return convertError(collection, "find and update", err)
	}
	return nil
}

// FindOneAndDelete atomically removes the first document matching filter and
// decodes it into out.
func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter bson.M, out interface{}) error {
	err := s.coll(collection).FindOneAndDelete(ctx, filter).Decode(out)
	if err != nil {
		return convertError(collection, "find and delete", err)
	}
	return nil
}

// DeleteOne removes the first document matching filter and reports whether
// one was removed.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter bson.M) (bool, error) {
	res, err := s.coll(collection).DeleteOne(ctx, filter)
	if err != nil {
		return false, convertError(collection, "delete one", err)
	}
	return res.DeletedCount > 0, nil
}

// DeleteMany removes every document matching filter and returns the count.
func (s *Store) DeleteMany(ctx context.Context, collection string, filter bson.M) (int64, error) {
	res, err := s.coll(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, convertError(collection, "delete many", err)
	}
	return res.DeletedCount, nil
}

// WithTransaction runs fn inside a multi-document transaction. The callback
// receives a session-bound context; any store call made with it joins the
// transaction. An error from fn aborts everything.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return apperrors.StorageFailure("start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		// Classified errors from fn pass through untouched so callers can
		// still distinguish Conflict from Forbidden after an abort.
		if apperrors.KindOf(err) != apperrors.KindUnknown {
			return err
		}
		return apperrors.StorageFailure("transaction", err)
	}
	return nil
}
