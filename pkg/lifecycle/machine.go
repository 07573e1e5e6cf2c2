package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/policy"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// ContentStore is the document-store surface the lifecycle machine consumes.
// *store.Store implements it; tests substitute an in-memory fake.
type ContentStore interface {
	FindOne(ctx context.Context, collection string, filter bson.M, out interface{}) error
	InsertOne(ctx context.Context, collection string, doc interface{}) error
	UpdateOne(ctx context.Context, collection string, filter bson.M, update interface{}) (bool, error)
	UpdateMany(ctx context.Context, collection string, filter bson.M, update interface{}) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter bson.M) (bool, error)
	FindOneAndUpdate(ctx context.Context, collection string, filter bson.M, update interface{}, out interface{}) error
	FindOneAndDelete(ctx context.Context, collection string, filter bson.M, out interface{}) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetRole(ctx context.Context, id primitive.ObjectID) (*models.Role, error)
}

var _ ContentStore = (*store.Store)(nil)

// Machine executes lesson lifecycle transitions.
type Machine struct {
	store  ContentStore
	blob   blob.Store
	policy *policy.Compiler
	logger *logrus.Logger
	now    func() time.Time
}

// New wires a Machine.
func New(st ContentStore, bl blob.Store, pol *policy.Compiler, opts ...MachineOption) *Machine {
	m := &Machine{
		store:  st,
		blob:   bl,
		policy: pol,
		logger: logrus.StandardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MachineOption tunes a Machine.
type MachineOption func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l *logrus.Logger) MachineOption {
	return func(m *Machine) { m.logger = l }
}

// WithClock overrides the time source. Tests use it.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// scopedFilter merges the caller's compiled access predicate for
// (resource, action) with an _id match. Every lesson load goes through it,
// so an out-of-grant lesson reads as NotFound.
func (m *Machine) scopedFilter(caller *models.User, resource models.Resource, action models.Action, id primitive.ObjectID) (bson.M, error) {
	pred, err := m.policy.Compile(caller, resource, action)
	if err != nil {
		return nil, err
	}
	pred["_id"] = id
	return pred, nil
}

// loadLesson fetches one lesson from collection under the caller's
// predicate.
func (m *Machine) loadLesson(ctx context.Context, caller *models.User, resource models.Resource, action models.Action, id primitive.ObjectID) (*models.Lesson, error) {
	coll, err := store.CollectionFor(resource)
	if err != nil {
		return nil, err
	}
	filter, err := m.scopedFilter(caller, resource, action, id)
	if err != nil {
		return nil, err
	}
	var lesson models.Lesson
	if err := m.store.FindOne(ctx, coll, filter, &lesson); err != nil {
		return nil, fmt.Errorf("load %s %s: %w", resource, id.Hex(), err)
	}
	return &lesson, nil
}

// opLogger returns a logger tagged with the standard operation fields.
func (m *Machine) opLogger(op string, caller *models.User, lessonID primitive.ObjectID) *logrus.Entry {
	return m.logger.WithFields(logrus.Fields{
		"op":     op,
		"user":   caller.ID.Hex(),
		"lesson": lessonID.Hex(),
	})
}

// applyBlobPlan runs deletes then moves, in that order, after a document
// commit. Failures no longer abort anything; they are collected into a
// PartialFailure so callers can report degraded success.
func (m *Machine) applyBlobPlan(ctx context.Context, log *logrus.Entry, plan MigrationPlan) error {
	var failed []string
	for _, key := range plan.Deletes {
		if err := m.blob.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Error("stale asset delete failed")
			failed = append(failed, key)
		}
	}
	for _, mv := range plan.Moves {
		if err := m.blob.Move(ctx, mv.From, mv.To); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"from": mv.From, "to": mv.To}).Error("asset move failed")
			failed = append(failed, mv.From)
		}
	}
	if len(failed) > 0 {
		return apperrors.PartialFailure(
			fmt.Sprintf("%d asset operations failed, keys logged", len(failed)), nil)
	}
	return nil
}
