// Package sweep permanently deletes archived lessons whose retention window
// has lapsed. The sweep is idempotent: a lesson that survives one run (a
// blob hiccup, a crash) is picked up again by the next.
package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/lifecycle"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// DefaultRetention keeps archived lessons restorable for 30 days.
const DefaultRetention = 30 * 24 * time.Hour

// DefaultConcurrency bounds parallel per-lesson deletions.
const DefaultConcurrency = 4

// Cutoff returns the archive_at threshold: lessons archived strictly before
// it are expired.
func Cutoff(now time.Time, retention time.Duration) time.Time {
	return now.Add(-retention)
}

// Sweeper runs the retention sweep.
type Sweeper struct {
	store       *store.Store
	machine     *lifecycle.Machine
	logger      *logrus.Logger
	retention   time.Duration
	concurrency int
	now         func() time.Time
}

// New wires a Sweeper.
func New(st *store.Store, m *lifecycle.Machine, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:       st,
		machine:     m,
		logger:      logrus.StandardLogger(),
		retention:   DefaultRetention,
		concurrency: DefaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option tunes a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the sweeper's logger.
func WithLogger(l *logrus.Logger) Option { return func(s *Sweeper) { s.logger = l } }

// WithRetention overrides the retention window.
func WithRetention(d time.Duration) Option { return func(s *Sweeper) { s.retention = d } }

// WithConcurrency overrides the per-lesson deletion parallelism.
func WithConcurrency(n int) Option { return func(s *Sweeper) { s.concurrency = n } }

// WithClock overrides the time source. Tests use it.
func WithClock(now func() time.Time) Option { return func(s *Sweeper) { s.now = now } }

// Result summarizes one sweep run.
type Result struct {
	Expired int
	Deleted int
	Failed  int
}

// Run deletes every expired archived lesson. Per-lesson failures are logged
// and counted, never fatal; the run only errors when the expiry listing
// itself fails or the context dies.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	cutoff := Cutoff(s.now(), s.retention)
	log := s.logger.WithFields(logrus.Fields{"op": "retention_sweep", "cutoff": cutoff})

	ids, err := s.store.Distinct(ctx, store.CollArchivedLessons, "_id",
		bson.M{"archive_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return Result{}, err
	}
	if len(ids) == 0 {
		log.Debug("nothing expired")
		return Result{}, nil
	}

	var deleted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, raw := range ids {
		id, ok := raw.(primitive.ObjectID)
		if !ok {
			log.WithField("value", raw).Warn("non-ObjectID _id in archived collection")
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			err := s.machine.DeleteExpired(gctx, id)
			switch {
			case err == nil, apperrors.IsNotFound(err):
				// NotFound means a concurrent run already took it.
				deleted.Add(1)
			case apperrors.IsPartialFailure(err):
				// The document is gone either way; stray assets are logged,
				// not retried here.
				log.WithError(err).WithField("lesson", id.Hex()).Warn("expired lesson left stray assets")
				deleted.Add(1)
			default:
				log.WithError(err).WithField("lesson", id.Hex()).Error("expired lesson delete failed")
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{Expired: len(ids), Deleted: int(deleted.Load()), Failed: int(failed.Load())}
	log.WithFields(logrus.Fields{
		"expired": result.Expired,
		"deleted": result.Deleted,
		"failed":  result.Failed,
	}).Info("retention sweep finished")
	return result, nil
}
