package lifecycle

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// Archive moves a published lesson into the archived collection, stamped
// with who archived it and when. An open edit session is discarded by the
// move; its staged uploads are cleaned best-effort.
func (m *Machine) Archive(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	filter, err := m.scopedFilter(caller, models.ResourcePublishedLessons, models.ActionDelete, lessonID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var archived models.Lesson

	err = m.store.WithTransaction(ctx, func(ctx context.Context) error {
		var lesson models.Lesson
		if err := m.store.FindOneAndDelete(ctx, store.CollPublishedLessons, filter, &lesson); err != nil {
			return fmt.Errorf("remove published: %w", err)
		}
		archived = lesson
		archived.MidEdit = false
		archived.EditData = nil
		archived.ArchiveAt = &now
		callerID := caller.ID
		archived.ArchiveBy = &callerID
		archived.UpdatedAt = now
		if err := m.store.InsertOne(ctx, store.CollArchivedLessons, &archived); err != nil {
			return fmt.Errorf("insert archived: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := m.opLogger("archive", caller, lessonID)
	if err := m.blob.DeletePrefix(ctx, blob.LessonEditFolder(lessonID)); err != nil {
		log.WithError(err).Error("edit folder cleanup failed")
		return &archived, apperrors.PartialFailure("lesson archived, staged uploads remain", err)
	}
	log.Info("lesson archived")
	return &archived, nil
}

// Restore moves an archived lesson back into the published collection and
// clears the archive stamps. A published lesson with the same id (the
// original was restored twice, or republished) surfaces as Conflict and the
// transaction rolls the removal back.
func (m *Machine) Restore(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	filter, err := m.scopedFilter(caller, models.ResourceArchivedLessons, models.ActionUpdate, lessonID)
	if err != nil {
		return nil, err
	}

	var restored models.Lesson
	err = m.store.WithTransaction(ctx, func(ctx context.Context) error {
		var lesson models.Lesson
		if err := m.store.FindOneAndDelete(ctx, store.CollArchivedLessons, filter, &lesson); err != nil {
			return fmt.Errorf("remove archived: %w", err)
		}
		restored = lesson
		restored.ArchiveAt = nil
		restored.ArchiveBy = nil
		restored.UpdatedAt = m.now()
		if err := m.store.InsertOne(ctx, store.CollPublishedLessons, &restored); err != nil {
			return fmt.Errorf("insert published: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.opLogger("restore", caller, lessonID).Info("lesson restored")
	return &restored, nil
}

// PermanentlyDelete erases an archived lesson: the document, every backing
// asset, and every allow-list entry pointing at it.
func (m *Machine) PermanentlyDelete(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) error {
	filter, err := m.scopedFilter(caller, models.ResourceArchivedLessons, models.ActionDelete, lessonID)
	if err != nil {
		return err
	}
	return m.permanentlyDelete(ctx, filter, m.opLogger("permanent_delete", caller, lessonID))
}

// DeleteExpired erases an archived lesson on behalf of the retention sweep,
// which acts as the system and carries no user predicate.
func (m *Machine) DeleteExpired(ctx context.Context, lessonID primitive.ObjectID) error {
	log := m.logger.WithFields(map[string]interface{}{
		"op":     "retention_delete",
		"lesson": lessonID.Hex(),
	})
	return m.permanentlyDelete(ctx, bson.M{"_id": lessonID}, log)
}

func (m *Machine) permanentlyDelete(ctx context.Context, filter bson.M, log *logrus.Entry) error {
	var lesson models.Lesson
	err := m.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := m.store.FindOneAndDelete(ctx, store.CollArchivedLessons, filter, &lesson); err != nil {
			return fmt.Errorf("remove archived: %w", err)
		}
		pull := bson.M{"$pull": bson.M{"allowed_lessons": lesson.ID}}
		if _, err := m.store.UpdateMany(ctx, store.CollUsers, bson.M{"allowed_lessons": lesson.ID}, pull); err != nil {
			return fmt.Errorf("pull from user grants: %w", err)
		}
		if _, err := m.store.UpdateMany(ctx, store.CollAccounts, bson.M{"allowed_lessons": lesson.ID}, pull); err != nil {
			return fmt.Errorf("pull from account grants: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var failed bool
	for _, prefix := range blob.LessonPrefixes(lesson.ID) {
		if err := m.blob.DeletePrefix(ctx, prefix); err != nil {
			log.WithError(err).WithField("prefix", prefix).Error("asset folder delete failed")
			failed = true
		}
	}
	if failed {
		return apperrors.PartialFailure("lesson erased, some assets remain", nil)
	}
	log.Info("lesson permanently deleted")
	return nil
}
