package lifecycle

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// RewriteLessonAssets points every managed asset reference of a lesson copy
// at the new lesson id. External URLs never contain the old id and pass
// through untouched.
func RewriteLessonAssets(lesson *models.Lesson, oldID, newID primitive.ObjectID) {
	lesson.Thumbnail = blob.RewriteLessonID(lesson.Thumbnail, oldID, newID)
	lesson.DescriptionFile = blob.RewriteLessonID(lesson.DescriptionFile, oldID, newID)
	for i := range lesson.Parts {
		p := &lesson.Parts[i]
		p.GCPPath = blob.RewriteLessonID(p.GCPPath, oldID, newID)
		for j := range p.Screens {
			p.Screens[j].URL = blob.RewriteLessonID(p.Screens[j].URL, oldID, newID)
		}
	}
}

// Duplicate copies a published lesson into a new draft owned by the caller.
// The draft gets a fresh id, every asset reference rewritten to it, and a
// physical copy of the backing files. The caller's one-draft rule still
// holds: an existing draft surfaces as Conflict before any file is copied.
func (m *Machine) Duplicate(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	source, err := m.loadLesson(ctx, caller, models.ResourcePublishedLessons, models.ActionDuplicate, lessonID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	draft := *source
	draft.ID = primitive.NewObjectID()
	draft.Creator = caller.ID
	draft.MidEdit = false
	draft.EditData = nil
	draft.Public = false
	draft.Viewed = 0
	draft.ArchiveAt = nil
	draft.ArchiveBy = nil
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.Parts = clonePartsForMerge(source.Parts)
	draft.Categories = append([]primitive.ObjectID(nil), source.Categories...)
	RewriteLessonAssets(&draft, lessonID, draft.ID)

	if err := m.store.InsertOne(ctx, store.CollDraftLessons, &draft); err != nil {
		return nil, fmt.Errorf("insert duplicated draft: %w", err)
	}

	log := m.opLogger("duplicate", caller, lessonID).WithField("draft", draft.ID.Hex())
	if err := m.blob.CopyPrefix(ctx, blob.LessonFolder(lessonID), blob.LessonFolder(draft.ID)); err != nil {
		log.WithError(err).Error("asset copy failed")
		return &draft, apperrors.PartialFailure("draft created, asset copy incomplete", err)
	}
	log.Info("lesson duplicated")
	return &draft, nil
}
