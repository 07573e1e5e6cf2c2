package lifecycle

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// ValidateForPublish checks the completeness gate a draft must pass before
// it can go live.
func ValidateForPublish(lesson *models.Lesson) error {
	var missing []string
	if lesson.Title == "" {
		missing = append(missing, "title")
	}
	if lesson.Description == "" {
		missing = append(missing, "description")
	}
	if len(lesson.Categories) == 0 {
		missing = append(missing, "categories")
	}
	if lesson.Thumbnail == "" {
		missing = append(missing, "thumbnail")
	}
	if len(lesson.Parts) == 0 {
		missing = append(missing, "parts")
	}
	if len(missing) > 0 {
		return fmt.Errorf("lesson %s missing %v: %w", lesson.ID.Hex(), missing,
			apperrors.InvalidTransition("draft is incomplete"))
	}
	for i := range lesson.Parts {
		p := &lesson.Parts[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %s", apperrors.InvalidTransition("draft part is malformed"), err)
		}
		if !p.ReadyToPublish() {
			return fmt.Errorf("part %s (order %d) is incomplete: %w", p.ID, p.Order,
				apperrors.InvalidTransition("every part must be fully populated"))
		}
	}
	return nil
}

// CreateDraft opens a new draft owned by the caller. The unique index on
// creator enforces the one-draft-per-user rule; a second create surfaces as
// Conflict.
func (m *Machine) CreateDraft(ctx context.Context, caller *models.User, title, description string) (*models.Lesson, error) {
	if _, err := m.policy.Compile(caller, models.ResourceDraftLessons, models.ActionCreate); err != nil {
		return nil, err
	}

	now := m.now()
	draft := &models.Lesson{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: description,
		Creator:     caller.ID,
		Parts:       []models.Part{},
		Categories:  []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.InsertOne(ctx, store.CollDraftLessons, draft); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	m.opLogger("create_draft", caller, draft.ID).Info("draft created")
	return draft, nil
}

// DeleteDraft removes a draft and its uploaded assets.
func (m *Machine) DeleteDraft(ctx context.Context, caller *models.User, draftID primitive.ObjectID) error {
	filter, err := m.scopedFilter(caller, models.ResourceDraftLessons, models.ActionDelete, draftID)
	if err != nil {
		return err
	}
	var draft models.Lesson
	if err := m.store.FindOneAndDelete(ctx, store.CollDraftLessons, filter, &draft); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}

	log := m.opLogger("delete_draft", caller, draftID)
	if err := m.blob.DeletePrefix(ctx, blob.LessonFolder(draftID)); err != nil {
		log.WithError(err).Error("draft asset cleanup failed")
		return apperrors.PartialFailure("draft removed, assets remain", err)
	}
	log.Info("draft deleted")
	return nil
}

// Publish moves a draft into the published collection. The draft must pass
// the completeness gate; the published document gets fresh timestamps, the
// lesson id is pushed onto the caller's institution allow-list, and the
// draft row disappears, all in one transaction.
func (m *Machine) Publish(ctx context.Context, caller *models.User, draftID primitive.ObjectID) (*models.Lesson, error) {
	draft, err := m.loadLesson(ctx, caller, models.ResourceDraftLessons, models.ActionUpdate, draftID)
	if err != nil {
		return nil, err
	}
	if err := ValidateForPublish(draft); err != nil {
		return nil, err
	}

	now := m.now()
	published := *draft
	published.MidEdit = false
	published.EditData = nil
	published.CreatedAt = now
	published.UpdatedAt = now

	err = m.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := m.store.InsertOne(ctx, store.CollPublishedLessons, &published); err != nil {
			return fmt.Errorf("insert published: %w", err)
		}
		if caller.AccountID != nil {
			_, err := m.store.UpdateOne(ctx, store.CollAccounts,
				bson.M{"_id": *caller.AccountID},
				bson.M{"$addToSet": bson.M{"allowed_lessons": published.ID}})
			if err != nil {
				return fmt.Errorf("grant lesson to account: %w", err)
			}
		}
		deleted, err := m.store.DeleteOne(ctx, store.CollDraftLessons, bson.M{"_id": draftID})
		if err != nil {
			return fmt.Errorf("remove draft: %w", err)
		}
		if !deleted {
			return fmt.Errorf("draft vanished mid-publish: %w", apperrors.Conflict("draft no longer exists"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.opLogger("publish", caller, published.ID).Info("lesson published")
	return &published, nil
}
