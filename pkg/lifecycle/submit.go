package lifecycle

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// Submit closes an edit session by merging the snapshot into the live
// document and migrating assets. The merged document commits first, under
// the ownership CAS; the asset deletes and moves run afterwards, in that
// order. A blob failure at that point surfaces as PartialFailure with the
// merged lesson still returned, because the document is already the truth.
func (m *Machine) Submit(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return nil, err
	}

	plan, merged, err := PlanSubmit(lesson)
	if err != nil {
		return nil, err
	}
	merged.UpdatedAt = m.now()

	matched, err := m.store.UpdateOne(ctx, store.CollPublishedLessons,
		bson.M{
			"_id":                      lessonID,
			"mid_edit":                 true,
			"edit_data.current_editor": caller.ID,
		},
		bson.M{
			"$set": bson.M{
				"title":            merged.Title,
				"description":      merged.Description,
				"description_file": merged.DescriptionFile,
				"parts":            merged.Parts,
				"categories":       merged.Categories,
				"thumbnail":        merged.Thumbnail,
				"credit":           merged.Credit,
				"mid_edit":         false,
				"updated_at":       merged.UpdatedAt,
			},
			"$unset": bson.M{"edit_data": ""},
		})
	if err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}
	if !matched {
		return nil, fmt.Errorf("lesson %s: %w", lessonID.Hex(),
			apperrors.Conflict("edit session was seized or closed"))
	}

	log := m.opLogger("submit_edit", caller, lessonID).WithFields(map[string]interface{}{
		"deletes": len(plan.Deletes),
		"moves":   len(plan.Moves),
	})
	if err := m.applyBlobPlan(ctx, log, plan); err != nil {
		return merged, err
	}
	log.Info("edit session submitted")
	return merged, nil
}
