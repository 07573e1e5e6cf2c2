package lifecycle

import (
	"fmt"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
)

// Move is one asset promotion from the edit folder to the lesson folder.
type Move struct {
	From string
	To   string
}

// MigrationPlan is the complete set of blob operations a submit implies.
// It is computed in full before any file is touched; appliance order is
// deletes first, then moves.
type MigrationPlan struct {
	Deletes []string
	Moves   []Move
}

// Empty reports whether the plan contains no work.
func (p *MigrationPlan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Moves) == 0
}

func (p *MigrationPlan) deleteKey(key string) {
	if key != "" {
		p.Deletes = append(p.Deletes, key)
	}
}

// promote schedules an edit upload for promotion and returns the key the
// merged document should reference.
func (p *MigrationPlan) promote(key string) string {
	to := blob.PromoteEditKey(key)
	p.Moves = append(p.Moves, Move{From: key, To: to})
	return to
}

// PlanSubmit reconciles a lesson's edit snapshot against its live fields.
// It returns the migration plan and the merged lesson document with every
// promoted asset already pointing at its post-move key. The input lesson is
// not modified.
func PlanSubmit(lesson *models.Lesson) (MigrationPlan, *models.Lesson, error) {
	var plan MigrationPlan

	if !lesson.MidEdit || lesson.EditData == nil {
		return plan, nil, fmt.Errorf("lesson %s has no open edit session: %w",
			lesson.ID.Hex(), apperrors.InvalidTransition("submit requires an open edit session"))
	}

	merged := *lesson
	edit := lesson.EditData
	newParts := clonePartsForMerge(edit.Parts)

	for i := range newParts {
		part := &newParts[i]
		old := lesson.Part(part.ID)
		if old == nil {
			if err := planNewPart(&plan, lesson, part); err != nil {
				return MigrationPlan{}, nil, err
			}
			continue
		}
		if err := planExistingPart(&plan, lesson, old, part); err != nil {
			return MigrationPlan{}, nil, err
		}
	}

	// Parts dropped from the edit copy lose their assets.
	for i := range lesson.Parts {
		if edit.Part(lesson.Parts[i].ID) == nil {
			planDeletedPart(&plan, &lesson.Parts[i])
		}
	}

	thumbnail, err := planLessonAsset(&plan, lesson, lesson.Thumbnail, edit.Thumbnail)
	if err != nil {
		return MigrationPlan{}, nil, fmt.Errorf("thumbnail: %w", err)
	}
	descriptionFile, err := planLessonAsset(&plan, lesson, lesson.DescriptionFile, edit.DescriptionFile)
	if err != nil {
		return MigrationPlan{}, nil, fmt.Errorf("description file: %w", err)
	}

	// Scalar fields only move over when the edit copy actually holds a value.
	if edit.Title != "" {
		merged.Title = edit.Title
	}
	if edit.Description != "" {
		merged.Description = edit.Description
	}
	if len(edit.Categories) > 0 {
		merged.Categories = edit.Categories
	}
	if edit.Credit != "" {
		merged.Credit = edit.Credit
	}
	merged.Thumbnail = thumbnail
	merged.DescriptionFile = descriptionFile
	merged.Parts = newParts
	merged.EditData = nil
	merged.MidEdit = false

	return plan, &merged, nil
}

// planNewPart handles a part that exists only in the edit copy: every
// uploaded asset it references gets promoted.
func planNewPart(plan *MigrationPlan, lesson *models.Lesson, part *models.Part) error {
	if part.Type == models.PartTypePanoramic {
		if part.GCPPath != "" {
			promoted, err := promoteUpload(plan, lesson, part.GCPPath)
			if err != nil {
				return fmt.Errorf("part %s panorama: %w", part.ID, err)
			}
			part.GCPPath = promoted
		}
		return nil
	}
	for i := range part.Screens {
		s := &part.Screens[i]
		if !s.IsMedia() {
			continue
		}
		promoted, err := promoteUpload(plan, lesson, s.URL)
		if err != nil {
			return fmt.Errorf("part %s screen %d: %w", part.ID, i, err)
		}
		s.URL = promoted
	}
	return nil
}

// planExistingPart diffs one surviving part against its live version.
func planExistingPart(plan *MigrationPlan, lesson *models.Lesson, old, part *models.Part) error {
	if part.Type == models.PartTypePanoramic {
		if old.GCPPath == part.GCPPath {
			return nil
		}
		plan.deleteKey(old.GCPPath)
		if part.GCPPath != "" {
			promoted, err := promoteUpload(plan, lesson, part.GCPPath)
			if err != nil {
				return fmt.Errorf("part %s panorama: %w", part.ID, err)
			}
			part.GCPPath = promoted
		}
		return nil
	}

	for i := range part.Screens {
		s := &part.Screens[i]
		var oldScreen *models.Screen
		if i < len(old.Screens) {
			oldScreen = &old.Screens[i]
		}

		oldMedia := oldScreen != nil && oldScreen.IsMedia()
		newMedia := s.IsMedia()

		switch {
		case oldMedia && !newMedia:
			// Uploaded asset replaced by a link or cleared.
			plan.deleteKey(oldScreen.URL)
		case !oldMedia && newMedia:
			promoted, err := promoteUpload(plan, lesson, s.URL)
			if err != nil {
				return fmt.Errorf("part %s screen %d: %w", part.ID, i, err)
			}
			s.URL = promoted
		case oldMedia && newMedia && oldScreen.URL != s.URL:
			plan.deleteKey(oldScreen.URL)
			promoted, err := promoteUpload(plan, lesson, s.URL)
			if err != nil {
				return fmt.Errorf("part %s screen %d: %w", part.ID, i, err)
			}
			s.URL = promoted
		}
	}
	return nil
}

// planDeletedPart drops every asset of a part removed by the edit.
func planDeletedPart(plan *MigrationPlan, part *models.Part) {
	if part.Type == models.PartTypePanoramic {
		plan.deleteKey(part.GCPPath)
		return
	}
	for i := range part.Screens {
		if part.Screens[i].IsMedia() {
			plan.deleteKey(part.Screens[i].URL)
		}
	}
}

// planLessonAsset diffs a lesson-level asset (thumbnail, description file)
// and returns the merged key.
func planLessonAsset(plan *MigrationPlan, lesson *models.Lesson, oldKey, newKey string) (string, error) {
	if oldKey == newKey {
		return oldKey, nil
	}
	plan.deleteKey(oldKey)
	if newKey == "" {
		return "", nil
	}
	return promoteUpload(plan, lesson, newKey)
}

// promoteUpload validates that key is a fresh upload inside this lesson's
// edit folder and schedules its promotion. A key already under lessons/ is
// passed through untouched (the screen kept its asset).
func promoteUpload(plan *MigrationPlan, lesson *models.Lesson, key string) (string, error) {
	if !blob.IsEditKey(key) {
		// Unchanged asset carried over from the live document.
		return key, nil
	}
	if err := blob.ValidateEditKey(key, lesson.ID); err != nil {
		return "", err
	}
	return plan.promote(key), nil
}

func clonePartsForMerge(parts []models.Part) []models.Part {
	out := make([]models.Part, len(parts))
	for i, p := range parts {
		out[i] = p
		out[i].Screens = append([]models.Screen(nil), p.Screens...)
	}
	return out
}
