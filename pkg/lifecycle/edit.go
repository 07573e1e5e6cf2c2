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

// CanSeize decides whether a caller may take over an edit session opened by
// another editor: only when the session's initial editor is less privileged
// (higher rank number), or when the caller holds the superuser rank 0.
func CanSeize(callerRank, initialEditorRank int) bool {
	return initialEditorRank > callerRank || callerRank == 0
}

// StartEdit opens an edit session on a published lesson, or joins/seizes an
// existing one. Returns the lesson with its edit snapshot populated.
func (m *Machine) StartEdit(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	lesson, err := m.loadLesson(ctx, caller, models.ResourcePublishedLessons, models.ActionUpdate, lessonID)
	if err != nil {
		return nil, err
	}
	log := m.opLogger("start_edit", caller, lessonID)

	if !lesson.MidEdit || lesson.EditData == nil {
		return m.openEditSession(ctx, caller, lesson, log)
	}

	// Session already open.
	if lesson.EditData.CurrentEditor == caller.ID {
		log.Debug("caller already holds the edit session")
		return lesson, nil
	}
	if lesson.EditData.InitialEditor == caller.ID {
		// The opener's session was seized; they see who holds it now and
		// wait for the hand-back rather than seizing it back.
		log.Debug("initial editor observed a seized session")
		return lesson, nil
	}
	return m.seizeEditSession(ctx, caller, lesson, log)
}

// openEditSession snapshots the live fields into edit_data. The filter
// asserts mid_edit is still false, so two racing callers cannot both open a
// session; the loser sees Conflict.
func (m *Machine) openEditSession(ctx context.Context, caller *models.User, lesson *models.Lesson, log *logrus.Entry) (*models.Lesson, error) {
	edit := lesson.NewEditData(caller.ID, m.now())

	var prev models.Lesson
	err := m.store.FindOneAndUpdate(ctx, store.CollPublishedLessons,
		bson.M{"_id": lesson.ID, "mid_edit": false},
		bson.M{"$set": bson.M{"mid_edit": true, "edit_data": edit, "updated_at": m.now()}},
		&prev)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("edit session raced: %w", apperrors.Conflict("another editor opened the session first"))
		}
		return nil, fmt.Errorf("open edit session: %w", err)
	}

	lesson.MidEdit = true
	lesson.EditData = edit
	log.Info("edit session opened")
	return lesson, nil
}

// seizeEditSession moves session ownership to the caller when ranks allow.
// The CAS filter pins the editor observed at load time; if ownership moved
// in between, the caller gets Conflict rather than stomping the new owner.
func (m *Machine) seizeEditSession(ctx context.Context, caller *models.User, lesson *models.Lesson, log *logrus.Entry) (*models.Lesson, error) {
	if caller.Role == nil {
		return nil, fmt.Errorf("seize edit session: caller must be resolved")
	}

	initialEditor, err := m.store.GetUser(ctx, lesson.EditData.InitialEditor)
	if err != nil {
		return nil, fmt.Errorf("load initial editor: %w", err)
	}
	initialRole, err := m.store.GetRole(ctx, initialEditor.RoleID)
	if err != nil {
		return nil, fmt.Errorf("load initial editor role: %w", err)
	}

	if !CanSeize(caller.Role.Rank, initialRole.Rank) {
		return nil, fmt.Errorf("editor %s outranks caller: %w", initialEditor.ID.Hex(),
			apperrors.Forbidden("cannot seize this edit session"))
	}

	observedEditor := lesson.EditData.CurrentEditor
	var prev models.Lesson
	err = m.store.FindOneAndUpdate(ctx, store.CollPublishedLessons,
		bson.M{
			"_id":                      lesson.ID,
			"mid_edit":                 true,
			"edit_data.current_editor": observedEditor,
		},
		bson.M{"$set": bson.M{"edit_data.current_editor": caller.ID, "updated_at": m.now()}},
		&prev)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("session ownership changed: %w", apperrors.Conflict("edit session moved"))
		}
		return nil, fmt.Errorf("seize edit session: %w", err)
	}

	lesson.EditData.CurrentEditor = caller.ID
	log.WithField("seized_from", observedEditor.Hex()).Info("edit session seized")
	return lesson, nil
}

// ReturnToInitialEditor hands the session back to whoever opened it. Only
// the current owner can hand it back.
func (m *Machine) ReturnToInitialEditor(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) error {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}
	if lesson.EditData.InitialEditor == caller.ID {
		return nil
	}
	return m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.current_editor": lesson.EditData.InitialEditor, "updated_at": m.now()},
	})
}

// DiscardEdit abandons the session: the snapshot is dropped and every
// upload staged in the edit folder is removed.
func (m *Machine) DiscardEdit(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) error {
	if _, err := m.loadEditable(ctx, caller, lessonID); err != nil {
		return err
	}
	if err := m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set":   bson.M{"mid_edit": false, "updated_at": m.now()},
		"$unset": bson.M{"edit_data": ""},
	}); err != nil {
		return err
	}

	log := m.opLogger("discard_edit", caller, lessonID)
	if err := m.blob.DeletePrefix(ctx, blob.LessonEditFolder(lessonID)); err != nil {
		log.WithError(err).Error("edit folder cleanup failed")
		return apperrors.PartialFailure("edit discarded, staged uploads remain", err)
	}
	log.Info("edit session discarded")
	return nil
}

// EditInfo carries the lesson-level fields an edit session may change. Nil
// pointers leave the snapshot field untouched.
type EditInfo struct {
	Title           *string
	Description     *string
	DescriptionFile *string
	Categories      []primitive.ObjectID
	Thumbnail       *string
	Credit          *string
}

// UpdateEditInfo rewrites lesson-level fields of the snapshot. Incoming
// asset keys (thumbnail, description file) must live in this lesson's edit
// folder unless they are carried over unchanged.
func (m *Machine) UpdateEditInfo(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, info EditInfo) error {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": m.now()}
	if info.Title != nil {
		set["edit_data.title"] = *info.Title
	}
	if info.Description != nil {
		set["edit_data.description"] = *info.Description
	}
	if info.Categories != nil {
		set["edit_data.categories"] = info.Categories
	}
	if info.Credit != nil {
		set["edit_data.credit"] = *info.Credit
	}
	if info.Thumbnail != nil {
		if err := m.checkIncomingAsset(lesson, *info.Thumbnail, lesson.EditData.Thumbnail); err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		set["edit_data.thumbnail"] = *info.Thumbnail
	}
	if info.DescriptionFile != nil {
		if err := m.checkIncomingAsset(lesson, *info.DescriptionFile, lesson.EditData.DescriptionFile); err != nil {
			return fmt.Errorf("description file: %w", err)
		}
		set["edit_data.description_file"] = *info.DescriptionFile
	}

	return m.casEditUpdate(ctx, caller, lessonID, bson.M{"$set": set})
}

// UpdateScreen replaces one screen slot of a normal part in the snapshot.
func (m *Machine) UpdateScreen(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, partID string, screenIndex int, screen models.Screen) error {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}

	part := lesson.EditData.Part(partID)
	if part == nil {
		return fmt.Errorf("part %s: %w", partID, apperrors.NotFound("no such part in edit session"))
	}
	if part.Type != models.PartTypeNormal {
		return fmt.Errorf("part %s: %w", partID, apperrors.InvalidTransition("screens belong to normal parts"))
	}
	if screenIndex < 0 || screenIndex >= len(part.Screens) {
		return fmt.Errorf("part %s has no screen %d: %w", partID, screenIndex, apperrors.NotFound("no such screen"))
	}
	if screen.IsMedia() {
		if err := m.checkIncomingAsset(lesson, screen.URL, part.Screens[screenIndex].URL); err != nil {
			return fmt.Errorf("screen %d: %w", screenIndex, err)
		}
	}

	part.Screens[screenIndex] = screen
	return m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.parts": lesson.EditData.Parts, "updated_at": m.now()},
	})
}

// UpdatePanoramic replaces the panorama of a panoramic part in the snapshot.
// Exactly one of assetKey and externalURL may be non-empty.
func (m *Machine) UpdatePanoramic(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, partID, assetKey, externalURL string) error {
	if assetKey != "" && externalURL != "" {
		return fmt.Errorf("part %s: %w", partID,
			apperrors.InvalidTransition("panorama takes an asset or an external URL, not both"))
	}

	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}
	part := lesson.EditData.Part(partID)
	if part == nil {
		return fmt.Errorf("part %s: %w", partID, apperrors.NotFound("no such part in edit session"))
	}
	if part.Type != models.PartTypePanoramic {
		return fmt.Errorf("part %s: %w", partID, apperrors.InvalidTransition("part is not panoramic"))
	}
	if assetKey != "" {
		if err := m.checkIncomingAsset(lesson, assetKey, part.GCPPath); err != nil {
			return fmt.Errorf("panorama: %w", err)
		}
	}

	part.GCPPath = assetKey
	part.PanoramicURL = externalURL
	return m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.parts": lesson.EditData.Parts, "updated_at": m.now()},
	})
}

// AddPart appends a fresh part to the snapshot and returns it.
func (m *Machine) AddPart(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, partType models.PartType, title string) (*models.Part, error) {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return nil, err
	}

	part := models.NewPart(partType, len(lesson.EditData.Parts))
	part.Title = title
	if err := part.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.InvalidTransition("malformed part"), err)
	}

	lesson.EditData.Parts = append(lesson.EditData.Parts, part)
	err = m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.parts": lesson.EditData.Parts, "updated_at": m.now()},
	})
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// RemovePart drops a part from the snapshot and renumbers the remainder.
// Its staged uploads stay in the edit folder; submit or discard clean them.
func (m *Machine) RemovePart(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, partID string) error {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}

	parts := lesson.EditData.Parts
	idx := -1
	for i := range parts {
		if parts[i].ID == partID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("part %s: %w", partID, apperrors.NotFound("no such part in edit session"))
	}

	parts = append(parts[:idx], parts[idx+1:]...)
	for i := range parts {
		parts[i].Order = i
	}
	lesson.EditData.Parts = parts

	return m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.parts": parts, "updated_at": m.now()},
	})
}

// ReorderParts applies a new order given the full list of part ids.
func (m *Machine) ReorderParts(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, partIDs []string) error {
	lesson, err := m.loadEditable(ctx, caller, lessonID)
	if err != nil {
		return err
	}
	if len(partIDs) != len(lesson.EditData.Parts) {
		return fmt.Errorf("got %d ids for %d parts: %w", len(partIDs), len(lesson.EditData.Parts),
			apperrors.InvalidTransition("reorder must list every part exactly once"))
	}

	reordered := make([]models.Part, 0, len(partIDs))
	for i, id := range partIDs {
		part := lesson.EditData.Part(id)
		if part == nil {
			return fmt.Errorf("part %s: %w", id, apperrors.NotFound("no such part in edit session"))
		}
		p := *part
		p.Order = i
		reordered = append(reordered, p)
	}
	// Duplicate ids would shrink the set; the length check above plus this
	// uniqueness pass catches them.
	seen := make(map[string]struct{}, len(partIDs))
	for _, id := range partIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("part %s listed twice: %w", id, apperrors.InvalidTransition("duplicate part id"))
		}
		seen[id] = struct{}{}
	}

	lesson.EditData.Parts = reordered
	return m.casEditUpdate(ctx, caller, lessonID, bson.M{
		"$set": bson.M{"edit_data.parts": reordered, "updated_at": m.now()},
	})
}

// loadEditable loads a published lesson and asserts the caller owns its open
// edit session.
func (m *Machine) loadEditable(ctx context.Context, caller *models.User, lessonID primitive.ObjectID) (*models.Lesson, error) {
	lesson, err := m.loadLesson(ctx, caller, models.ResourcePublishedLessons, models.ActionUpdate, lessonID)
	if err != nil {
		return nil, err
	}
	if !lesson.MidEdit || lesson.EditData == nil {
		return nil, fmt.Errorf("lesson %s: %w", lessonID.Hex(),
			apperrors.InvalidTransition("no open edit session"))
	}
	if lesson.EditData.CurrentEditor != caller.ID {
		return nil, fmt.Errorf("lesson %s: %w", lessonID.Hex(),
			apperrors.Forbidden("edit session owned by another editor"))
	}
	return lesson, nil
}

// casEditUpdate persists a snapshot mutation under the ownership CAS: the
// update lands only while the caller is still the current editor.
func (m *Machine) casEditUpdate(ctx context.Context, caller *models.User, lessonID primitive.ObjectID, update bson.M) error {
	matched, err := m.store.UpdateOne(ctx, store.CollPublishedLessons,
		bson.M{
			"_id":                      lessonID,
			"mid_edit":                 true,
			"edit_data.current_editor": caller.ID,
		},
		update)
	if err != nil {
		return fmt.Errorf("persist edit: %w", err)
	}
	if !matched {
		return fmt.Errorf("lesson %s: %w", lessonID.Hex(),
			apperrors.Conflict("edit session was seized or closed"))
	}
	return nil
}

// checkIncomingAsset accepts an asset key that either carries over unchanged
// or names a fresh upload in this lesson's edit folder.
func (m *Machine) checkIncomingAsset(lesson *models.Lesson, key, current string) error {
	if key == "" || key == current {
		return nil
	}
	if !blob.IsEditKey(key) {
		return fmt.Errorf("key %q: %w", key, apperrors.InvalidTransition("asset must be uploaded to the edit folder"))
	}
	return blob.ValidateEditKey(key, lesson.ID)
}
