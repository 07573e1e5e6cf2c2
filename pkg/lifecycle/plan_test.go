package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
)

func mediaScreen(url string) models.Screen {
	return models.Screen{URL: url, Type: models.ScreenTypeVideo, MimeType: "video/mp4"}
}

func linkScreen(url string) models.Screen {
	return models.Screen{URL: url, Type: models.ScreenTypeBrowser}
}

// editableLesson builds a published lesson mid-edit whose snapshot is an
// exact copy of the live fields.
func editableLesson() *models.Lesson {
	lessonID := primitive.NewObjectID()
	editor := primitive.NewObjectID()
	part := models.NewPart(models.PartTypeNormal, 0)
	live := "lessons/" + lessonID.Hex() + "/" + part.ID + "/"
	part.Screens[0] = mediaScreen(live + "left-1.mp4")
	part.Screens[1] = mediaScreen(live + "center-1.mp4")
	part.Screens[2] = linkScreen("https://example.com/sim")

	lesson := &models.Lesson{
		ID:          lessonID,
		Title:       "Skeletal system",
		Description: "Bones",
		Creator:     editor,
		Parts:       []models.Part{part},
		Categories:  []primitive.ObjectID{primitive.NewObjectID()},
		Thumbnail:   "lessons/" + lessonID.Hex() + "/thumbnail-1.png",
	}
	lesson.MidEdit = true
	lesson.EditData = lesson.NewEditData(editor, testNow())
	return lesson
}

func editKey(lesson *models.Lesson, tail string) string {
	return "lesson_edits/" + lesson.ID.Hex() + "/" + tail
}

func TestPlanSubmitNoChanges(t *testing.T) {
	lesson := editableLesson()

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.False(t, merged.MidEdit)
	assert.Nil(t, merged.EditData)
	assert.Equal(t, lesson.Title, merged.Title)
	assert.Equal(t, lesson.Parts, merged.Parts)

	// The input lesson is untouched.
	assert.True(t, lesson.MidEdit)
	assert.NotNil(t, lesson.EditData)
}

func TestPlanSubmitRequiresOpenSession(t *testing.T) {
	lesson := editableLesson()
	lesson.MidEdit = false
	lesson.EditData = nil

	_, _, err := PlanSubmit(lesson)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestPlanSubmitMediaReplacedByLink(t *testing.T) {
	lesson := editableLesson()
	oldURL := lesson.Parts[0].Screens[0].URL
	lesson.EditData.Parts[0].Screens[0] = linkScreen("https://example.com/new")

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	// Exactly one delete, zero moves.
	assert.Equal(t, []string{oldURL}, plan.Deletes)
	assert.Empty(t, plan.Moves)
	assert.Equal(t, "https://example.com/new", merged.Parts[0].Screens[0].URL)
}

func TestPlanSubmitLinkReplacedByUpload(t *testing.T) {
	lesson := editableLesson()
	partID := lesson.Parts[0].ID
	upload := editKey(lesson, partID+"/right-9.mp4")
	lesson.EditData.Parts[0].Screens[2] = mediaScreen(upload)

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Empty(t, plan.Deletes)
	require.Len(t, plan.Moves, 1)
	promoted := "lessons/" + lesson.ID.Hex() + "/" + partID + "/right-9.mp4"
	assert.Equal(t, Move{From: upload, To: promoted}, plan.Moves[0])
	assert.Equal(t, promoted, merged.Parts[0].Screens[2].URL)
}

func TestPlanSubmitMediaReplacedByUpload(t *testing.T) {
	lesson := editableLesson()
	partID := lesson.Parts[0].ID
	oldURL := lesson.Parts[0].Screens[1].URL
	upload := editKey(lesson, partID+"/center-9.mp4")
	lesson.EditData.Parts[0].Screens[1] = mediaScreen(upload)

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Equal(t, []string{oldURL}, plan.Deletes)
	require.Len(t, plan.Moves, 1)
	assert.Equal(t, upload, plan.Moves[0].From)
	assert.Equal(t, plan.Moves[0].To, merged.Parts[0].Screens[1].URL)
}

func TestPlanSubmitNewPartPromotesEverything(t *testing.T) {
	lesson := editableLesson()
	newPart := models.NewPart(models.PartTypeNormal, 1)
	newPart.Screens[0] = mediaScreen(editKey(lesson, newPart.ID+"/left-1.mp4"))
	newPart.Screens[1] = linkScreen("https://example.com/x")
	newPart.Screens[2] = mediaScreen(editKey(lesson, newPart.ID+"/right-1.mp4"))
	lesson.EditData.Parts = append(lesson.EditData.Parts, newPart)

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Empty(t, plan.Deletes)
	assert.Len(t, plan.Moves, 2)
	require.Len(t, merged.Parts, 2)
	for _, mv := range plan.Moves {
		assert.Contains(t, mv.To, "lessons/"+lesson.ID.Hex()+"/")
	}
	assert.Equal(t, plan.Moves[0].To, merged.Parts[1].Screens[0].URL)
	assert.Equal(t, plan.Moves[1].To, merged.Parts[1].Screens[2].URL)
}

func TestPlanSubmitNewPanoramicPart(t *testing.T) {
	lesson := editableLesson()
	pano := models.NewPart(models.PartTypePanoramic, 1)
	pano.GCPPath = editKey(lesson, pano.ID+"/panorama-1.jpg")
	lesson.EditData.Parts = append(lesson.EditData.Parts, pano)

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	require.Len(t, plan.Moves, 1)
	assert.Equal(t, plan.Moves[0].To, merged.Parts[1].GCPPath)
}

func TestPlanSubmitReplacedPanorama(t *testing.T) {
	lesson := editableLesson()
	pano := models.NewPart(models.PartTypePanoramic, 1)
	pano.GCPPath = "lessons/" + lesson.ID.Hex() + "/" + pano.ID + "/panorama-1.jpg"
	lesson.Parts = append(lesson.Parts, pano)
	lesson.EditData = lesson.NewEditData(lesson.EditData.InitialEditor, testNow())

	upload := editKey(lesson, pano.ID+"/panorama-2.jpg")
	lesson.EditData.Part(pano.ID).GCPPath = upload

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Equal(t, []string{pano.GCPPath}, plan.Deletes)
	require.Len(t, plan.Moves, 1)
	assert.Equal(t, plan.Moves[0].To, merged.Parts[1].GCPPath)
}

func TestPlanSubmitPanoramaSwitchedToExternalURL(t *testing.T) {
	lesson := editableLesson()
	pano := models.NewPart(models.PartTypePanoramic, 1)
	pano.GCPPath = "lessons/" + lesson.ID.Hex() + "/" + pano.ID + "/panorama-1.jpg"
	lesson.Parts = append(lesson.Parts, pano)
	lesson.EditData = lesson.NewEditData(lesson.EditData.InitialEditor, testNow())

	edited := lesson.EditData.Part(pano.ID)
	edited.GCPPath = ""
	edited.PanoramicURL = "https://example.com/pano"

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Equal(t, []string{pano.GCPPath}, plan.Deletes)
	assert.Empty(t, plan.Moves)
	assert.Empty(t, merged.Parts[1].GCPPath)
}

func TestPlanSubmitDeletedPartDropsAssets(t *testing.T) {
	lesson := editableLesson()
	removedMedia := []string{
		lesson.Parts[0].Screens[0].URL,
		lesson.Parts[0].Screens[1].URL,
	}
	lesson.EditData.Parts = nil

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.ElementsMatch(t, removedMedia, plan.Deletes)
	assert.Empty(t, plan.Moves)
	assert.Empty(t, merged.Parts)
}

func TestPlanSubmitThumbnailAndDescriptionFile(t *testing.T) {
	lesson := editableLesson()
	oldThumb := lesson.Thumbnail
	newThumb := editKey(lesson, "thumbnail-2.png")
	lesson.EditData.Thumbnail = newThumb
	newDesc := editKey(lesson, "description-1.pdf")
	lesson.EditData.DescriptionFile = newDesc

	plan, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Equal(t, []string{oldThumb}, plan.Deletes)
	require.Len(t, plan.Moves, 2)
	assert.Equal(t, "lessons/"+lesson.ID.Hex()+"/thumbnail-2.png", merged.Thumbnail)
	assert.Equal(t, "lessons/"+lesson.ID.Hex()+"/description-1.pdf", merged.DescriptionFile)
}

func TestPlanSubmitScalarFieldsOnlyWhenSet(t *testing.T) {
	lesson := editableLesson()
	lesson.EditData.Title = "New title"
	lesson.EditData.Description = "" // cleared in the snapshot: keep live value
	lesson.EditData.Credit = "Prof. B"

	_, merged, err := PlanSubmit(lesson)
	require.NoError(t, err)

	assert.Equal(t, "New title", merged.Title)
	assert.Equal(t, lesson.Description, merged.Description)
	assert.Equal(t, "Prof. B", merged.Credit)
}

func TestPlanSubmitRejectsForeignUpload(t *testing.T) {
	lesson := editableLesson()
	foreign := "lesson_edits/" + primitive.NewObjectID().Hex() + "/x/left-1.mp4"
	lesson.EditData.Parts[0].Screens[0] = mediaScreen(foreign)

	_, _, err := PlanSubmit(lesson)
	assert.Error(t, err)
}

func TestMigrationPlanEmpty(t *testing.T) {
	var p MigrationPlan
	assert.True(t, p.Empty())
	p.deleteKey("k")
	assert.False(t, p.Empty())
	p.deleteKey("")
	assert.Len(t, p.Deletes, 1)
}
