package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
)

func testNow() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func publishableDraft() *models.Lesson {
	part := models.NewPart(models.PartTypeNormal, 0)
	for i := range part.Screens {
		part.Screens[i] = models.Screen{
			URL: "lessons/x/p/s.mp4", Type: models.ScreenTypeVideo, MimeType: "video/mp4",
		}
	}
	return &models.Lesson{
		ID:          primitive.NewObjectID(),
		Title:       "Circulatory system",
		Description: "Heart and vessels",
		Creator:     primitive.NewObjectID(),
		Parts:       []models.Part{part},
		Categories:  []primitive.ObjectID{primitive.NewObjectID()},
		Thumbnail:   "lessons/x/thumb.png",
	}
}

func TestValidateForPublishAccepts(t *testing.T) {
	assert.NoError(t, ValidateForPublish(publishableDraft()))

	// A panoramic part with an external URL is enough.
	draft := publishableDraft()
	pano := models.NewPart(models.PartTypePanoramic, 1)
	pano.PanoramicURL = "https://example.com/pano"
	draft.Parts = append(draft.Parts, pano)
	assert.NoError(t, ValidateForPublish(draft))
}

func TestValidateForPublishRejectsMissingFields(t *testing.T) {
	strip := map[string]func(*models.Lesson){
		"title":       func(l *models.Lesson) { l.Title = "" },
		"description": func(l *models.Lesson) { l.Description = "" },
		"categories":  func(l *models.Lesson) { l.Categories = nil },
		"thumbnail":   func(l *models.Lesson) { l.Thumbnail = "" },
		"parts":       func(l *models.Lesson) { l.Parts = nil },
	}
	for name, mutate := range strip {
		t.Run(name, func(t *testing.T) {
			draft := publishableDraft()
			mutate(draft)
			err := ValidateForPublish(draft)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidTransition(err))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestValidateForPublishRejectsIncompleteParts(t *testing.T) {
	// Normal part with an empty screen slot.
	draft := publishableDraft()
	draft.Parts[0].Screens[2] = models.Screen{}
	err := ValidateForPublish(draft)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))

	// Panoramic part with neither asset nor URL.
	draft = publishableDraft()
	draft.Parts = append(draft.Parts, models.NewPart(models.PartTypePanoramic, 1))
	err = ValidateForPublish(draft)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))

	// Structurally broken part.
	draft = publishableDraft()
	draft.Parts[0].Screens = draft.Parts[0].Screens[:1]
	err = ValidateForPublish(draft)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err))
}
