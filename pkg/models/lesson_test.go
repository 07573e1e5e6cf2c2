package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewPart(t *testing.T) {
	normal := NewPart(PartTypeNormal, 0)
	assert.NotEmpty(t, normal.ID)
	assert.Len(t, normal.Screens, NormalScreenCount)
	assert.NoError(t, normal.Validate())

	pano := NewPart(PartTypePanoramic, 1)
	assert.Empty(t, pano.Screens)
	assert.NoError(t, pano.Validate())
}

func TestPartValidate(t *testing.T) {
	p := NewPart(PartTypeNormal, 0)
	p.Screens = p.Screens[:2]
	assert.Error(t, p.Validate())

	p = NewPart(PartTypeNormal, 0)
	p.GCPPath = "lessons/x/p/pano.jpg"
	assert.Error(t, p.Validate())

	p = NewPart(PartTypePanoramic, 0)
	p.GCPPath = "lessons/x/p/pano.jpg"
	p.PanoramicURL = "https://example.com/pano"
	assert.Error(t, p.Validate())

	p = Part{ID: "x", Type: "weird"}
	assert.Error(t, p.Validate())
}

func TestPartReadyToPublish(t *testing.T) {
	p := NewPart(PartTypeNormal, 0)
	assert.False(t, p.ReadyToPublish())

	for i := range p.Screens {
		p.Screens[i] = Screen{URL: "https://cdn.example.com/a", Type: ScreenTypeImage, MimeType: "image/png"}
	}
	assert.True(t, p.ReadyToPublish())

	pano := NewPart(PartTypePanoramic, 1)
	assert.False(t, pano.ReadyToPublish())
	pano.PanoramicURL = "https://example.com/pano"
	assert.True(t, pano.ReadyToPublish())

	pano.PanoramicURL = ""
	pano.GCPPath = "lessons/x/p/pano.jpg"
	assert.True(t, pano.ReadyToPublish())
}

func TestScreenIsMedia(t *testing.T) {
	media := Screen{URL: "lessons/x/p/left-1.mp4", Type: ScreenTypeVideo, MimeType: "video/mp4"}
	link := Screen{URL: "https://example.com", Type: ScreenTypeBrowser}
	empty := Screen{}

	assert.True(t, media.IsMedia())
	assert.False(t, link.IsMedia())
	assert.False(t, empty.IsMedia())
}

func TestNewEditDataIsDeepCopy(t *testing.T) {
	editor := primitive.NewObjectID()
	lesson := Lesson{
		Title:       "Anatomy 101",
		Description: "Intro",
		Parts:       []Part{NewPart(PartTypeNormal, 0)},
		Categories:  []primitive.ObjectID{primitive.NewObjectID()},
		Thumbnail:   "lessons/x/thumb.png",
		Credit:      "Prof. A",
	}
	lesson.Parts[0].Screens[0] = Screen{URL: "lessons/x/p/left-1.png", MimeType: "image/png", Type: ScreenTypeImage}

	edit := lesson.NewEditData(editor, time.Now().UTC())

	require.Equal(t, editor, edit.InitialEditor)
	require.Equal(t, editor, edit.CurrentEditor)
	assert.Equal(t, lesson.Title, edit.Title)
	assert.Equal(t, lesson.Parts, edit.Parts)

	// Mutating the shadow copy must not touch the live document.
	edit.Parts[0].Screens[0].URL = "changed"
	edit.Categories[0] = primitive.NewObjectID()
	assert.Equal(t, "lessons/x/p/left-1.png", lesson.Parts[0].Screens[0].URL)
	assert.NotEqual(t, edit.Categories[0], lesson.Categories[0])
}

func TestEditDataPartLookup(t *testing.T) {
	a := NewPart(PartTypeNormal, 0)
	b := NewPart(PartTypePanoramic, 1)
	edit := EditData{Parts: []Part{a, b}}

	require.NotNil(t, edit.Part(b.ID))
	assert.Equal(t, PartTypePanoramic, edit.Part(b.ID).Type)
	assert.Nil(t, edit.Part("missing"))
}

func TestUserValidate(t *testing.T) {
	role := primitive.NewObjectID()

	u := User{Email: "User@Example.com", RoleID: role}
	assert.NoError(t, u.Validate())

	u = User{RoleID: role}
	assert.Error(t, u.Validate())

	u = User{Email: "a@b.c"}
	assert.Error(t, u.Validate())

	account := primitive.NewObjectID()
	u = User{Email: "a@b.c", RoleID: role, Role: &Role{InternalName: RoleEditor, RequireAccount: true}}
	assert.Error(t, u.Validate())
	u.AccountID = &account
	assert.NoError(t, u.Validate())
}

func TestReviewValidate(t *testing.T) {
	r := Review{Lesson: primitive.NewObjectID(), Stars: 4}
	assert.NoError(t, r.Validate())

	r.Stars = 0
	assert.Error(t, r.Validate())
	r.Stars = 6
	assert.Error(t, r.Validate())

	r = Review{Stars: 3}
	assert.Error(t, r.Validate())
}
