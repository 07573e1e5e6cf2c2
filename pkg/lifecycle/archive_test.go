package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/store"
)

func TestArchiveStampsArchiveMetadata(t *testing.T) {
	m, fs, fb, caller := newTestMachine()
	published := *publishableDraft()
	published.MidEdit = true
	published.EditData = published.NewEditData(caller.ID, testNow())
	fs.put(store.CollPublishedLessons, published)

	archived, err := m.Archive(context.Background(), caller, published.ID)
	require.NoError(t, err)

	require.NotNil(t, archived.ArchiveAt)
	require.NotNil(t, archived.ArchiveBy)
	assert.Equal(t, testNow(), *archived.ArchiveAt)
	assert.Equal(t, caller.ID, *archived.ArchiveBy)

	// The open edit session is discarded by the move and its staged uploads
	// cleaned.
	assert.False(t, archived.MidEdit)
	assert.Nil(t, archived.EditData)
	assert.Contains(t, fb.prefixes, blob.LessonEditFolder(published.ID))

	// The document moved collections.
	_, stillPublished := fs.find(store.CollPublishedLessons, bson.M{"_id": published.ID})
	assert.False(t, stillPublished)
	_, inArchive := fs.find(store.CollArchivedLessons, bson.M{"_id": published.ID})
	assert.True(t, inArchive)
}

func TestArchiveRestoreRoundTripsFields(t *testing.T) {
	m, fs, _, caller := newTestMachine()
	published := *publishableDraft()
	published.DescriptionFile = "lessons/" + published.ID.Hex() + "/desc.pdf"
	published.Credit = "Dr. Vessel"
	published.Public = true
	published.Viewed = 41
	fs.put(store.CollPublishedLessons, published)

	_, err := m.Archive(context.Background(), caller, published.ID)
	require.NoError(t, err)

	restored, err := m.Restore(context.Background(), caller, published.ID)
	require.NoError(t, err)

	// Archive metadata is dropped; everything else survives the round trip.
	assert.Nil(t, restored.ArchiveAt)
	assert.Nil(t, restored.ArchiveBy)
	want := published
	want.UpdatedAt = testNow()
	assert.Equal(t, want, *restored)

	_, inArchive := fs.find(store.CollArchivedLessons, bson.M{"_id": published.ID})
	assert.False(t, inArchive)
	stored, ok := fs.find(store.CollPublishedLessons, bson.M{"_id": published.ID})
	require.True(t, ok)
	assert.Equal(t, want, stored)
}

func TestRestoreDuplicateConflictRollsBack(t *testing.T) {
	m, fs, _, caller := newTestMachine()
	published := *publishableDraft()
	now := testNow()
	callerID := caller.ID
	archivedCopy := published
	archivedCopy.ArchiveAt = &now
	archivedCopy.ArchiveBy = &callerID

	// The same lesson id is live again, e.g. republished while archived.
	fs.put(store.CollPublishedLessons, published)
	fs.put(store.CollArchivedLessons, archivedCopy)

	_, err := m.Restore(context.Background(), caller, published.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	// The transaction rolled the removal back.
	stored, ok := fs.find(store.CollArchivedLessons, bson.M{"_id": published.ID})
	require.True(t, ok)
	assert.Equal(t, archivedCopy, stored)
}

func TestArchiveWithoutGrantForbidden(t *testing.T) {
	m, fs, _, _ := newTestMachine()
	published := *publishableDraft()
	fs.put(store.CollPublishedLessons, published)

	// A caller whose role has no grant for published lessons at all.
	stranger := staffCaller(fs, 3)
	stranger.Role.Permissions = nil

	_, err := m.Archive(context.Background(), stranger, published.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}
