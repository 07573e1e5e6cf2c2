package blob

import (
	"fmt"
	"path"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Top-level folders of the bucket.
const (
	FolderLessons     = "lessons"
	FolderLessonEdits = "lesson_edits"
	FolderAccounts    = "accounts"
)

// ScreenSide names a screen slot in upload keys.
type ScreenSide string

const (
	SideLeft   ScreenSide = "left"
	SideCenter ScreenSide = "center"
	SideRight  ScreenSide = "right"
)

// SideForIndex maps a screen slot index to its side name.
func SideForIndex(i int) (ScreenSide, error) {
	switch i {
	case 0:
		return SideLeft, nil
	case 1:
		return SideCenter, nil
	case 2:
		return SideRight, nil
	default:
		return "", fmt.Errorf("no screen side for index %d", i)
	}
}

// LessonFolder is the prefix holding a lesson's live assets.
func LessonFolder(lessonID primitive.ObjectID) string {
	return FolderLessons + "/" + lessonID.Hex() + "/"
}

// LessonEditFolder is the prefix holding a lesson's in-flight edit uploads.
func LessonEditFolder(lessonID primitive.ObjectID) string {
	return FolderLessonEdits + "/" + lessonID.Hex() + "/"
}

// AccountFolder is the prefix holding an institution's assets.
func AccountFolder(accountID primitive.ObjectID) string {
	return FolderAccounts + "/" + accountID.Hex() + "/"
}

// EditScreenKey builds the upload key for a screen asset inside an edit
// session. The timestamp keeps re-uploads of the same slot from colliding.
func EditScreenKey(lessonID primitive.ObjectID, partID string, side ScreenSide, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s-%d%s",
		FolderLessonEdits, lessonID.Hex(), partID, side, now.UnixMilli(), normalizeExt(ext))
}

// EditPartAssetKey builds the upload key for a part-level asset (panorama).
func EditPartAssetKey(lessonID primitive.ObjectID, partID, name, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s-%d%s",
		FolderLessonEdits, lessonID.Hex(), partID, name, now.UnixMilli(), normalizeExt(ext))
}

// EditLessonAssetKey builds the upload key for a lesson-level asset
// (thumbnail, description file).
func EditLessonAssetKey(lessonID primitive.ObjectID, name, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%d%s",
		FolderLessonEdits, lessonID.Hex(), name, now.UnixMilli(), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// ValidateEditKey checks that a client-supplied key is a well-formed object
// key inside the given lesson's edit folder. Everything a client hands back
// to the service (screen URLs, thumbnails) passes through here before the
// submit reconciliation will touch it.
func ValidateEditKey(key string, lessonID primitive.ObjectID) error {
	prefix := LessonEditFolder(lessonID)
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("key %q is outside the edit folder of lesson %s", key, lessonID.Hex())
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key %q does not name an object", key)
	}
	if path.Clean("/"+rest) != "/"+rest {
		return fmt.Errorf("key %q is not in canonical form", key)
	}
	return nil
}

// IsEditKey reports whether key lives under any lesson's edit folder.
func IsEditKey(key string) bool {
	return strings.HasPrefix(key, FolderLessonEdits+"/")
}

// PromoteEditKey rewrites an edit-folder key to its published location,
// keeping the tail intact.
func PromoteEditKey(key string) string {
	if !IsEditKey(key) {
		return key
	}
	return FolderLessons + strings.TrimPrefix(key, FolderLessonEdits)
}

// RewriteLessonID swaps the first occurrence of oldID for newID in a key or
// URL. Lesson duplication uses it to point copied documents at the copied
// assets.
func RewriteLessonID(key string, oldID, newID primitive.ObjectID) string {
	return strings.Replace(key, oldID.Hex(), newID.Hex(), 1)
}
