package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScreenType classifies what a screen slot displays.
type ScreenType string

const (
	ScreenTypeVideo   ScreenType = "video"
	ScreenTypeImage   ScreenType = "img"
	ScreenTypeBrowser ScreenType = "browser"
)

// NormalScreenCount is the fixed number of screen slots in a normal part:
// left, center, right.
const NormalScreenCount = 3

// Screen is one display slot of a normal part. A screen backed by an
// uploaded asset carries a MimeType; a screen pointing at an external page
// does not.
type Screen struct {
	URL      string     `bson:"url" json:"url"`
	Type     ScreenType `bson:"type_" json:"type"`
	MimeType string     `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	Comment  string     `bson:"comment,omitempty" json:"comment,omitempty"`
}

// IsMedia reports whether the screen references an uploaded asset that the
// blob store owns, as opposed to an external link.
func (s *Screen) IsMedia() bool {
	return s.URL != "" && s.MimeType != ""
}

// PartType distinguishes the two part layouts.
type PartType string

const (
	PartTypeNormal    PartType = "normal"
	PartTypePanoramic PartType = "panoramic"
)

// Part is one segment of a lesson. Its ID is a uuid that stays stable across
// edit sessions so the submit reconciliation can match old and new versions
// of the same part.
type Part struct {
	ID           string   `bson:"id" json:"id"`
	Order        int      `bson:"order" json:"order"`
	Title        string   `bson:"title,omitempty" json:"title,omitempty"`
	Type         PartType `bson:"type" json:"type"`
	Screens      []Screen `bson:"screens" json:"screens"`
	GCPPath      string   `bson:"gcp_path,omitempty" json:"gcp_path,omitempty"`
	PanoramicURL string   `bson:"panoramic_url,omitempty" json:"panoramic_url,omitempty"`
}

// NewPart builds an empty part of the given type with a fresh id. Normal
// parts get their three empty screen slots.
func NewPart(t PartType, order int) Part {
	p := Part{ID: uuid.NewString(), Order: order, Type: t}
	if t == PartTypeNormal {
		p.Screens = make([]Screen, NormalScreenCount)
	}
	return p
}

// Validate checks the structural invariants of a part. Completeness (all
// screens populated) is a publish-time concern, not a structural one.
func (p *Part) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("part: id is required")
	}
	switch p.Type {
	case PartTypeNormal:
		if len(p.Screens) != NormalScreenCount {
			return fmt.Errorf("part %s: normal part needs exactly %d screens, has %d", p.ID, NormalScreenCount, len(p.Screens))
		}
		if p.GCPPath != "" || p.PanoramicURL != "" {
			return fmt.Errorf("part %s: normal part must not carry panoramic media", p.ID)
		}
	case PartTypePanoramic:
		if p.GCPPath != "" && p.PanoramicURL != "" {
			return fmt.Errorf("part %s: panoramic part cannot have both an asset and an external URL", p.ID)
		}
	default:
		return fmt.Errorf("part %s: unknown type %q", p.ID, p.Type)
	}
	return nil
}

// ReadyToPublish reports whether the part satisfies the publish gate: a
// normal part has all of its screens populated, a panoramic part has either
// an asset or an external URL.
func (p *Part) ReadyToPublish() bool {
	switch p.Type {
	case PartTypeNormal:
		if len(p.Screens) != NormalScreenCount {
			return false
		}
		for i := range p.Screens {
			if p.Screens[i].URL == "" {
				return false
			}
		}
		return true
	case PartTypePanoramic:
		return p.GCPPath != "" || p.PanoramicURL != ""
	default:
		return false
	}
}

// EditData is the shadow copy of a published lesson's editable fields plus
// the edit-session bookkeeping. The live document stays untouched until the
// session is submitted.
type EditData struct {
	InitialEditor   primitive.ObjectID   `bson:"initial_editor" json:"initial_editor"`
	CurrentEditor   primitive.ObjectID   `bson:"current_editor" json:"current_editor"`
	StartedAt       time.Time            `bson:"started_at" json:"started_at"`
	Title           string               `bson:"title" json:"title"`
	Description     string               `bson:"description" json:"description"`
	DescriptionFile string               `bson:"description_file,omitempty" json:"description_file,omitempty"`
	Parts           []Part               `bson:"parts" json:"parts"`
	Categories      []primitive.ObjectID `bson:"categories" json:"categories"`
	Thumbnail       string               `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Credit          string               `bson:"credit,omitempty" json:"credit,omitempty"`
}

// Part returns the edit copy's part with the given id, or nil.
func (e *EditData) Part(id string) *Part {
	for i := range e.Parts {
		if e.Parts[i].ID == id {
			return &e.Parts[i]
		}
	}
	return nil
}

// Lesson is the shared document shape of the drafts, published, and archived
// collections. ArchiveAt/ArchiveBy are set only in the archived collection.
type Lesson struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title           string               `bson:"title" json:"title"`
	Description     string               `bson:"description" json:"description"`
	DescriptionFile string               `bson:"description_file,omitempty" json:"description_file,omitempty"`
	Creator         primitive.ObjectID   `bson:"creator" json:"creator"`
	Parts           []Part               `bson:"parts" json:"parts"`
	Viewed          int64                `bson:"viewed" json:"viewed"`
	Categories      []primitive.ObjectID `bson:"categories" json:"categories"`
	Thumbnail       string               `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	MidEdit         bool                 `bson:"mid_edit" json:"mid_edit"`
	EditData        *EditData            `bson:"edit_data,omitempty" json:"edit_data,omitempty"`
	Public          bool                 `bson:"public" json:"public"`
	Credit          string               `bson:"credit,omitempty" json:"credit,omitempty"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`

	ArchiveAt *time.Time          `bson:"archive_at,omitempty" json:"archive_at,omitempty"`
	ArchiveBy *primitive.ObjectID `bson:"archive_by,omitempty" json:"archive_by,omitempty"`
}

// Part returns the lesson's part with the given id, or nil.
func (l *Lesson) Part(id string) *Part {
	for i := range l.Parts {
		if l.Parts[i].ID == id {
			return &l.Parts[i]
		}
	}
	return nil
}

// NewEditData builds the full shadow copy that opens an edit session.
func (l *Lesson) NewEditData(editor primitive.ObjectID, now time.Time) *EditData {
	return &EditData{
		InitialEditor:   editor,
		CurrentEditor:   editor,
		StartedAt:       now,
		Title:           l.Title,
		Description:     l.Description,
		DescriptionFile: l.DescriptionFile,
		Parts:           cloneParts(l.Parts),
		Categories:      append([]primitive.ObjectID(nil), l.Categories...),
		Thumbnail:       l.Thumbnail,
		Credit:          l.Credit,
	}
}

func cloneParts(parts []Part) []Part {
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = p
		out[i].Screens = append([]Screen(nil), p.Screens...)
	}
	return out
}

// Category groups lessons for discovery and for role/account grant lists.
type Category struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Review is viewer feedback on a published lesson.
type Review struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Lesson       primitive.ObjectID `bson:"lesson" json:"lesson"`
	Stars        int                `bson:"stars" json:"stars"`
	Text         string             `bson:"text,omitempty" json:"text,omitempty"`
	ReviewerName string             `bson:"reviewer_name,omitempty" json:"reviewer_name,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Validate checks a review before it is stored.
func (r *Review) Validate() error {
	if r.Lesson.IsZero() {
		return fmt.Errorf("review: lesson is required")
	}
	if r.Stars < 1 || r.Stars > 5 {
		return fmt.Errorf("review: stars must be between 1 and 5, got %d", r.Stars)
	}
	return nil
}
