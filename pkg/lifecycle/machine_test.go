package lifecycle

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/policy"
)

// fakeStore is an in-memory ContentStore covering the calls the lifecycle
// transitions issue. Filter matching handles the exact keys the machine
// writes: _id, mid_edit and edit_data.current_editor; anything else fails
// the match so a test cannot silently pass on an unmodeled predicate.
type fakeStore struct {
	lessons map[string]map[primitive.ObjectID]models.Lesson
	users   map[primitive.ObjectID]*models.User
	roles   map[primitive.ObjectID]*models.Role
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lessons: map[string]map[primitive.ObjectID]models.Lesson{},
		users:   map[primitive.ObjectID]*models.User{},
		roles:   map[primitive.ObjectID]*models.Role{},
	}
}

func (f *fakeStore) coll(name string) map[primitive.ObjectID]models.Lesson {
	if f.lessons[name] == nil {
		f.lessons[name] = map[primitive.ObjectID]models.Lesson{}
	}
	return f.lessons[name]
}

func (f *fakeStore) put(collection string, l models.Lesson) {
	f.coll(collection)[l.ID] = l
}

func (f *fakeStore) find(collection string, filter bson.M) (models.Lesson, bool) {
	for _, l := range f.coll(collection) {
		if lessonMatches(l, filter) {
			return l, true
		}
	}
	return models.Lesson{}, false
}

func lessonMatches(l models.Lesson, filter bson.M) bool {
	for key, want := range filter {
		switch key {
		case "_id":
			if l.ID != want.(primitive.ObjectID) {
				return false
			}
		case "mid_edit":
			if l.MidEdit != want.(bool) {
				return false
			}
		case "edit_data.current_editor":
			if l.EditData == nil || l.EditData.CurrentEditor != want.(primitive.ObjectID) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (f *fakeStore) FindOne(_ context.Context, collection string, filter bson.M, out interface{}) error {
	l, ok := f.find(collection, filter)
	if !ok {
		return apperrors.NotFound("no matching document")
	}
	*out.(*models.Lesson) = l
	return nil
}

func (f *fakeStore) InsertOne(_ context.Context, collection string, doc interface{}) error {
	l := *doc.(*models.Lesson)
	if _, dup := f.coll(collection)[l.ID]; dup {
		return apperrors.Conflict("duplicate key")
	}
	f.coll(collection)[l.ID] = l
	return nil
}

func (f *fakeStore) FindOneAndDelete(_ context.Context, collection string, filter bson.M, out interface{}) error {
	l, ok := f.find(collection, filter)
	if !ok {
		return apperrors.NotFound("no matching document")
	}
	delete(f.coll(collection), l.ID)
	*out.(*models.Lesson) = l
	return nil
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := map[string]map[primitive.ObjectID]models.Lesson{}
	for name, coll := range f.lessons {
		cp := make(map[primitive.ObjectID]models.Lesson, len(coll))
		for id, l := range coll {
			cp[id] = l
		}
		snapshot[name] = cp
	}
	if err := fn(ctx); err != nil {
		f.lessons = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("no such user")
}

func (f *fakeStore) GetRole(_ context.Context, id primitive.ObjectID) (*models.Role, error) {
	if r, ok := f.roles[id]; ok {
		return r, nil
	}
	return nil, apperrors.NotFound("no such role")
}

// GetRoleByInternalName lets the fake double as the compiler's role source.
func (f *fakeStore) GetRoleByInternalName(_ context.Context, name string) (*models.Role, error) {
	for _, r := range f.roles {
		if r.InternalName == name {
			return r, nil
		}
	}
	return nil, apperrors.NotFound("no such role")
}

// The transitions under test here never reach these.
func (f *fakeStore) UpdateOne(context.Context, string, bson.M, interface{}) (bool, error) {
	return false, nil
}

func (f *fakeStore) UpdateMany(context.Context, string, bson.M, interface{}) (int64, error) {
	return 0, nil
}

func (f *fakeStore) DeleteOne(context.Context, string, bson.M) (bool, error) {
	return false, nil
}

func (f *fakeStore) FindOneAndUpdate(context.Context, string, bson.M, interface{}, interface{}) error {
	return apperrors.NotFound("no matching document")
}

// fakeBlob records asset operations and never fails.
type fakeBlob struct {
	deletes  []string
	prefixes []string
	moves    [][2]string
	copies   [][2]string
}

func (f *fakeBlob) Upload(context.Context, string, io.Reader, string) error { return nil }

func (f *fakeBlob) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeBlob) DeletePrefix(_ context.Context, prefix string) error {
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func (f *fakeBlob) Copy(_ context.Context, src, dst string) error {
	f.copies = append(f.copies, [2]string{src, dst})
	return nil
}

func (f *fakeBlob) CopyPrefix(_ context.Context, src, dst string) error {
	f.copies = append(f.copies, [2]string{src, dst})
	return nil
}

func (f *fakeBlob) Move(_ context.Context, src, dst string) error {
	f.moves = append(f.moves, [2]string{src, dst})
	return nil
}

func (f *fakeBlob) Exists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeBlob) SignedUploadURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (f *fakeBlob) SignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

// adminCaller registers the built-in admin role with the fake and returns a
// resolved user holding it. Admin permissions carry no filters, so compiled
// predicates reduce to the _id match.
func adminCaller(fs *fakeStore) *models.User {
	roles := models.BuiltInRoles(testNow())
	var admin models.Role
	for _, r := range roles {
		if r.InternalName == models.RoleAdmin {
			admin = r
		}
	}
	fs.roles[admin.ID] = &admin
	u := &models.User{ID: primitive.NewObjectID(), RoleID: admin.ID, Role: &admin}
	fs.users[u.ID] = u
	return u
}

// staffCaller registers a filterless custom role at the given rank.
func staffCaller(fs *fakeStore, rank int) *models.User {
	role := &models.Role{
		ID: primitive.NewObjectID(), Name: "Staff", InternalName: "staff",
		Rank: rank,
		Permissions: []models.Permission{
			{Resource: models.ResourcePublishedLessons, Actions: models.AllActions()},
			{Resource: models.ResourceArchivedLessons, Actions: models.AllActions()},
		},
		CreatedAt: testNow(), UpdatedAt: testNow(),
	}
	fs.roles[role.ID] = role
	u := &models.User{ID: primitive.NewObjectID(), RoleID: role.ID, Role: role}
	fs.users[u.ID] = u
	return u
}

// newTestMachine wires a Machine over the fakes with a fixed clock.
func newTestMachine() (*Machine, *fakeStore, *fakeBlob, *models.User) {
	fs := newFakeStore()
	fb := &fakeBlob{}
	caller := adminCaller(fs)
	m := New(fs, fb, policy.New(fs), WithClock(testNow))
	return m, fs, fb, caller
}
