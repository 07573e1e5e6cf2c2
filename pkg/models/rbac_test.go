package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestResourceFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  ResourceFilter
		wantErr bool
	}{
		{
			name:   "static filter",
			filter: ResourceFilter{Field: "public", Operator: OpEqual, Value: true},
		},
		{
			name: "dynamic filter",
			filter: ResourceFilter{
				Field: "_id", Operator: OpIn, Dynamic: true,
				DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"allowed_lessons"},
			},
		},
		{
			name:    "missing field",
			filter:  ResourceFilter{Operator: OpEqual, Value: true},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			filter:  ResourceFilter{Field: "public", Operator: "$foo"},
			wantErr: true,
		},
		{
			name:    "dynamic without source",
			filter:  ResourceFilter{Field: "_id", Operator: OpIn, Dynamic: true, DynamicField: []string{"allowed_lessons"}},
			wantErr: true,
		},
		{
			name: "dynamic without path",
			filter: ResourceFilter{
				Field: "_id", Operator: OpIn, Dynamic: true, DynamicSrc: DynamicSourceCurrentUser,
			},
			wantErr: true,
		},
		{
			name:    "or and and are exclusive",
			filter:  ResourceFilter{Field: "public", Operator: OpEqual, Value: true, IsOr: true, IsAnd: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResourceFilterAppliesTo(t *testing.T) {
	unrestricted := ResourceFilter{Field: "public", Operator: OpEqual, Value: true}
	assert.True(t, unrestricted.AppliesTo(ActionRead))
	assert.True(t, unrestricted.AppliesTo(ActionUpdateLimits))

	scoped := ResourceFilter{
		Field: "account", Operator: OpEqual, Value: WildcardValue,
		ApplyTo: []Action{ActionUpdateLimits},
	}
	assert.True(t, scoped.AppliesTo(ActionUpdateLimits))
	assert.False(t, scoped.AppliesTo(ActionRead))
}

func TestManagedRolesBSONRoundTrip(t *testing.T) {
	type holder struct {
		Managed ManagedRoles `bson:"managed_roles"`
	}

	t.Run("wildcard persists as string", func(t *testing.T) {
		raw, err := bson.Marshal(holder{Managed: ManagedRoles{All: true}})
		require.NoError(t, err)

		var probe bson.M
		require.NoError(t, bson.Unmarshal(raw, &probe))
		assert.Equal(t, "*", probe["managed_roles"])

		var back holder
		require.NoError(t, bson.Unmarshal(raw, &back))
		assert.True(t, back.Managed.All)
		assert.Empty(t, back.Managed.IDs)
	})

	t.Run("explicit ids persist as array", func(t *testing.T) {
		ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
		raw, err := bson.Marshal(holder{Managed: ManagedRoles{IDs: ids}})
		require.NoError(t, err)

		var back holder
		require.NoError(t, bson.Unmarshal(raw, &back))
		assert.False(t, back.Managed.All)
		assert.Equal(t, ids, back.Managed.IDs)
	})
}

func TestManagedRolesContains(t *testing.T) {
	id := primitive.NewObjectID()
	other := primitive.NewObjectID()

	assert.True(t, ManagedRoles{All: true}.Contains(id))
	assert.True(t, ManagedRoles{IDs: []primitive.ObjectID{id}}.Contains(id))
	assert.False(t, ManagedRoles{IDs: []primitive.ObjectID{other}}.Contains(id))
	assert.False(t, ManagedRoles{}.Contains(id))
}

func TestRolePermissionFor(t *testing.T) {
	role := Role{
		Name: "Editor", InternalName: RoleEditor,
		Permissions: []Permission{
			{Resource: ResourceDraftLessons, Actions: []Action{ActionCreate, ActionRead}},
			{Resource: ResourcePublishedLessons, Actions: []Action{ActionRead, ActionUpdate}},
		},
	}

	p := role.PermissionFor(ResourcePublishedLessons, ActionUpdate)
	require.NotNil(t, p)
	assert.Equal(t, ResourcePublishedLessons, p.Resource)

	assert.Nil(t, role.PermissionFor(ResourcePublishedLessons, ActionDelete))
	assert.Nil(t, role.PermissionFor(ResourceAccounts, ActionRead))
}

func TestBuiltInRolesValidate(t *testing.T) {
	roles := BuiltInRoles(time.Now().UTC())
	require.Len(t, roles, 5)

	seen := map[string]bool{}
	for i := range roles {
		require.NoError(t, roles[i].Validate(), roles[i].InternalName)
		seen[roles[i].InternalName] = true
	}
	for _, name := range []string{RoleAdmin, RoleInstitutionManager, RoleEditor, RoleViewer, RoleGuest} {
		assert.True(t, seen[name], name)
	}
}

func TestBuiltInRolesManagerReferencesManagedRoles(t *testing.T) {
	roles := BuiltInRoles(time.Now().UTC())

	byName := map[string]*Role{}
	for i := range roles {
		byName[roles[i].InternalName] = &roles[i]
	}

	manager := byName[RoleInstitutionManager]
	require.NotNil(t, manager)
	assert.False(t, manager.ManagedRoles.All)
	assert.True(t, manager.ManagedRoles.Contains(byName[RoleViewer].ID))
	assert.True(t, manager.ManagedRoles.Contains(byName[RoleEditor].ID))
	assert.False(t, manager.ManagedRoles.Contains(byName[RoleAdmin].ID))

	admin := byName[RoleAdmin]
	assert.True(t, admin.ManagedRoles.All)
	assert.Equal(t, 0, admin.Rank)
}
