package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lesson visibility is an $or group shared by every non-admin role: a lesson
// is visible when any of these grant paths reaches it. Roles without an
// institution (guests) must not carry the account traversal; the compiler
// refuses to walk into a missing relation.
func lessonVisibilityFilters(applyTo []Action, withAccount bool) []ResourceFilter {
	filters := []ResourceFilter{
		{
			Field: "_id", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"allowed_lessons"},
			IsOr: true, ApplyTo: applyTo,
			Description: "lessons granted to the user directly",
		},
		{
			Field: "categories", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"allowed_categories"},
			IsOr: true, ApplyTo: applyTo,
			Description: "lessons in categories granted to the user",
		},
		{
			Field: "_id", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"role", "lessons"},
			IsOr: true, ApplyTo: applyTo,
			Description: "lessons granted to the user's role",
		},
		{
			Field: "categories", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"role", "categories"},
			IsOr: true, ApplyTo: applyTo,
			Description: "lessons in categories granted to the user's role",
		},
		{
			Field: "public", Operator: OpEqual, Value: true,
			IsOr: true, ApplyTo: applyTo,
			Description: "public lessons",
		},
	}
	if withAccount {
		filters = append(filters, ResourceFilter{
			Field: "_id", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"account", "allowed_lessons"},
			IsOr: true, ApplyTo: applyTo,
			Description: "lessons licensed to the user's institution",
		})
	}
	return filters
}

// BuiltInRoles returns the five seed roles. IDs are assigned here so roles
// can reference each other (the institution manager manages viewers and
// editors); the init command persists them as-is when the collection is
// empty.
func BuiltInRoles(now time.Time) []Role {
	adminID := primitive.NewObjectID()
	managerID := primitive.NewObjectID()
	editorID := primitive.NewObjectID()
	viewerID := primitive.NewObjectID()
	guestID := primitive.NewObjectID()

	readActions := []Action{ActionRead, ActionReadMany}
	viewActions := []Action{ActionRead, ActionReadMany, ActionDuplicate}

	admin := Role{
		ID: adminID, Name: "Administrator", InternalName: RoleAdmin,
		Rank: 0, ManagedRoles: ManagedRoles{All: true},
		CreatedAt: now, UpdatedAt: now,
	}
	// Admins get every action on every resource with no filters.
	for _, res := range []Resource{
		ResourceRoles, ResourceUsers, ResourceAccounts, ResourceDraftLessons,
		ResourcePublishedLessons, ResourceArchivedLessons, ResourceCategories,
		ResourceReviews, ResourceSiteHelp, ResourceSiteHelpCategories,
	} {
		admin.Permissions = append(admin.Permissions, Permission{Resource: res, Actions: AllActions()})
	}

	manager := Role{
		ID: managerID, Name: "Institution Manager", InternalName: RoleInstitutionManager,
		Rank: 1, RequireAccount: true,
		ManagedRoles: ManagedRoles{IDs: []primitive.ObjectID{viewerID, editorID}},
		CreatedAt:    now, UpdatedAt: now,
		Permissions: []Permission{
			{
				Resource: ResourceUsers,
				Actions: []Action{
					ActionCreate, ActionRead, ActionReadMany, ActionUpdate, ActionDelete,
					ActionUpdateLimits, ActionCreateLimits,
				},
				Filters: []ResourceFilter{
					{
						Field: "account", Operator: OpEqual, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"account"},
						Description: "only users of the manager's institution",
					},
					{
						Field: "role", Operator: OpIn, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"role", "managed_roles"},
						ApplyTo:     []Action{ActionUpdateLimits, ActionCreateLimits},
						Description: "may only hand out roles the manager manages",
					},
					{
						Field: "account", Operator: OpEqual, Value: WildcardValue,
						ApplyTo:     []Action{ActionUpdateLimits},
						Description: "a user cannot be moved to another institution",
					},
				},
			},
			{
				Resource: ResourceAccounts,
				Actions:  readActions,
				Filters: []ResourceFilter{
					{
						Field: "_id", Operator: OpEqual, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"account"},
						Description: "only the manager's own institution",
					},
				},
			},
			{
				Resource: ResourceRoles,
				Actions:  readActions,
				Filters: []ResourceFilter{
					{
						Field: "_id", Operator: OpIn, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"role", "managed_roles"},
						Description: "only roles the manager manages",
					},
				},
			},
			{Resource: ResourcePublishedLessons, Actions: readActions, Filters: lessonVisibilityFilters(nil, true)},
			{Resource: ResourceCategories, Actions: readActions},
			{Resource: ResourceReviews, Actions: readActions},
			{Resource: ResourceSiteHelp, Actions: readActions},
			{Resource: ResourceSiteHelpCategories, Actions: readActions},
		},
	}

	editorPublishedFilters := lessonVisibilityFilters(viewActions, true)
	editorPublishedFilters = append(editorPublishedFilters,
		ResourceFilter{
			Field: "creator", Operator: OpEqual, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"_id"},
			IsAnd:   true,
			ApplyTo: []Action{ActionUpdate, ActionDelete},
			Description: "may only mutate own lessons",
		},
		ResourceFilter{
			Field: "_id", Operator: OpIn, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"account", "allowed_lessons"},
			IsAnd:   true,
			ApplyTo: []Action{ActionUpdate, ActionDelete},
			Description: "and only while the institution still licenses them",
		},
		ResourceFilter{
			Field: "edit_data.current_editor", Operator: OpEqual, Dynamic: true,
			DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"_id"},
			IsOr:    true,
			ApplyTo: []Action{ActionReadUpdateLimits},
			Description: "edit session internals are visible to the current editor",
		},
	)

	editor := Role{
		ID: editorID, Name: "Editor", InternalName: RoleEditor,
		Rank: 2, RequireAccount: true,
		CreatedAt: now, UpdatedAt: now,
		Permissions: []Permission{
			{
				Resource: ResourceDraftLessons,
				Actions:  []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete},
				Filters: []ResourceFilter{
					{
						Field: "creator", Operator: OpEqual, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"_id"},
						Description: "an editor only ever sees their own draft",
					},
				},
			},
			{
				Resource: ResourcePublishedLessons,
				Actions: []Action{
					ActionRead, ActionReadMany, ActionUpdate, ActionDelete,
					ActionDuplicate, ActionReadUpdateLimits,
				},
				Filters: editorPublishedFilters,
			},
			{
				Resource: ResourceArchivedLessons,
				Actions:  []Action{ActionRead, ActionReadMany, ActionUpdate, ActionDelete},
				Filters: []ResourceFilter{
					{
						Field: "archive_by", Operator: OpEqual, Dynamic: true,
						DynamicSrc: DynamicSourceCurrentUser, DynamicField: []string{"_id"},
						Description: "only lessons the editor archived",
					},
				},
			},
			{Resource: ResourceCategories, Actions: readActions},
			{Resource: ResourceReviews, Actions: readActions},
			{Resource: ResourceSiteHelp, Actions: readActions},
			{Resource: ResourceSiteHelpCategories, Actions: readActions},
		},
	}

	viewer := Role{
		ID: viewerID, Name: "Viewer", InternalName: RoleViewer,
		Rank: 3, RequireAccount: true,
		CreatedAt: now, UpdatedAt: now,
		Permissions: []Permission{
			{Resource: ResourcePublishedLessons, Actions: readActions, Filters: lessonVisibilityFilters(nil, true)},
			{Resource: ResourceCategories, Actions: readActions},
			{Resource: ResourceReviews, Actions: []Action{ActionCreate, ActionRead, ActionReadMany}},
			{Resource: ResourceSiteHelp, Actions: readActions},
			{Resource: ResourceSiteHelpCategories, Actions: readActions},
		},
	}

	guest := Role{
		ID: guestID, Name: "Guest", InternalName: RoleGuest,
		Rank:      4,
		CreatedAt: now, UpdatedAt: now,
		Permissions: []Permission{
			{Resource: ResourcePublishedLessons, Actions: readActions, Filters: lessonVisibilityFilters(nil, false)},
			{Resource: ResourceCategories, Actions: readActions},
			{Resource: ResourceSiteHelp, Actions: readActions},
			{Resource: ResourceSiteHelpCategories, Actions: readActions},
		},
	}

	return []Role{admin, manager, editor, viewer, guest}
}
