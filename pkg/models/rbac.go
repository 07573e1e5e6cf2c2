package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resource identifies a protected collection of documents.
type Resource string

const (
	ResourceRoles              Resource = "roles"
	ResourceUsers              Resource = "users"
	ResourceAccounts           Resource = "accounts"
	ResourceDraftLessons       Resource = "draft_lessons"
	ResourcePublishedLessons   Resource = "published_lessons"
	ResourceArchivedLessons    Resource = "archived_lessons"
	ResourceCategories         Resource = "categories"
	ResourceReviews            Resource = "reviews"
	ResourceSiteHelp           Resource = "site_help"
	ResourceSiteHelpCategories Resource = "site_help_categories"
)

// Action identifies an operation against a Resource. The wire names are
// fixed; they are stored inside role documents and must stay stable across
// releases.
type Action string

const (
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionReadMany Action = "read_many"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	// ActionDuplicate keeps the historical misspelling used by stored role
	// documents.
	ActionDuplicate Action = "dupplicate"
	// ActionUpdateLimits and friends gate which fields of a document a role
	// may touch, on top of which documents it may touch.
	ActionUpdateLimits     Action = "update_limites"
	ActionCreateLimits     Action = "create_limites"
	ActionReadUpdateLimits Action = "read_update_limites"
)

// AllActions is the default ApplyTo set for filters that do not restrict
// themselves to specific actions.
func AllActions() []Action {
	return []Action{
		ActionCreate, ActionRead, ActionReadMany, ActionUpdate, ActionDelete,
		ActionDuplicate, ActionUpdateLimits, ActionCreateLimits, ActionReadUpdateLimits,
	}
}

// Operator is a MongoDB comparison operator as stored in role filters.
type Operator string

const (
	OpEqual        Operator = "$eq"
	OpNotEqual     Operator = "$ne"
	OpGreater      Operator = "$gt"
	OpGreaterEqual Operator = "$gte"
	OpLess         Operator = "$lt"
	OpLessEqual    Operator = "$lte"
	OpIn           Operator = "$in"
	OpNotIn        Operator = "$nin"
	OpExists       Operator = "$exists"
	OpRegex        Operator = "$regex"
)

var validOperators = map[Operator]struct{}{
	OpEqual: {}, OpNotEqual: {}, OpGreater: {}, OpGreaterEqual: {},
	OpLess: {}, OpLessEqual: {}, OpIn: {}, OpNotIn: {}, OpExists: {}, OpRegex: {},
}

// Valid reports whether op is one of the supported MongoDB operators.
func (op Operator) Valid() bool {
	_, ok := validOperators[op]
	return ok
}

// DynamicSource names where a dynamic filter resolves its value from.
// Only the calling user's document is supported today.
type DynamicSource string

const DynamicSourceCurrentUser DynamicSource = "current_user"

// WildcardValue marks a filter that declares its Field immutable when the
// filter applies to a limits action.
const WildcardValue = "*"

// ResourceFilter is one declarative constraint inside a Permission.
type ResourceFilter struct {
	Field        string        `bson:"field" json:"field"`
	Operator     Operator      `bson:"operator" json:"operator"`
	Value        interface{}   `bson:"value,omitempty" json:"value,omitempty"`
	Dynamic      bool          `bson:"dynamic" json:"dynamic"`
	DynamicField []string      `bson:"dynamic_field,omitempty" json:"dynamic_field,omitempty"`
	DynamicSrc   DynamicSource `bson:"dynamic_source,omitempty" json:"dynamic_source,omitempty"`
	IsOr         bool          `bson:"is_or" json:"is_or"`
	IsAnd        bool          `bson:"is_and" json:"is_and"`
	ApplyTo      []Action      `bson:"apply_to,omitempty" json:"apply_to,omitempty"`
	Description  string        `bson:"description,omitempty" json:"description,omitempty"`
}

// Validate enforces the construction-time invariants of a filter. It is
// called when roles are seeded or mutated, never on the hot compile path.
func (f *ResourceFilter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("resource filter: field is required")
	}
	if !f.Operator.Valid() {
		return fmt.Errorf("resource filter %q: unknown operator %q", f.Field, f.Operator)
	}
	if f.Dynamic {
		if f.DynamicSrc == "" {
			return fmt.Errorf("resource filter %q: dynamic filter requires dynamic_source", f.Field)
		}
		if f.DynamicSrc != DynamicSourceCurrentUser {
			return fmt.Errorf("resource filter %q: unsupported dynamic_source %q", f.Field, f.DynamicSrc)
		}
		if len(f.DynamicField) == 0 {
			return fmt.Errorf("resource filter %q: dynamic filter requires dynamic_field", f.Field)
		}
	}
	if f.IsOr && f.IsAnd {
		return fmt.Errorf("resource filter %q: is_or and is_and are mutually exclusive", f.Field)
	}
	return nil
}

// AppliesTo reports whether the filter participates in the given action.
// An empty ApplyTo list means the filter applies to every action.
func (f *ResourceFilter) AppliesTo(action Action) bool {
	if len(f.ApplyTo) == 0 {
		return true
	}
	for _, a := range f.ApplyTo {
		if a == action {
			return true
		}
	}
	return false
}

// Permission grants a set of Actions on one Resource, constrained by Filters.
type Permission struct {
	Resource Resource         `bson:"resource" json:"resource"`
	Actions  []Action         `bson:"actions" json:"actions"`
	Filters  []ResourceFilter `bson:"filters,omitempty" json:"filters,omitempty"`
}

// Allows reports whether the permission covers the action.
func (p *Permission) Allows(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks every filter of the permission.
func (p *Permission) Validate() error {
	if p.Resource == "" {
		return fmt.Errorf("permission: resource is required")
	}
	for i := range p.Filters {
		if err := p.Filters[i].Validate(); err != nil {
			return fmt.Errorf("permission %s: %w", p.Resource, err)
		}
	}
	return nil
}

// ManagedRoles is either an explicit set of role ids or the wildcard "*"
// meaning every role. The persisted form mirrors that: a BSON string "*" or
// an array of ObjectIDs.
type ManagedRoles struct {
	All bool
	IDs []primitive.ObjectID
}

// Contains reports whether the set covers the given role id.
func (m ManagedRoles) Contains(id primitive.ObjectID) bool {
	if m.All {
		return true
	}
	for _, v := range m.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (m ManagedRoles) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if m.All {
		return bson.MarshalValue(WildcardValue)
	}
	if m.IDs == nil {
		return bson.MarshalValue([]primitive.ObjectID{})
	}
	return bson.MarshalValue(m.IDs)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (m *ManagedRoles) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeString:
		if raw.StringValue() != WildcardValue {
			return fmt.Errorf("managed_roles: unexpected string %q", raw.StringValue())
		}
		m.All = true
		m.IDs = nil
		return nil
	case bson.TypeArray:
		m.All = false
		return raw.Unmarshal(&m.IDs)
	case bson.TypeNull:
		*m = ManagedRoles{}
		return nil
	default:
		return fmt.Errorf("managed_roles: unexpected BSON type %s", t)
	}
}

// Role internal names are stable identifiers; display names are free text.
const (
	RoleAdmin              = "admin"
	RoleInstitutionManager = "institution_manager"
	RoleEditor             = "editor"
	RoleViewer             = "viewer"
	RoleGuest              = "guest"
)

// Role is a named bundle of permissions plus role-level grant lists that
// dynamic filters can reference (role.lessons, role.categories).
type Role struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	InternalName string               `bson:"internal_name" json:"internal_name"`
	// Rank orders roles by privilege; lower is more privileged, 0 is the
	// superuser rank that can seize any edit session.
	Rank           int                  `bson:"rank" json:"rank"`
	ManagedRoles   ManagedRoles         `bson:"managed_roles" json:"managed_roles"`
	RequireAccount bool                 `bson:"require_account" json:"require_account"`
	Lessons        []primitive.ObjectID `bson:"lessons,omitempty" json:"lessons,omitempty"`
	Categories     []primitive.ObjectID `bson:"categories,omitempty" json:"categories,omitempty"`
	Permissions    []Permission         `bson:"permissions" json:"permissions"`
	CreatedAt      time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at" json:"updated_at"`
}

// PermissionFor returns the role's permission entry for resource that covers
// action, or nil when the role grants nothing for that pair.
func (r *Role) PermissionFor(resource Resource, action Action) *Permission {
	for i := range r.Permissions {
		p := &r.Permissions[i]
		if p.Resource == resource && p.Allows(action) {
			return p
		}
	}
	return nil
}

// Validate checks the role document before it is written.
func (r *Role) Validate() error {
	if r.Name == "" || r.InternalName == "" {
		return fmt.Errorf("role: name and internal_name are required")
	}
	for i := range r.Permissions {
		if err := r.Permissions[i].Validate(); err != nil {
			return fmt.Errorf("role %s: %w", r.InternalName, err)
		}
	}
	return nil
}
