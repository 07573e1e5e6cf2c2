package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an authenticated person. RoleID and AccountID are references; the
// Role and Account pointers are populated by store.ResolveUser for callers
// that need the joined documents (the policy compiler does).
type User struct {
	ID                    primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Email                 string               `bson:"email" json:"email"`
	FirstName             string               `bson:"first_name" json:"first_name"`
	LastName              string               `bson:"last_name" json:"last_name"`
	FullName              string               `bson:"full_name" json:"full_name"`
	Phone                 string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Password              string               `bson:"password,omitempty" json:"-"`
	RoleID                primitive.ObjectID   `bson:"role" json:"role"`
	AccountID             *primitive.ObjectID  `bson:"account,omitempty" json:"account,omitempty"`
	AllowedLessons        []primitive.ObjectID `bson:"allowed_lessons" json:"allowed_lessons"`
	AllowedCategories     []primitive.ObjectID `bson:"allowed_categories" json:"allowed_categories"`
	RegistrationToken     string               `bson:"registration_token,omitempty" json:"-"`
	RegistrationCompleted bool                 `bson:"registration_completed" json:"registration_completed"`
	ResetPasswordToken    string               `bson:"reset_password_token,omitempty" json:"-"`
	CreatedAt             time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time            `bson:"updated_at" json:"updated_at"`

	Role    *Role    `bson:"-" json:"-"`
	Account *Account `bson:"-" json:"-"`
}

// NormalizeEmail lowercases and trims the address the way the unique index
// expects it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the invariants a user document must satisfy before it is
// written. Role resolution is a separate concern; here RequireAccount can
// only be enforced when Role is populated.
func (u *User) Validate() error {
	if NormalizeEmail(u.Email) == "" {
		return fmt.Errorf("user: email is required")
	}
	if u.RoleID.IsZero() {
		return fmt.Errorf("user %s: role is required", u.Email)
	}
	if u.Role != nil && u.Role.RequireAccount && u.AccountID == nil {
		return fmt.Errorf("user %s: role %s requires an account", u.Email, u.Role.InternalName)
	}
	return nil
}

// FieldValue resolves a single top-level field of the user document for
// dynamic filter evaluation. Joined relations are handled by the policy
// package; this only answers for fields stored on the user itself.
func (u *User) FieldValue(field string) (interface{}, bool) {
	switch field {
	case "_id", "id":
		return u.ID, true
	case "email":
		return u.Email, true
	case "account":
		if u.AccountID == nil {
			return nil, true
		}
		return *u.AccountID, true
	case "role":
		return u.RoleID, true
	case "allowed_lessons":
		return u.AllowedLessons, true
	case "allowed_categories":
		return u.AllowedCategories, true
	default:
		return nil, false
	}
}

// Account is an institution: a contract with seat and content allow-lists
// that its users inherit visibility from.
type Account struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	InstitutionName   string               `bson:"institution_name" json:"institution_name"`
	City              string               `bson:"city" json:"city"`
	ContactManName    string               `bson:"contact_man_name,omitempty" json:"contact_man_name,omitempty"`
	Email             string               `bson:"email,omitempty" json:"email,omitempty"`
	Phone             string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Logo              string               `bson:"logo,omitempty" json:"logo,omitempty"`
	AllowedUsers      int                  `bson:"allowed_users" json:"allowed_users"`
	CurrentUsers      int                  `bson:"current_users" json:"current_users"`
	AllowedLessons    []primitive.ObjectID `bson:"allowed_lessons" json:"allowed_lessons"`
	AllowedCategories []primitive.ObjectID `bson:"allowed_categories" json:"allowed_categories"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `bson:"updated_at" json:"updated_at"`
}

// Validate checks the invariants an account document must satisfy.
func (a *Account) Validate() error {
	if a.InstitutionName == "" || a.City == "" {
		return fmt.Errorf("account: institution_name and city are required")
	}
	if a.AllowedUsers < 0 {
		return fmt.Errorf("account %s: allowed_users must not be negative", a.InstitutionName)
	}
	return nil
}

// FieldValue resolves a field of the account for dynamic filter evaluation.
func (a *Account) FieldValue(field string) (interface{}, bool) {
	switch field {
	case "_id", "id":
		return a.ID, true
	case "allowed_lessons":
		return a.AllowedLessons, true
	case "allowed_categories":
		return a.AllowedCategories, true
	default:
		return nil, false
	}
}

// RoleFieldValue resolves a field of a role for dynamic filter evaluation.
func (r *Role) RoleFieldValue(field string) (interface{}, bool) {
	switch field {
	case "_id", "id":
		return r.ID, true
	case "rank":
		return r.Rank, true
	case "lessons":
		return r.Lessons, true
	case "categories":
		return r.Categories, true
	case "managed_roles":
		if r.ManagedRoles.All {
			return WildcardValue, true
		}
		return r.ManagedRoles.IDs, true
	default:
		return nil, false
	}
}
