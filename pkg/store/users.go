package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/models"
)

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.FindOne(ctx, CollUsers, bson.M{"_id": id}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail loads a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.FindOne(ctx, CollUsers, bson.M{"email": models.NormalizeEmail(email)}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetRole loads a role by id.
func (s *Store) GetRole(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	var r models.Role
	if err := s.FindOne(ctx, CollRoles, bson.M{"_id": id}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoleByInternalName loads a role by its stable internal name.
func (s *Store) GetRoleByInternalName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	if err := s.FindOne(ctx, CollRoles, bson.M{"internal_name": name}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAccount loads an account by id.
func (s *Store) GetAccount(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	if err := s.FindOne(ctx, CollAccounts, bson.M{"_id": id}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ResolveUser populates the user's Role and, when referenced, Account. The
// policy compiler requires a resolved user; dynamic filters walk into those
// joined documents.
func (s *Store) ResolveUser(ctx context.Context, u *models.User) error {
	if u.Role == nil {
		role, err := s.GetRole(ctx, u.RoleID)
		if err != nil {
			return fmt.Errorf("resolve user %s role: %w", u.Email, err)
		}
		u.Role = role
	}
	if u.Account == nil && u.AccountID != nil {
		account, err := s.GetAccount(ctx, *u.AccountID)
		if err != nil {
			return fmt.Errorf("resolve user %s account: %w", u.Email, err)
		}
		u.Account = account
	}
	return nil
}

// FindAdminUser returns a user holding the admin role; cascades reassign
// orphaned content to it. Which admin comes back is unspecified.
func (s *Store) FindAdminUser(ctx context.Context) (*models.User, error) {
	adminRole, err := s.GetRoleByInternalName(ctx, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("find admin role: %w", err)
	}
	var u models.User
	if err := s.FindOne(ctx, CollUsers, bson.M{"role": adminRole.ID}, &u); err != nil {
		return nil, fmt.Errorf("find admin user: %w", err)
	}
	u.Role = adminRole
	return &u, nil
}
