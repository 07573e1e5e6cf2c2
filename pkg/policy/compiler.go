package policy

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
)

// Compiler turns role filters into query predicates. Construct it with New;
// the zero value is not usable.
type Compiler struct {
	roles  RoleSource
	cache  *roleCache
	logger *logrus.Logger
}

// New builds a Compiler over the given role source.
func New(roles RoleSource, opts ...Option) *Compiler {
	c := &Compiler{
		roles:  roles,
		logger: logrus.StandardLogger(),
	}
	cfg := defaultCacheConfig()
	for _, opt := range opts {
		opt(c, &cfg)
	}
	c.cache = newRoleCache(cfg)
	return c
}

// Option tunes a Compiler.
type Option func(*Compiler, *cacheConfig)

// WithLogger sets the compiler's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Compiler, _ *cacheConfig) { c.logger = l }
}

// WithCache overrides role cache sizing.
func WithCache(size int, ttl time.Duration) Option {
	return func(_ *Compiler, cfg *cacheConfig) {
		cfg.size = size
		cfg.ttl = ttl
	}
}

// Compile builds the predicate scoping user's access to resource under
// action. The user must be resolved (Role populated, Account populated when
// referenced). A role with no permission for the pair yields Forbidden.
func (c *Compiler) Compile(user *models.User, resource models.Resource, action models.Action) (bson.M, error) {
	if user == nil || user.Role == nil {
		return nil, fmt.Errorf("compile: user must be resolved")
	}

	perm := user.Role.PermissionFor(resource, action)
	if perm == nil {
		return nil, fmt.Errorf("role %s has no grant for %s:%s: %w",
			user.Role.InternalName, resource, action, apperrors.Forbidden("operation not permitted"))
	}

	predicate := bson.M{}
	var orGroup, andGroup []bson.M

	for i := range perm.Filters {
		f := &perm.Filters[i]
		if !f.AppliesTo(action) {
			continue
		}

		value, err := c.filterValue(user, f)
		if err != nil {
			return nil, fmt.Errorf("compile %s:%s filter %q: %w", resource, action, f.Field, err)
		}
		if value == models.WildcardValue {
			// A wildcard grant is unconditional for query purposes; its
			// meaning lives in the write guard.
			continue
		}

		clause := bson.M{f.Field: bson.M{string(f.Operator): value}}
		switch {
		case f.IsOr:
			orGroup = append(orGroup, clause)
		case f.IsAnd:
			andGroup = append(andGroup, clause)
		default:
			predicate[f.Field] = bson.M{string(f.Operator): value}
		}
	}

	if len(orGroup) > 0 {
		predicate["$or"] = orGroup
	}
	if len(andGroup) > 0 {
		predicate["$and"] = andGroup
	}

	c.logger.WithFields(logrus.Fields{
		"user":     user.ID.Hex(),
		"role":     user.Role.InternalName,
		"resource": resource,
		"action":   action,
	}).Debug("compiled access predicate")

	return predicate, nil
}

// filterValue resolves the effective comparison value of a filter.
func (c *Compiler) filterValue(user *models.User, f *models.ResourceFilter) (interface{}, error) {
	if !f.Dynamic {
		return f.Value, nil
	}
	if f.DynamicSrc != models.DynamicSourceCurrentUser {
		return nil, fmt.Errorf("unsupported dynamic_source %q", f.DynamicSrc)
	}
	return resolveUserPath(user, f.DynamicField)
}

// resolveUserPath walks path through the resolved user document. The first
// segment is a user field; "role" and "account" may be traversed exactly one
// level into the joined document. Any unresolvable segment is an error so a
// misconfigured filter can never silently widen access.
func resolveUserPath(user *models.User, path []string) (interface{}, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty dynamic_field path")
	}

	head := path[0]
	if len(path) == 1 {
		v, ok := user.FieldValue(head)
		if !ok {
			return nil, fmt.Errorf("user has no field %q", head)
		}
		return v, nil
	}
	if len(path) > 2 {
		return nil, fmt.Errorf("dynamic_field path %v too deep", path)
	}

	switch head {
	case "role":
		if user.Role == nil {
			return nil, fmt.Errorf("user role not resolved")
		}
		v, ok := user.Role.RoleFieldValue(path[1])
		if !ok {
			return nil, fmt.Errorf("role has no field %q", path[1])
		}
		return v, nil
	case "account":
		if user.Account == nil {
			return nil, fmt.Errorf("user has no account to traverse")
		}
		v, ok := user.Account.FieldValue(path[1])
		if !ok {
			return nil, fmt.Errorf("account has no field %q", path[1])
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot traverse user field %q", head)
	}
}
