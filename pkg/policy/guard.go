package policy

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/models"
)

// VerifyWriteGuard checks a proposed set of field values against the
// caller's limits filters for resource. action must be ActionUpdateLimits or
// ActionCreateLimits. A nil error means every proposed field passed; a
// Forbidden error names the offending field. Proposed fields no filter
// mentions are unconstrained, and an empty proposed set always passes.
func (c *Compiler) VerifyWriteGuard(user *models.User, resource models.Resource, action models.Action, proposed map[string]interface{}) error {
	if action != models.ActionUpdateLimits && action != models.ActionCreateLimits {
		return fmt.Errorf("verify write guard: action %q is not a limits action", action)
	}
	if user == nil || user.Role == nil {
		return fmt.Errorf("verify write guard: user must be resolved")
	}
	if len(proposed) == 0 {
		return nil
	}

	perm := user.Role.PermissionFor(resource, action)
	if perm == nil {
		return fmt.Errorf("role %s has no grant for %s:%s: %w",
			user.Role.InternalName, resource, action, apperrors.Forbidden("operation not permitted"))
	}

	for i := range perm.Filters {
		f := &perm.Filters[i]
		if !f.AppliesTo(action) {
			continue
		}
		got, ok := proposed[f.Field]
		if !ok {
			continue
		}

		// The literal wildcard declares the field immutable for this role,
		// regardless of the proposed value.
		if f.Value == models.WildcardValue {
			return fmt.Errorf("field %q is immutable for role %s: %w",
				f.Field, user.Role.InternalName, apperrors.Forbidden("field not writable"))
		}

		want, err := c.filterValue(user, f)
		if err != nil {
			return fmt.Errorf("verify write guard filter %q: %w", f.Field, err)
		}
		// A dynamically resolved wildcard (a role whose managed_roles covers
		// every role) permits any proposed value.
		if want == models.WildcardValue {
			continue
		}

		hold, err := operatorHolds(f.Operator, got, want)
		if err != nil {
			return fmt.Errorf("verify write guard filter %q: %w", f.Field, err)
		}
		if !hold {
			return fmt.Errorf("field %q value not permitted for role %s: %w",
				f.Field, user.Role.InternalName, apperrors.Forbidden("value not permitted"))
		}
	}
	return nil
}

// operatorHolds evaluates the subset of operators the write guard supports
// against an in-memory value. Anything else fails closed as an error.
func operatorHolds(op models.Operator, got, want interface{}) (bool, error) {
	switch op {
	case models.OpEqual:
		return valuesEqual(got, want), nil
	case models.OpNotEqual:
		return !valuesEqual(got, want), nil
	case models.OpIn:
		return valueIn(got, want)
	case models.OpNotIn:
		in, err := valueIn(got, want)
		if err != nil {
			return false, err
		}
		return !in, nil
	default:
		return false, fmt.Errorf("operator %q not supported for write limits", op)
	}
}

// valueIn reports membership of got in the list want.
func valueIn(got, want interface{}) (bool, error) {
	rv := reflect.ValueOf(want)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false, fmt.Errorf("membership check against non-list value %T", want)
	}
	for i := 0; i < rv.Len(); i++ {
		if valuesEqual(got, rv.Index(i).Interface()) {
			return true, nil
		}
	}
	return false, nil
}

// valuesEqual compares a proposed value with a filter value. Proposed values
// arrive from decoded request payloads, so an ObjectID may show up as its
// hex string; both spellings compare equal.
func valuesEqual(a, b interface{}) bool {
	if na, ok := normalizeID(a); ok {
		if nb, ok := normalizeID(b); ok {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func normalizeID(v interface{}) (primitive.ObjectID, bool) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, true
	case *primitive.ObjectID:
		if t == nil {
			return primitive.NilObjectID, false
		}
		return *t, true
	case string:
		id, err := primitive.ObjectIDFromHex(t)
		if err != nil {
			return primitive.NilObjectID, false
		}
		return id, true
	default:
		return primitive.NilObjectID, false
	}
}
