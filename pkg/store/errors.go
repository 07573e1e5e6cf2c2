package store

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
)

// convertError maps mongo-driver failures onto the service taxonomy:
// ErrNoDocuments becomes NotFound, duplicate key violations become Conflict,
// everything else is a StorageFailure.
func convertError(collection, op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %s: %w", collection, op, apperrors.NotFound("document not found"))
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %s: %w", collection, op, apperrors.Conflict("duplicate key"))
	default:
		return apperrors.StorageFailure(fmt.Sprintf("%s: %s", collection, op), err)
	}
}
