package cascade

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/blob"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/policy"
	"github.com/lessonforge/lessonforge/pkg/store"
)

// Orchestrator runs the cascading delete flows.
type Orchestrator struct {
	store  *store.Store
	blob   blob.Store
	policy *policy.Compiler
	logger *logrus.Logger
}

// New wires an Orchestrator.
func New(st *store.Store, bl blob.Store, pol *policy.Compiler, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{store: st, blob: bl, policy: pol, logger: logger}
}

// DeleteAccount removes an institution: the account document, all of its
// users, and their drafts. Published and archived lessons created by those
// users are reassigned to the system admin, as are any edit sessions and
// archive stamps they hold. The cascade aborts when no admin user exists.
func (o *Orchestrator) DeleteAccount(ctx context.Context, caller *models.User, accountID primitive.ObjectID) error {
	pred, err := o.policy.Compile(caller, models.ResourceAccounts, models.ActionDelete)
	if err != nil {
		return err
	}
	pred["_id"] = accountID

	admin, err := o.store.FindAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("cascade needs an admin to reassign content to: %w", err)
	}

	var draftIDs []primitive.ObjectID
	err = o.store.WithTransaction(ctx, func(ctx context.Context) error {
		var account models.Account
		if err := o.store.FindOneAndDelete(ctx, store.CollAccounts, pred, &account); err != nil {
			return fmt.Errorf("remove account: %w", err)
		}

		var users []models.User
		if err := o.store.FindMany(ctx, store.CollUsers, bson.M{"account": accountID}, &users); err != nil {
			return fmt.Errorf("list account users: %w", err)
		}
		userIDs := make([]primitive.ObjectID, 0, len(users))
		for i := range users {
			userIDs = append(userIDs, users[i].ID)
		}
		if len(userIDs) == 0 {
			return nil
		}

		var drafts []models.Lesson
		if err := o.store.FindMany(ctx, store.CollDraftLessons, bson.M{"creator": bson.M{"$in": userIDs}}, &drafts); err != nil {
			return fmt.Errorf("list account drafts: %w", err)
		}
		for i := range drafts {
			draftIDs = append(draftIDs, drafts[i].ID)
		}
		if _, err := o.store.DeleteMany(ctx, store.CollDraftLessons, bson.M{"creator": bson.M{"$in": userIDs}}); err != nil {
			return fmt.Errorf("delete account drafts: %w", err)
		}

		if _, err := o.store.DeleteMany(ctx, store.CollUsers, bson.M{"_id": bson.M{"$in": userIDs}}); err != nil {
			return fmt.Errorf("delete account users: %w", err)
		}

		if err := o.reassignLessons(ctx, userIDs, admin.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	log := o.logger.WithFields(logrus.Fields{
		"op":      "delete_account",
		"account": accountID.Hex(),
		"user":    caller.ID.Hex(),
	})
	var cleanupFailed bool
	if err := o.blob.DeletePrefix(ctx, blob.AccountFolder(accountID)); err != nil {
		log.WithError(err).Error("account folder delete failed")
		cleanupFailed = true
	}
	for _, draftID := range draftIDs {
		if err := o.blob.DeletePrefix(ctx, blob.LessonFolder(draftID)); err != nil {
			log.WithError(err).WithField("draft", draftID.Hex()).Error("draft folder delete failed")
			cleanupFailed = true
		}
	}
	if cleanupFailed {
		return apperrors.PartialFailure("account removed, some asset folders remain", nil)
	}
	log.Info("account deleted")
	return nil
}

// reassignLessons points creator, edit-session ownership, and archive stamps
// held by the removed users at the admin.
func (o *Orchestrator) reassignLessons(ctx context.Context, userIDs []primitive.ObjectID, adminID primitive.ObjectID) error {
	in := bson.M{"$in": userIDs}

	reassign := []struct {
		coll   string
		filter bson.M
		update bson.M
	}{
		{store.CollPublishedLessons, bson.M{"creator": in}, bson.M{"$set": bson.M{"creator": adminID}}},
		{store.CollPublishedLessons, bson.M{"edit_data.current_editor": in}, bson.M{"$set": bson.M{"edit_data.current_editor": adminID}}},
		{store.CollPublishedLessons, bson.M{"edit_data.initial_editor": in}, bson.M{"$set": bson.M{"edit_data.initial_editor": adminID}}},
		{store.CollArchivedLessons, bson.M{"creator": in}, bson.M{"$set": bson.M{"creator": adminID}}},
		{store.CollArchivedLessons, bson.M{"archive_by": in}, bson.M{"$set": bson.M{"archive_by": adminID}}},
	}
	for _, r := range reassign {
		if _, err := o.store.UpdateMany(ctx, r.coll, r.filter, r.update); err != nil {
			return fmt.Errorf("reassign %s: %w", r.coll, err)
		}
	}
	return nil
}

// DeleteCategory removes a category and pulls its id out of every lesson in
// all three collections and out of every grant list referencing it.
func (o *Orchestrator) DeleteCategory(ctx context.Context, caller *models.User, categoryID primitive.ObjectID) error {
	pred, err := o.policy.Compile(caller, models.ResourceCategories, models.ActionDelete)
	if err != nil {
		return err
	}
	pred["_id"] = categoryID

	err = o.store.WithTransaction(ctx, func(ctx context.Context) error {
		var category models.Category
		if err := o.store.FindOneAndDelete(ctx, store.CollCategories, pred, &category); err != nil {
			return fmt.Errorf("remove category: %w", err)
		}

		pullCategories := bson.M{"$pull": bson.M{"categories": categoryID}}
		for _, coll := range []string{store.CollDraftLessons, store.CollPublishedLessons, store.CollArchivedLessons} {
			if _, err := o.store.UpdateMany(ctx, coll, bson.M{"categories": categoryID}, pullCategories); err != nil {
				return fmt.Errorf("pull category from %s: %w", coll, err)
			}
		}

		pullGrant := bson.M{"$pull": bson.M{"allowed_categories": categoryID}}
		for _, coll := range []string{store.CollUsers, store.CollAccounts} {
			if _, err := o.store.UpdateMany(ctx, coll, bson.M{"allowed_categories": categoryID}, pullGrant); err != nil {
				return fmt.Errorf("pull category grant from %s: %w", coll, err)
			}
		}
		if _, err := o.store.UpdateMany(ctx, store.CollRoles,
			bson.M{"categories": categoryID}, pullCategories); err != nil {
			return fmt.Errorf("pull category from roles: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.logger.WithFields(logrus.Fields{
		"op":       "delete_category",
		"category": categoryID.Hex(),
		"user":     caller.ID.Hex(),
	}).Info("category deleted")
	return nil
}
