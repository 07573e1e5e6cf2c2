// The lessonforge-init command bootstraps a deployment: it creates the
// collection indexes and, when the roles collection is empty, seeds the five
// built-in roles. With --admin-email it also creates the first admin user so
// cascades have someone to reassign content to.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lessonforge/lessonforge/pkg/apperrors"
	"github.com/lessonforge/lessonforge/pkg/config"
	"github.com/lessonforge/lessonforge/pkg/models"
	"github.com/lessonforge/lessonforge/pkg/store"
)

var adminEmail = flag.String("admin-email", "", "Create an initial admin user with this email if none exists")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := cfg.NewLogger()

	ctx := context.Background()
	st, err := store.Connect(ctx, store.Options{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("connect document store")
	}
	defer func() { _ = st.Close(context.Background()) }()

	if err := st.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Fatal("create indexes")
	}
	logger.Info("indexes ensured")

	count, err := st.Count(ctx, store.CollRoles, bson.M{})
	if err != nil {
		logger.WithError(err).Fatal("count roles")
	}
	if count == 0 {
		now := time.Now().UTC()
		for _, role := range models.BuiltInRoles(now) {
			if err := role.Validate(); err != nil {
				logger.WithError(err).Fatal("built-in role invalid")
			}
			if err := st.InsertOne(ctx, store.CollRoles, &role); err != nil {
				logger.WithError(err).WithField("role", role.InternalName).Fatal("seed role")
			}
			logger.WithField("role", role.InternalName).Info("role seeded")
		}
	} else {
		logger.WithField("count", count).Info("roles already present, seed skipped")
	}

	if *adminEmail != "" {
		if err := ensureAdminUser(ctx, st, *adminEmail); err != nil {
			logger.WithError(err).Fatal("create admin user")
		}
		logger.WithField("email", *adminEmail).Info("admin user ensured")
	}

	logger.Info("bootstrap complete")
}

// ensureAdminUser creates an admin user unless one with the email exists.
// The user starts with registration incomplete; the registration flow sets
// the password.
func ensureAdminUser(ctx context.Context, st *store.Store, email string) error {
	_, err := st.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFound(err) {
		return err
	}

	adminRole, err := st.GetRoleByInternalName(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:                primitive.NewObjectID(),
		Email:             models.NormalizeEmail(email),
		RoleID:            adminRole.ID,
		AllowedLessons:    []primitive.ObjectID{},
		AllowedCategories: []primitive.ObjectID{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := user.Validate(); err != nil {
		return err
	}
	return st.InsertOne(ctx, store.CollUsers, user)
}
