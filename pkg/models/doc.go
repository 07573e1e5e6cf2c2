// Package models defines the persistent document types of the LessonForge
// content backend: roles and their declarative authorization filters, users,
// institution accounts, lessons in their three lifecycle collections,
// categories, and reviews.
//
// # Authorization model
//
// Access control is data, not code. A Role carries a list of Permissions;
// each Permission binds one Resource to a set of Actions and an ordered list
// of ResourceFilters. The policy package compiles those filters into a query
// predicate at request time, so changing what a role can see is a database
// edit, not a deploy.
//
// Filters come in two flavors:
//
//   - static: a literal Value compared against Field with Operator
//   - dynamic: the value is resolved from the calling user's document by
//     walking DynamicField (at most one joined relation deep, e.g.
//     ["account", "allowed_lessons"])
//
// IsOr and IsAnd route a filter into an $or or $and group; everything else
// lands in the top-level conjunction.
//
// # Lesson lifecycle
//
// A lesson lives in exactly one of three collections: drafts, published,
// archived. The document shape is shared; Archived adds ArchiveAt/ArchiveBy.
// While a published lesson is being edited, EditData holds a full shadow
// copy of the editable fields and names the editor who currently owns the
// edit session.
package models
