// Package store is the content store gateway: every document read and write
// in LessonForge goes through it.
//
// The gateway is deliberately thin. It exposes collection-scoped CRUD
// parameterized by a caller-supplied predicate (the policy compiler's
// output, usually merged with an _id match), multi-document transactions via
// WithTransaction, and index bootstrap. It does not know about roles or
// lifecycle rules; it only guarantees that driver errors come back
// classified through the apperrors taxonomy, so callers never inspect
// mongo-driver errors directly.
//
// One collection per entity: roles, users, accounts, draft_lessons,
// published_lessons, archived_lessons, categories, reviews, site_help,
// site_help_categories. A lesson lives in exactly one of its three
// collections at any time; moving it between them is a transaction
// composed here by the lifecycle package.
package store
