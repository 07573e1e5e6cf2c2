// Package cascade implements the multi-collection delete flows: removing an
// institution account and removing a category.
//
// Both run as a single store transaction; the first failing sub-step aborts
// everything already applied. Content created by deleted users is never
// destroyed with them: published and archived lessons are reassigned to the
// system admin so the catalog survives institution churn. Blob folders are
// removed only after the documents commit.
package cascade
