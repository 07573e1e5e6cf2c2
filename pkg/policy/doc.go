// Package policy compiles the declarative authorization filters stored on
// roles into MongoDB query predicates, and enforces field-level write limits.
//
// # Compilation
//
// Compile answers "which documents of this resource may this user touch with
// this action" as a bson.M predicate. Callers AND it with their own criteria
// (usually an _id match) and hand the result to the store; authorization and
// retrieval collapse into one query, so an invisible document and a missing
// document are indistinguishable by construction.
//
// A user whose role has no permission entry for the (resource, action) pair
// gets an explicit Forbidden error. There is no "no filters means see
// everything" fallback for missing permissions; an empty predicate is only
// produced by a permission that genuinely declares no filters (admin).
//
// Static filters carry their value inline. Dynamic filters resolve theirs
// from the calling user's resolved document at compile time by walking
// dynamic_field, at most one joined relation (role or account) deep. Walking
// into a relation the user does not have is a hard error, not an empty
// match: a broken filter must never widen visibility.
//
// # Write limits
//
// VerifyWriteGuard enforces the update_limites/create_limites filters
// against a proposed set of field values before a write is attempted. A
// filter whose value is the literal "*" declares its field immutable for
// that role. Unknown operators fail closed.
//
// # Role cache
//
// Roles are read-heavy and change rarely. The compiler owns a read-through
// TTL cache keyed by internal name; mutation paths call Invalidate. The
// cache is instance state handed out by New, never package state.
package policy
