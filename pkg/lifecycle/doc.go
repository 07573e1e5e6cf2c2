// Package lifecycle drives lessons through their three states: draft,
// published, archived.
//
// # State machine
//
//	draft --publish--> published --archive--> archived
//	                   published <--restore-- archived
//	published --duplicate--> draft (new lesson, new owner)
//	archived --permanent delete / retention sweep--> gone
//
// A lesson lives in exactly one collection at a time; every transition that
// moves a document between collections runs inside a store transaction, and
// blob side effects are applied strictly after the documents commit. A blob
// failure after commit is logged and surfaced as PartialFailure, never
// rolled back: stray objects in the bucket are cheaper than a lesson whose
// document and assets disagree.
//
// # Edit sessions
//
// Editing a published lesson never touches the live fields. StartEdit
// snapshots them into edit_data; every edit mutation rewrites the snapshot
// under a compare-and-swap on edit_data.current_editor, so a seized session
// cannot be written by its previous owner. Submit reconciles the snapshot
// against the live document: the full set of asset deletes and moves is
// computed before any file is touched, the document is committed first, and
// only then are stale assets deleted and new uploads promoted out of the
// lesson_edits/ folder.
//
// Seizure: a caller may take over another editor's session only when the
// session's initial editor outranks them (higher rank number), or when the
// caller holds rank 0.
//
// Every operation takes the acting user and scopes its document access with
// the policy compiler's predicate, so a lesson outside the caller's grants
// is indistinguishable from a missing one.
package lifecycle
