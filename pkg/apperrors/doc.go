// Package apperrors defines the error taxonomy shared by the LessonForge
// service packages.
//
// Every fallible operation in the content store, policy compiler, lifecycle
// machine, and cascade orchestrator returns one of the kinds declared here,
// wrapped with operation context via fmt.Errorf("...: %w", err). Callers
// classify failures with the Is* helpers rather than string matching.
//
// Kinds:
//
//	Forbidden         - the authenticated caller lacks a grant for the operation
//	NotFound          - the target document does not exist (or is invisible to the caller on reads)
//	Conflict          - a uniqueness or compare-and-swap precondition failed
//	InvalidTransition - the lesson is not in a state that admits the requested transition
//	StorageFailure    - the document or blob store misbehaved before commit
//	PartialFailure    - the document change committed but a blob side effect failed
package apperrors
