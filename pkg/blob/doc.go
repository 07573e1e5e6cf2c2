// Package blob owns the lesson asset store: uploaded screens, panoramas,
// thumbnails, and description files living in an S3-compatible bucket.
//
// Object keys follow a strict folder scheme:
//
//	lessons/<lesson-id>/...       assets of a draft, published, or archived lesson
//	lesson_edits/<lesson-id>/...  assets uploaded during an open edit session
//	accounts/<account-id>/...     institution assets (logo)
//
// Edit uploads land under lesson_edits/ and are promoted into lessons/ by
// the submit reconciliation; the key keeps its tail, only the folder prefix
// changes. Paths are validated before any upload URL is signed so a client
// can never place an object outside its lesson's edit folder.
//
// The Store interface is what the lifecycle and cascade packages consume;
// S3Store is the production implementation.
package blob
