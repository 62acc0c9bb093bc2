// Package schedule holds the persisted schedule model: the Entry record, the
// file-backed Store that owns the on-disk collection, and the pure trigger
// builder that turns an Entry's trigger fields into something the scheduler
// engine can arm.
//
// # Store layout
//
// The store is a single JSON document {"schedules": [...]} at
// db/schedules.json under the configured root. A sibling <path>.lock file is
// used as a cross-process advisory lock for mutations; every write goes to a
// temp file in the same directory and is renamed into place, so readers never
// observe a torn file.
//
// # Sharing
//
// The short-lived CLI and the long-running service both open the same store.
// Mutations (Upsert/Delete) serialize on the lock; List reads without the
// lock and may observe either side of a concurrent mutation, never a partial
// one.
package schedule
