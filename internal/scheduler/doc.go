// Package scheduler keeps a live, in-process job engine synchronized with
// the schedule store and executes jobs when they fire.
//
// # Reconciliation
//
// The poll loop stats the store's backing file once per tick and runs a full
// reconciliation pass only when its mtime changed (plus once at startup).
// A pass rebuilds the armed job set from scratch rules: enabled entries with
// a buildable trigger are armed; a changed updated_at replaces the job;
// everything else is removed. The remembered updated_at per id lives only in
// this process; a restarted service treats every entry as new.
//
// # Firing policy
//
// At most one execution per schedule id runs at a time; a firing that
// arrives while the previous one is pending or running is dropped, which
// also coalesces back-to-back missed firings into one run. A firing that
// sat in the queue longer than the misfire grace period is skipped rather
// than run late.
//
// # Shutdown
//
// Stop() halts polling and the engine promptly and does not wait for
// in-flight jobs; they finish or are abandoned when the process exits.
package scheduler
