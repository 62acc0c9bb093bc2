package storage

// Package storage persists run history: one row per job firing, appended by
// the runner and read back by the `history` subcommand.
//
// History is optional; with an empty driver the runner simply skips it.
// The schedule collection itself is NOT stored here; that lives in the
// file-backed schedule.Store, which the CLI and the service share.
