// Package logx configures crewsched's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Loggers created from a Service stay "live" across Service.Apply() calls,
// so config hot reloads change sinks and level without re-plumbing loggers.
package logx
