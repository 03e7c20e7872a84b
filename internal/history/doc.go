// Package history journals classification results in SQLite so the CLI can
// list what was decided and why.
package history
