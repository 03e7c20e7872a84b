// Package knowledge loads the per-candidate visual knowledge records and the
// identifier to class-index mapping used when building secondary-model
// prompts.
//
// Both files are parsed once at start-up. Entries of the wrong shape are
// dropped or reduced to empty fields at the parse boundary so the cascade never
// sees a malformed record.
package knowledge
