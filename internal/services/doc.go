// Package services defines shared utilities consumed by the cascade and its
// external integrations (primary classifier, vision-language model).
//
// Key responsibilities:
//   - Context helpers that stamp session and correlation identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent API status codes.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability) stays uniform across the module.
package services
