// Package config loads, normalizes, and validates entomo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ENTOMO_VLM_API_KEY. The Config type centralizes every knob the CLI and API
// server need: knowledge file locations, the cascade threshold and top-K, the
// vision-language model connection, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
