// Package api serves the cascade over HTTP and defines its wire types.
//
// # Routes
//
//	POST /v1/sessions/{id}/classify   classify one image for a session
//	GET  /v1/sessions/{id}            session settings and last result (404 if unknown)
//	DELETE /v1/sessions/{id}          cancel in-flight work and forget the session
//	GET  /v1/sessions/{id}/threshold  read the session threshold (404 if unknown)
//	PUT  /v1/sessions/{id}/threshold  change threshold and/or top-K
//	GET  /healthz                     liveness
//	GET  /metrics                     Prometheus exposition (optional)
//
// Sessions are created by the first classify or threshold PUT, with the
// configured defaults. Reads never create one. A classify request on a session
// cancels the one still running; the superseded caller receives 409.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds. A
// secondary-model failure is not an HTTP error: the response carries the
// primary fallback and the failure text in secondaryError.
package api
