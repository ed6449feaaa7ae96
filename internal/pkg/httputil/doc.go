// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers write through these helpers instead of raw http.ResponseWriter
// calls, and report workflow failures with AppError so that every route
// maps error kinds to the same status codes.
package httputil
