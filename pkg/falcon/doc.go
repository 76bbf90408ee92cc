// Package falcon implements the typed resource operations of the API on top
// of the client and pagination packages: hosts (devices), alerts and
// Spotlight vulnerabilities.
//
// List operations drain every page before returning. Detail operations
// split id lists into chunks of 100 and, for devices, read through the
// Redis entity cache when the client has one.
//
// Alert operations report failures as a Result instead of a bare error so
// callers can inspect the status code, raw body and API-level errors of
// the last response.
package falcon
