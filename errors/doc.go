// Package errors is the error taxonomy relay services answer clients with.
// An AppError carries a machine-readable code, the HTTP status it maps to
// and whether the caller may retry. The cause is kept for logs and never
// serialized.
package errors
