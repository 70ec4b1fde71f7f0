// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package: jobs with
// compare-and-set transitions, skill ratings with row-locked updates, the
// practice item bank and the generation audit log. Schema migrations are
// embedded and applied with goose.
package postgres
