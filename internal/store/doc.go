// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic: jobs and their compare-and-set
// transitions, skill ratings, the practice item bank and the generation
// audit log. Implementations live under internal/platform.
package store
