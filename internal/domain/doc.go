// Package domain contains the core business entities of the practice
// service: jobs and their lifecycle, practice items, skill ratings and the
// audit records kept for generated content. It has no dependency on
// storage or transport.
package domain
