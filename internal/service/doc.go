// Package service contains the application use cases: creating and
// transitioning jobs (and publishing every committed transition), assigning
// practice synchronously or through the dispatcher, and applying practice
// outcomes to skill ratings.
//
// Services receive their collaborators through constructor injection and
// depend only on the interfaces in internal/store, never on a concrete
// storage engine. Expected conditions are reported as sentinel errors so the
// API layer can map them with errors.Is.
package service
