// Package memory provides in-process implementations of the store
// interfaces. They back the "memory" database driver for local development
// and are the default fixtures in tests. State is lost on restart.
package memory
