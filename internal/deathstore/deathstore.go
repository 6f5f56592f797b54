// Package deathstore holds what the death record backends share.
package deathstore

import "errors"

// ErrNotFound is returned when a death record does not exist.
var ErrNotFound = errors.New("death record not found")

// Backend names accepted by the storage configuration.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)
