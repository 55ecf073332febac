// Package storage defines the key/value store used to persist notification
// delivery records.
package storage

// Getter is an interface for getting data from a key/value store.
type Getter interface {
	// Get retrieves the value for a key.
	// Returns a nil value if the key does not exist.
	Get(key []byte) (value []byte, err error)
}

// Setter is an interface for setting data in a key/value store.
type Setter interface {
	// Set sets the value for a key. Overwrites an existing value.
	Set(key, value []byte) error
}

// Deleter is an interface for deleting data in a key/value store.
type Deleter interface {
	// Delete removes keys. Missing keys are not an error.
	Delete(keys ...[]byte) error
}

// Iterator is an interface for iterating data in a key/value store.
type Iterator interface {
	// ForEach executes a function for each key/value pair. If the provided
	// function returns an error then the iteration is stopped and the error
	// is returned to the caller. The provided function must not modify the
	// store; this will result in undefined behavior.
	ForEach(fn func(k, v []byte) error) error
}

// Counter is an interface for reporting the number of keys in a store.
type Counter interface {
	Count() (int, error)
}

// KVStore is the full key/value store interface.
type KVStore interface {
	Getter
	Setter
	Deleter
	Iterator
	Counter
}
