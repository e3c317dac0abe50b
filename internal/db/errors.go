package db

import "errors"

var (
	// ErrKeyNotFound is returned by reads of absent keys.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when an FT index does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex for an existing index.
	ErrIndexExists = errors.New("db: index already exists")
	// ErrInvalidIndex wraps every IndexDefinition validation failure.
	ErrInvalidIndex = errors.New("db: invalid index definition")
)

// Command names recorded in Error.Op.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpAggregate   = "FT.AGGREGATE"
	OpJSONSet     = "JSON.SET"
	OpJSONGet     = "JSON.GET"
	OpExists      = "EXISTS"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error attaches the failing command to a driver error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
