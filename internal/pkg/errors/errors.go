package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound means the upload code did not resolve to a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMalformedBundle means a result bundle was missing a blob or undecodable.
	ErrMalformedBundle = errors.New("malformed bundle")
	// ErrUnsupportedDBMS means the bundle names a DBMS version absent from the catalog.
	ErrUnsupportedDBMS = errors.New("unsupported dbms")
	// ErrDBMSMismatch means the bundle's DBMS differs from the session's configured DBMS.
	ErrDBMSMismatch = errors.New("dbms mismatch")
	// ErrChainDispatch means ingestion committed but the recommendation chain
	// could not be submitted to the execution service.
	ErrChainDispatch = errors.New("chain dispatch failed")
	// ErrStageLookup means the execution service could not be queried for a stage.
	ErrStageLookup = errors.New("stage lookup failed")
	// ErrAlreadyLaunched means a recommendation chain was already recorded for a result.
	ErrAlreadyLaunched = errors.New("chain already launched")
)

// UnsupportedDBMSError carries the DBMS identity that failed catalog resolution.
type UnsupportedDBMSError struct {
	Type    string
	Version string
}

func (e *UnsupportedDBMSError) Error() string {
	return fmt.Sprintf("%s v%s is not yet supported", e.Type, e.Version)
}

func (e *UnsupportedDBMSError) Unwrap() error { return ErrUnsupportedDBMS }

// DBMSMismatchError names the expected and actual DBMS of a rejected upload.
type DBMSMismatchError struct {
	Expected string
	Actual   string
}

func (e *DBMSMismatchError) Error() string {
	return fmt.Sprintf("dbms mismatch (expected=%s) (actual=%s)", e.Expected, e.Actual)
}

func (e *DBMSMismatchError) Unwrap() error { return ErrDBMSMismatch }
