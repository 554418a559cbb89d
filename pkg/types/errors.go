package types

import "errors"

// Store operation errors.
var (
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidLevel  = errors.New("spell level must be between 0 and 9")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrUnknownKind   = errors.New("unknown content kind")
	ErrUnknownParent = errors.New("parent entity not found")
	ErrStoreClosed   = errors.New("store is closed")
	ErrKindMismatch  = errors.New("document kind does not match collection")
	ErrUnknownFormat = errors.New("unknown document format")
)

// Document and migration errors.
var (
	ErrMalformedRecord      = errors.New("malformed record")
	ErrMalformedSubDocument = errors.New("malformed sub-document")
	ErrSubDocumentVersion   = errors.New("unsupported sub-document version")
	ErrMigrationFailed      = errors.New("migration failed")
	ErrSchemaTooNew         = errors.New("store schema is newer than this build")
)
