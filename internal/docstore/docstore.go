// Package docstore is a minimal schema-less document store: JSON documents
// grouped into named collections, queried with flat equality/membership
// filters. It offers no multi-document atomicity; the only cross-document
// guarantee is the set of declared unique indexes.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNoDocuments is returned by FindOne when nothing matches and by
	// UpdateByID when the target id does not exist.
	ErrNoDocuments = errors.New("docstore: no documents found")
	// ErrUniqueViolation is returned by Insert and UpdateByID when a write
	// would break a unique index.
	ErrUniqueViolation = errors.New("docstore: unique index violation")
)

// Filter matches documents field by field. A plain value means equality;
// wrap with In or Ne for membership and inequality. Values are compared by
// their JSON scalar representation.
type Filter map[string]any

// In matches documents whose field equals any listed value.
type In []any

// Ne matches documents whose field is present and differs from Value.
type Ne struct{ Value any }

// Sort orders FindMany results by one document field.
type Sort struct {
	Field string
	Desc  bool
}

type Store interface {
	// FindOne decodes the first matching document into out (a struct pointer).
	FindOne(ctx context.Context, collection string, f Filter, out any) error
	// FindMany decodes all matching documents into out (a pointer to a slice).
	// skip and limit are ignored when <= 0.
	FindMany(ctx context.Context, collection string, f Filter, sort *Sort, skip, limit int, out any) error
	Count(ctx context.Context, collection string, f Filter) (int64, error)
	Insert(ctx context.Context, collection, id string, doc any) error
	// UpdateByID merges patch into the stored document. A nil patch value
	// overwrites the field with JSON null.
	UpdateByID(ctx context.Context, collection, id string, patch map[string]any) error
	DeleteByID(ctx context.Context, collection, id string) (bool, error)
	DeleteMany(ctx context.Context, collection string, f Filter) (int64, error)
}
