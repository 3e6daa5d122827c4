// Package backend is the capability object generated resolvers call at request time.
// A Backend is request-scoped: it is bound to the caller's identity and carried
// through the request context, never cached across requests.
package backend

import (
	"context"
	"errors"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/store"
)

// Record is a stored entity. The "id" key holds the internal id.
type Record = store.Record

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = store.ErrNotFound

// ErrNoBackend is returned by FromContext when the request carries no backend.
var ErrNoBackend = errors.New("no backend bound to request context")

// Operation describes the GraphQL field a backend call is made for.
type Operation struct {
	Type       string // query or mutation
	FieldName  string
	ParentType string
}

// Backend is the persistence and identity capability consumed by the schema.
type Backend interface {
	// AllNodesByType lists every record of entity visible to user.
	AllNodesByType(ctx context.Context, entity string, args map[string]any, schema clientschema.Entity, user Record, op Operation) ([]Record, error)
	// NodesByRelation lists the records reachable from owner through a one-to-many relation field.
	NodesByRelation(ctx context.Context, ownerEntity, ownerID, relationField string, args map[string]any, related clientschema.Entity, user Record, op Operation) ([]Record, error)
	// NodeByID returns one record, or (nil, nil) when it does not exist.
	NodeByID(ctx context.Context, entity, id string, schema clientschema.Entity, user Record, op Operation) (Record, error)
	// FindUserByEmail looks up a user for sign-in. It bypasses access checks.
	FindUserByEmail(ctx context.Context, email string) (Record, error)
	// CreateNode stores a new record and returns it with its internal id.
	CreateNode(ctx context.Context, entity string, data Record, schema clientschema.Entity, user Record, op Operation) (Record, error)
	// UpdateNode merges data into an existing record.
	UpdateNode(ctx context.Context, entity, id string, data Record, schema clientschema.Entity, user Record, op Operation) (Record, error)
	// DeleteNode removes a record and returns its last state.
	DeleteNode(ctx context.Context, entity, id string, schema clientschema.Entity, user Record, op Operation) (Record, error)
	// HashSecret hashes a Password field value before storage.
	HashSecret(ctx context.Context, plaintext string) (string, error)
	// CompareSecret reports whether plaintext matches hash.
	CompareSecret(ctx context.Context, plaintext, hash string) (bool, error)
	// IssueToken returns a bearer token for user.
	IssueToken(user Record) (string, error)
	// CurrentUser returns the authenticated user, or nil.
	CurrentUser(ctx context.Context) (Record, error)
}

type backendKey struct{}

// WithBackend binds b to the request context.
func WithBackend(ctx context.Context, b Backend) context.Context {
	return context.WithValue(ctx, backendKey{}, b)
}

// FromContext returns the request's backend.
func FromContext(ctx context.Context) (Backend, error) {
	if ctx == nil {
		return nil, ErrNoBackend
	}
	b, ok := ctx.Value(backendKey{}).(Backend)
	if !ok || b == nil {
		return nil, ErrNoBackend
	}
	return b, nil
}

type userIDKey struct{}

// WithUserID records the authenticated user id for the request. The schema
// handler binds a backend for that user when the request is served.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user id recorded by WithUserID, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
