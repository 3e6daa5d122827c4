package schemagen

import (
	"sync"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"

	"github.com/graphql-go/graphql"
)

// EnumRegistry memoizes enum types by model and field so every reference
// to the same field shares one enum instance.
type EnumRegistry struct {
	mu    sync.Mutex
	enums map[string]*graphql.Enum
}

// NewEnumRegistry returns an empty registry.
func NewEnumRegistry() *EnumRegistry {
	return &EnumRegistry{enums: make(map[string]*graphql.Enum)}
}

// Enum returns the enum type for field on model, creating it on first use.
func (r *EnumRegistry) Enum(model string, field clientschema.Field) *graphql.Enum {
	key := naming.EnumType(model, field.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.enums[key]; ok {
		return cached
	}

	values := make(graphql.EnumValueConfigMap, len(field.EnumValues))
	for _, v := range field.EnumValues {
		values[v] = &graphql.EnumValueConfig{Value: v}
	}
	enum := graphql.NewEnum(graphql.EnumConfig{
		Name:   key,
		Values: values,
	})
	r.enums[key] = enum
	return enum
}

// Len returns the number of cached enums.
func (r *EnumRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.enums)
}
