package naming

import (
	"fmt"
	"log/slog"
)

// CollisionError reports two sources claiming the same generated name.
type CollisionError struct {
	Name     string
	Existing string
	Source   string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("generated name %q for %s collides with %s", e.Name, e.Source, e.Existing)
}

// CollisionResolver tracks the type and root field names claimed during a
// build. Generated names are part of the client contract, so a collision is
// reported instead of renamed.
type CollisionResolver struct {
	seenTypes  map[string]string // GraphQL type name -> source
	seenFields map[string]string // root field name -> source
	logger     *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenTypes:  make(map[string]string),
		seenFields: make(map[string]string),
		logger:     logger,
	}
}

// RegisterType claims a GraphQL type name for source.
func (c *CollisionResolver) RegisterType(name, source string) error {
	return c.claim(name, c.seenTypes, source)
}

// RegisterRootField claims a root query or mutation field name for source.
func (c *CollisionResolver) RegisterRootField(name, source string) error {
	return c.claim(name, c.seenFields, source)
}

// TypeExists reports whether a type name has been claimed.
func (c *CollisionResolver) TypeExists(name string) bool {
	_, ok := c.seenTypes[name]
	return ok
}

func (c *CollisionResolver) claim(name string, seen map[string]string, source string) error {
	existing, exists := seen[name]
	if !exists {
		seen[name] = source
		return nil
	}
	c.logger.Warn("naming collision detected",
		slog.String("name", name),
		slog.String("existing_source", existing),
		slog.String("new_source", source),
	)
	return &CollisionError{Name: name, Existing: existing, Source: source}
}
