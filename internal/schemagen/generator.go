// Package schemagen compiles client schema descriptions into an executable
// GraphQL schema.
//
// Construction runs in three passes over an arena of per-model bundles:
// skeletons with relation fields left as placeholders, relationship wiring,
// and non-null wrapping. Each pass produces a fresh field plan for every
// bundle; object types read the final plan through a fields thunk, so a
// relation may name any model in the batch regardless of declaration order.
package schemagen

import (
	"fmt"
	"log/slog"
	"strings"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/logging"
	"model-graphql/internal/naming"

	"github.com/graphql-go/graphql"
)

// Mode selects the shape of the generated API.
type Mode string

const (
	// ModeRelay emits cursor connections and clientMutationId envelopes.
	ModeRelay Mode = "relay"
	// ModeSimple emits skip/take lists and bare mutation results.
	ModeSimple Mode = "simple"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRelay, "":
		return ModeRelay, nil
	case ModeSimple:
		return ModeSimple, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (expected relay or simple)", s)
	}
}

// Options configures a Generator.
type Options struct {
	Mode   Mode
	Logger *logging.Logger
	// Enums is shared across builds when set. Builds through different
	// registries never share enum instances.
	Enums *EnumRegistry
}

// Generator builds GraphQL schemas from client schema descriptions.
type Generator struct {
	mode   Mode
	logger *logging.Logger
	enums  *EnumRegistry
}

// New returns a Generator.
func New(opts Options) *Generator {
	mode := opts.Mode
	if mode == "" {
		mode = ModeRelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	enums := opts.Enums
	if enums == nil {
		enums = NewEnumRegistry()
	}
	return &Generator{mode: mode, logger: logger, enums: enums}
}

// Mode returns the generator's output mode.
func (g *Generator) Mode() Mode {
	return g.mode
}

// Bundle holds every generated artifact for one model.
type Bundle struct {
	Entity     clientschema.Entity
	Object     *graphql.Object
	Connection *graphql.Object
	Edge       *graphql.Object
	SortBy     *graphql.Enum
	Filter     *graphql.InputObject

	CreateArgs graphql.FieldConfigArgument
	UpdateArgs graphql.FieldConfigArgument
	FilterArgs graphql.FieldConfigArgument

	createSpecs []argSpec
	updateSpecs []argSpec
	filterSpecs map[string]argSpec

	fields []fieldPlan
}

// Result is a compiled schema together with its bundle registry.
type Result struct {
	Schema  graphql.Schema
	Bundles map[string]*Bundle
	Order   []string
}

// build carries the state of one Build call. It is discarded once the
// schema exists; resolvers keep only the read-only bundle registry.
type build struct {
	gen     *Generator
	schema  clientschema.Schema
	bundles map[string]*Bundle
	order   []string
	names   *naming.CollisionResolver

	node     *graphql.Interface
	pageInfo *graphql.Object
	viewer   *graphql.Object
}

// Build validates schema and compiles it.
func (g *Generator) Build(schema clientschema.Schema) (*Result, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	b := &build{
		gen:     g,
		schema:  schema,
		bundles: make(map[string]*Bundle, len(schema.Models)),
		names:   naming.NewCollisionResolver(g.logger.Logger),
	}
	b.node = b.nodeInterface()
	b.pageInfo = pageInfoType()

	for _, entity := range schema.Models {
		bundle, err := b.skeleton(entity)
		if err != nil {
			return nil, err
		}
		b.bundles[entity.ModelName] = bundle
		b.order = append(b.order, entity.ModelName)
	}

	for _, name := range b.order {
		bundle := b.bundles[name]
		wired, err := b.wire(bundle)
		if err != nil {
			return nil, err
		}
		bundle.fields = wired
	}

	for _, name := range b.order {
		bundle := b.bundles[name]
		final, err := applyNonNull(bundle.Entity, bundle.fields)
		if err != nil {
			return nil, err
		}
		bundle.fields = final
	}

	b.viewer = b.viewerType()
	query, err := b.queryType()
	if err != nil {
		return nil, err
	}
	mutation, err := b.mutationType()
	if err != nil {
		return nil, err
	}

	types := make([]graphql.Type, 0, len(b.order))
	for _, name := range b.order {
		types = append(types, b.bundles[name].Object)
	}
	compiled, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
		Types:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble GraphQL schema: %w", err)
	}

	g.logger.Info("generated GraphQL schema",
		slog.Int("models", len(b.order)),
		slog.String("mode", string(g.mode)),
	)

	return &Result{Schema: compiled, Bundles: b.bundles, Order: b.order}, nil
}

func (b *build) relay() bool {
	return b.gen.mode == ModeRelay
}
