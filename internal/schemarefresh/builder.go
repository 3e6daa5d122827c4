package schemarefresh

import (
	"context"
	"fmt"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/logging"
	"model-graphql/internal/schemagen"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BuildSchemaConfig defines inputs for schema assembly.
type BuildSchemaConfig struct {
	Path   string
	Mode   schemagen.Mode
	Logger *logging.Logger
}

// BuildSchemaResult contains schema artifacts produced by BuildSchema.
type BuildSchemaResult struct {
	Source        clientschema.Schema
	GraphQLSchema graphql.Schema
	Fingerprint   string
}

// LoadSource reads the description file and returns it with its fingerprint.
func LoadSource(path string) (clientschema.Schema, string, error) {
	source, err := clientschema.LoadFile(path)
	if err != nil {
		return clientschema.Schema{}, "", err
	}
	return source, source.Fingerprint(), nil
}

// BuildSchema loads the description at cfg.Path and compiles it.
func BuildSchema(ctx context.Context, cfg BuildSchemaConfig) (*BuildSchemaResult, error) {
	source, err := clientschema.LoadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return CompileSchema(ctx, source, cfg)
}

// CompileSchema compiles an already loaded description.
func CompileSchema(ctx context.Context, source clientschema.Schema, cfg BuildSchemaConfig) (*BuildSchemaResult, error) {
	_, span := otel.Tracer("model-graphql/schema").Start(ctx, "schema.build")
	defer span.End()

	gen := schemagen.New(schemagen.Options{Mode: cfg.Mode, Logger: cfg.Logger})
	result, err := gen.Build(source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema build failed")
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	fingerprint := source.Fingerprint()
	span.SetAttributes(
		attribute.String("schema.mode", string(gen.Mode())),
		attribute.Int("schema.models", len(source.Models)),
		attribute.String("schema.fingerprint", fingerprint),
	)

	return &BuildSchemaResult{
		Source:        source,
		GraphQLSchema: result.Schema,
		Fingerprint:   fingerprint,
	}, nil
}
