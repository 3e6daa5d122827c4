package schemagen

import (
	"fmt"

	"model-graphql/internal/clientschema"

	"github.com/graphql-go/graphql"
)

type fieldKind int

const (
	kindScalar fieldKind = iota
	kindOneToOne
	kindOneToMany
)

// fieldPlan is one output field as seen by a single pass. A relation plan
// carries only its target tag until the wiring pass supplies a type.
type fieldPlan struct {
	field   clientschema.Field
	kind    fieldKind
	target  string
	typ     graphql.Output
	args    graphql.FieldConfigArgument
	resolve graphql.FieldResolveFn
}

func (p fieldPlan) unresolved() bool {
	return p.typ == nil
}

// mapType maps a field to its output type. Identifiers that are not scalar
// kinds come back as a relation target with a nil type.
func (g *Generator) mapType(model string, f clientschema.Field) (graphql.Output, string) {
	if f.IsIdentity() {
		return graphql.ID, ""
	}
	switch f.TypeIdentifier {
	case clientschema.TypeString, clientschema.TypePassword:
		return graphql.String, ""
	case clientschema.TypeBoolean:
		return graphql.Boolean, ""
	case clientschema.TypeInt:
		return graphql.Int, ""
	case clientschema.TypeFloat:
		return graphql.Float, ""
	case clientschema.TypeID:
		return graphql.ID, ""
	case clientschema.TypeEnum:
		return g.enums.Enum(model, f), ""
	default:
		return nil, f.TypeIdentifier
	}
}

// inputType maps a scalar field to its argument type.
func (g *Generator) inputType(model string, f clientschema.Field) (graphql.Input, error) {
	out, target := g.mapType(model, f)
	if target != "" {
		return nil, fmt.Errorf("%s.%s: relation has no scalar input type", model, f.Name)
	}
	in, ok := out.(graphql.Input)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %s is not an input type", model, f.Name, out.Name())
	}
	return in, nil
}
