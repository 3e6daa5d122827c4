package schemagen

import (
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"

	"github.com/graphql-go/graphql"
)

// argSpec is one synthesized argument. Relation arguments carry the
// relation field so callers can decode the foreign global id.
type argSpec struct {
	name     string
	field    clientschema.Field
	relation bool
	typ      graphql.Input
}

// argShape parameterizes the one routine behind the create, update and
// filter argument shapes.
type argShape struct {
	scalar           func(clientschema.Field) bool
	relation         func(clientschema.Field) bool
	forceOptional    bool
	identityOptional bool
}

var (
	createShape = argShape{
		scalar:   func(f clientschema.Field) bool { return !f.IsIdentity() },
		relation: clientschema.Field.IsOneToOne,
	}
	updateShape = argShape{
		scalar:        func(clientschema.Field) bool { return true },
		relation:      clientschema.Field.IsOneToOne,
		forceOptional: true,
	}
	filterShape = argShape{
		scalar:           func(f clientschema.Field) bool { return !f.IsSecret() },
		relation:         clientschema.Field.IsOneToOne,
		forceOptional:    true,
		identityOptional: true,
	}
)

// synthesizeArgs derives an argument list from entity. List relations are
// never part of an argument shape.
func (b *build) synthesizeArgs(entity clientschema.Entity, shape argShape) ([]argSpec, error) {
	var specs []argSpec
	for _, f := range entity.Fields {
		switch {
		case f.IsOneToMany():
			continue
		case f.IsOneToOne():
			if !shape.relation(f) {
				continue
			}
			specs = append(specs, argSpec{
				name:     f.ForeignKeyName(),
				field:    f,
				relation: true,
				typ:      wrapRequired(graphql.ID, f.IsRequired && !shape.forceOptional),
			})
		default:
			if !shape.scalar(f) {
				continue
			}
			typ, err := b.gen.inputType(entity.ModelName, f)
			if err != nil {
				return nil, err
			}
			required := f.IsRequired && !shape.forceOptional
			if f.IsIdentity() {
				required = !shape.identityOptional
			}
			specs = append(specs, argSpec{
				name:  f.Name,
				field: f,
				typ:   wrapRequired(typ, required),
			})
		}
	}
	return specs, nil
}

func wrapRequired(typ graphql.Input, required bool) graphql.Input {
	if required {
		return graphql.NewNonNull(typ)
	}
	return typ
}

func toArguments(specs []argSpec) graphql.FieldConfigArgument {
	args := make(graphql.FieldConfigArgument, len(specs))
	for _, spec := range specs {
		args[spec.name] = &graphql.ArgumentConfig{Type: spec.typ}
	}
	return args
}

func toInputFields(specs []argSpec) graphql.InputObjectConfigFieldMap {
	fields := make(graphql.InputObjectConfigFieldMap, len(specs))
	for _, spec := range specs {
		fields[spec.name] = &graphql.InputObjectFieldConfig{Type: spec.typ}
	}
	return fields
}

// sortEnum emits <field>_ASC and <field>_DESC for every scalar field.
func sortEnum(entity clientschema.Entity) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for _, f := range entity.Fields {
		if f.IsRelation() || f.IsSecret() {
			continue
		}
		for _, dir := range []string{naming.Ascending, naming.Descending} {
			name := naming.SortValue(f.Name, dir)
			values[name] = &graphql.EnumValueConfig{Value: name}
		}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:   naming.SortByType(entity.ModelName),
		Values: values,
	})
}

// collectionArgs wraps the filter shape with pagination and ordering
// arguments for the configured output mode.
func (b *build) collectionArgs(bundle *Bundle) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"filter":  &graphql.ArgumentConfig{Type: bundle.Filter},
		"orderBy": &graphql.ArgumentConfig{Type: bundle.SortBy},
	}
	if b.relay() {
		args["first"] = &graphql.ArgumentConfig{Type: graphql.Int}
		args["after"] = &graphql.ArgumentConfig{Type: graphql.String}
		args["last"] = &graphql.ArgumentConfig{Type: graphql.Int}
		args["before"] = &graphql.ArgumentConfig{Type: graphql.String}
	} else {
		args["skip"] = &graphql.ArgumentConfig{Type: graphql.Int}
		args["take"] = &graphql.ArgumentConfig{Type: graphql.Int}
	}
	return args
}
