package schemagen

import (
	"fmt"

	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"
	"model-graphql/internal/nodeid"

	"github.com/graphql-go/graphql"
)

// skeleton is pass one: it builds every artifact of a model's bundle with
// relation fields left as placeholders.
func (b *build) skeleton(entity clientschema.Entity) (*Bundle, error) {
	model := entity.ModelName
	source := "model:" + model
	for _, name := range []string{
		model,
		naming.ConnectionType(model),
		naming.EdgeType(model),
		naming.FilterType(model),
		naming.SortByType(model),
	} {
		if err := b.names.RegisterType(name, source); err != nil {
			return nil, err
		}
	}

	bundle := &Bundle{Entity: entity}
	for _, f := range entity.Fields {
		if f.IsSecret() {
			continue
		}
		plan, err := b.planField(entity, f)
		if err != nil {
			return nil, err
		}
		bundle.fields = append(bundle.fields, plan)
		if f.TypeIdentifier == clientschema.TypeEnum {
			if err := b.names.RegisterType(naming.EnumType(model, f.Name), source); err != nil {
				return nil, err
			}
		}
	}

	bundle.Object = graphql.NewObject(graphql.ObjectConfig{
		Name:       model,
		Interfaces: []*graphql.Interface{b.node},
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return bundle.outputFields()
		}),
	})
	bundle.Edge = edgeType(model, bundle.Object)
	bundle.Connection = connectionType(model, bundle.Edge, b.pageInfo)
	bundle.SortBy = sortEnum(entity)

	var err error
	if bundle.createSpecs, err = b.synthesizeArgs(entity, createShape); err != nil {
		return nil, err
	}
	if bundle.updateSpecs, err = b.synthesizeArgs(entity, updateShape); err != nil {
		return nil, err
	}
	filterSpecs, err := b.synthesizeArgs(entity, filterShape)
	if err != nil {
		return nil, err
	}
	bundle.filterSpecs = make(map[string]argSpec, len(filterSpecs))
	for _, spec := range filterSpecs {
		bundle.filterSpecs[spec.name] = spec
	}

	bundle.CreateArgs = toArguments(bundle.createSpecs)
	bundle.UpdateArgs = toArguments(bundle.updateSpecs)
	bundle.Filter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   naming.FilterType(model),
		Fields: toInputFields(filterSpecs),
	})
	bundle.FilterArgs = b.collectionArgs(bundle)

	return bundle, nil
}

// planField maps one field and attaches its value resolver. Relations get a
// placeholder plan that only names the target model.
func (b *build) planField(entity clientschema.Entity, f clientschema.Field) (fieldPlan, error) {
	typ, target := b.gen.mapType(entity.ModelName, f)
	switch {
	case target == "":
		plan := fieldPlan{field: f, kind: kindScalar, typ: typ}
		if f.IsIdentity() {
			plan.resolve = identityResolver(entity.ModelName, f)
		} else {
			plan.resolve = valueResolver(f)
		}
		return plan, nil
	case f.IsList:
		return fieldPlan{field: f, kind: kindOneToMany, target: target}, nil
	default:
		return fieldPlan{field: f, kind: kindOneToOne, target: target}, nil
	}
}

func (bundle *Bundle) outputFields() graphql.Fields {
	fields := make(graphql.Fields, len(bundle.fields))
	for _, plan := range bundle.fields {
		fields[plan.field.Name] = &graphql.Field{
			Name:    plan.field.Name,
			Type:    plan.typ,
			Args:    plan.args,
			Resolve: plan.resolve,
		}
	}
	return fields
}

func identityResolver(model string, f clientschema.Field) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		value := valueOrDefault(sourceRecord(p.Source), f)
		if value == nil {
			return nil, nil
		}
		id := fmt.Sprint(value)
		if err := nodeid.Check(model, id); err != nil {
			return nil, err
		}
		return nodeid.Encode(model, id), nil
	}
}

func valueResolver(f clientschema.Field) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return valueOrDefault(sourceRecord(p.Source), f), nil
	}
}

// valueOrDefault returns the stored value, or the field's declared default
// when the value is missing, null or an empty string.
func valueOrDefault(rec backend.Record, f clientschema.Field) any {
	value, ok := rec[f.Name]
	if ok && !isBlank(value) {
		return value
	}
	if def, declared, err := f.ParsedDefault(); err == nil && declared {
		return def
	}
	if ok {
		return value
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func sourceRecord(source interface{}) backend.Record {
	switch rec := source.(type) {
	case backend.Record:
		return rec
	case map[string]interface{}:
		return backend.Record(rec)
	default:
		return nil
	}
}
