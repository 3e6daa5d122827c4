package schemagen

import (
	"context"
	"errors"
	"fmt"

	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"
	"model-graphql/internal/nodeid"
	"model-graphql/internal/observability"

	"github.com/graphql-go/graphql"
)

const clientMutationIDField = "clientMutationId"

var mutationOps = []string{naming.OpCreate, naming.OpUpdate, naming.OpDelete}

func (b *build) mutationType() (*graphql.Object, error) {
	fields := graphql.Fields{}
	for _, name := range b.order {
		bundle := b.bundles[name]
		for _, op := range mutationOps {
			fieldName := naming.MutationField(op, name)
			if err := b.names.RegisterRootField(fieldName, naming.MutationType); err != nil {
				return nil, err
			}
			field, err := b.mutationField(bundle, op)
			if err != nil {
				return nil, err
			}
			fields[fieldName] = field
		}
	}
	if b.schema.HasUser() {
		if err := b.names.RegisterRootField(naming.SigninField, naming.MutationType); err != nil {
			return nil, err
		}
		fields[naming.SigninField] = b.signinField()
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name:   naming.MutationType,
		Fields: fields,
	}), nil
}

func (b *build) mutationSpecs(bundle *Bundle, op string) []argSpec {
	switch op {
	case naming.OpCreate:
		return bundle.createSpecs
	case naming.OpUpdate:
		return bundle.updateSpecs
	default:
		identity, _ := bundle.Entity.Field(clientschema.IDFieldName)
		return []argSpec{{name: identity.Name, field: identity, typ: graphql.NewNonNull(graphql.ID)}}
	}
}

// mutationField builds one create, update or delete field. Simple mode
// takes flat arguments and returns the record; relay mode takes a single
// input object and returns a payload envelope.
func (b *build) mutationField(bundle *Bundle, op string) (*graphql.Field, error) {
	model := bundle.Entity.ModelName
	specs := b.mutationSpecs(bundle, op)
	resolve := b.mutationResolver(bundle, op, specs)
	if !b.relay() {
		return &graphql.Field{
			Type:    bundle.Object,
			Args:    toArguments(specs),
			Resolve: resolve,
		}, nil
	}

	inputName, payloadName := naming.InputType(op, model), naming.PayloadType(op, model)
	for _, name := range []string{inputName, payloadName} {
		if err := b.names.RegisterType(name, "model:"+model); err != nil {
			return nil, err
		}
	}

	inputFields := toInputFields(specs)
	inputFields[clientMutationIDField] = &graphql.InputObjectFieldConfig{Type: graphql.String}
	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   inputName,
		Fields: inputFields,
	})

	payloadFields := graphql.Fields{
		clientMutationIDField: &graphql.Field{Type: graphql.String},
		"viewer":              &graphql.Field{Type: b.viewer},
	}
	if op == naming.OpDelete {
		payloadFields["deletedId"] = &graphql.Field{Type: graphql.ID}
	} else {
		payloadFields["edge"] = &graphql.Field{Type: bundle.Edge}
	}
	recordField := naming.PayloadField(model)
	if _, taken := payloadFields[recordField]; taken {
		return nil, fmt.Errorf("%s: payload field %q collides with a generated payload field", payloadName, recordField)
	}
	payloadFields[recordField] = &graphql.Field{Type: bundle.Object}

	return &graphql.Field{
		Type: graphql.NewObject(graphql.ObjectConfig{
			Name:   payloadName,
			Fields: payloadFields,
		}),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		},
		Resolve: resolve,
	}, nil
}

// mutationInput returns the argument map for the output mode together with
// the relay clientMutationId, if any.
func (b *build) mutationInput(p graphql.ResolveParams) (map[string]interface{}, interface{}) {
	if !b.relay() {
		return p.Args, nil
	}
	input, _ := p.Args["input"].(map[string]interface{})
	if input == nil {
		input = map[string]interface{}{}
	}
	return input, input[clientMutationIDField]
}

// recordFromInput converts mutation arguments into a record, decoding
// relation arguments from global ids to internal ids. graphql-go drops
// null-valued arguments, so an explicit null leaves the stored value as is.
func recordFromInput(specs []argSpec, input map[string]interface{}) (backend.Record, error) {
	rec := backend.Record{}
	for _, spec := range specs {
		value, present := input[spec.name]
		if !present || spec.field.IsIdentity() {
			continue
		}
		if !spec.relation {
			rec[spec.name] = value
			continue
		}
		id, err := nodeid.DecodeFor(spec.field.TypeIdentifier, fmt.Sprint(value))
		if err != nil {
			return nil, newInvalidID(err)
		}
		rec[spec.name] = id
	}
	return rec, nil
}

func (b *build) mutationResolver(bundle *Bundle, op string, specs []argSpec) graphql.FieldResolveFn {
	model := bundle.Entity.ModelName
	return func(p graphql.ResolveParams) (interface{}, error) {
		input, clientMutationID := b.mutationInput(p)

		var id string
		if op != naming.OpCreate {
			decoded, err := nodeid.DecodeFor(model, fmt.Sprint(input[clientschema.IDFieldName]))
			if err != nil {
				return nil, newInvalidID(err)
			}
			id = decoded
		}
		data, err := recordFromInput(specs, input)
		if err != nil {
			return nil, err
		}

		ctx, be, user, err := requestScope(p)
		if err != nil {
			return nil, err
		}
		meta := operationFor(p)

		ctx, span := startResolverSpan(ctx, "graphql.mutation."+op, entityAttrs(model, p.Info.FieldName)...)
		var rec backend.Record
		switch op {
		case naming.OpCreate:
			rec, err = be.CreateNode(ctx, model, data, bundle.Entity, user, meta)
		case naming.OpUpdate:
			rec, err = be.UpdateNode(ctx, model, id, data, bundle.Entity, user, meta)
		default:
			rec, err = be.DeleteNode(ctx, model, id, bundle.Entity, user, meta)
		}
		observability.GraphQLMetricsFromContext(ctx).RecordMutation(ctx, op, model, err == nil)
		if errors.Is(err, backend.ErrNotFound) {
			err = newResolverError(CodeNotFound, "%s not found", model)
			finishResolverSpan(span, err, "typed_failure")
			return nil, err
		}
		finishResolverSpan(span, err, "")
		if err != nil {
			return nil, err
		}

		if !b.relay() {
			return rec, nil
		}
		payload := map[string]interface{}{
			clientMutationIDField:      clientMutationID,
			naming.PayloadField(model): rec,
			"viewer":                   viewerFor(""),
		}
		if op == naming.OpDelete {
			payload["deletedId"] = nodeid.Encode(model, rec.ID())
			return payload, nil
		}
		edge, err := b.payloadEdge(ctx, be, bundle, rec, user, meta)
		if err != nil {
			return nil, err
		}
		payload["edge"] = edge
		return payload, nil
	}
}

// payloadEdge places rec in the unfiltered, unordered collection so its
// cursor can be used with the collection field.
func (b *build) payloadEdge(ctx context.Context, be backend.Backend, bundle *Bundle, rec backend.Record, user backend.Record, meta backend.Operation) (map[string]interface{}, error) {
	model := bundle.Entity.ModelName
	all, err := be.AllNodesByType(ctx, model, nil, bundle.Entity, user, meta)
	if err != nil {
		return nil, err
	}
	offset := len(all)
	for i, candidate := range all {
		if candidate.ID() == rec.ID() {
			offset = i
			break
		}
	}
	return edgeFor(naming.ConnectionType(model), rec, offset), nil
}

func (b *build) signinField() *graphql.Field {
	if !b.relay() {
		return &graphql.Field{
			Type: graphql.NewObject(graphql.ObjectConfig{
				Name: naming.SigninResultType,
				Fields: graphql.Fields{
					"token": &graphql.Field{Type: graphql.String},
				},
			}),
			Args: graphql.FieldConfigArgument{
				"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: b.signinResolver,
		}
	}

	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: naming.SigninInputType,
		Fields: graphql.InputObjectConfigFieldMap{
			"email":               &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"password":            &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			clientMutationIDField: &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	return &graphql.Field{
		Type: graphql.NewObject(graphql.ObjectConfig{
			Name: naming.SigninPayloadType,
			Fields: graphql.Fields{
				clientMutationIDField: &graphql.Field{Type: graphql.String},
				"token":               &graphql.Field{Type: graphql.String},
				"viewer":              &graphql.Field{Type: b.viewer},
			},
		}),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(input)},
		},
		Resolve: b.signinResolver,
	}
}

func (b *build) signinResolver(p graphql.ResolveParams) (interface{}, error) {
	input, clientMutationID := b.mutationInput(p)
	email, _ := input["email"].(string)
	password, _ := input["password"].(string)

	ctx, be, _, err := requestScope(p)
	if err != nil {
		return nil, err
	}
	ctx, span := startResolverSpan(ctx, "graphql.mutation.signin")

	user, err := be.FindUserByEmail(ctx, email)
	if err != nil {
		finishResolverSpan(span, err, "")
		return nil, err
	}
	if user == nil {
		err = newResolverError(CodeUnknownEmail, "no user found with email %q", email)
		observability.GraphQLMetricsFromContext(ctx).RecordSignin(ctx, CodeUnknownEmail)
		finishResolverSpan(span, err, "typed_failure")
		return nil, err
	}

	hash, _ := user[b.secretField()].(string)
	matched := false
	if hash != "" {
		matched, err = be.CompareSecret(ctx, password, hash)
		if err != nil {
			finishResolverSpan(span, err, "")
			return nil, err
		}
	}
	if !matched {
		err = newResolverError(CodeWrongPassword, "wrong password for %q", email)
		observability.GraphQLMetricsFromContext(ctx).RecordSignin(ctx, CodeWrongPassword)
		finishResolverSpan(span, err, "typed_failure")
		return nil, err
	}

	token, err := be.IssueToken(user)
	finishResolverSpan(span, err, "")
	if err != nil {
		return nil, err
	}
	observability.GraphQLMetricsFromContext(ctx).RecordSignin(ctx, "success")

	if !b.relay() {
		return map[string]interface{}{"token": token}, nil
	}
	return map[string]interface{}{
		clientMutationIDField: clientMutationID,
		"token":               token,
		"viewer":              viewerFor(nodeid.Encode(clientschema.UserModelName, user.ID())),
	}, nil
}

// secretField is the User field holding the password hash.
func (b *build) secretField() string {
	if user, ok := b.bundles[clientschema.UserModelName]; ok {
		for _, f := range user.Entity.Fields {
			if f.IsSecret() {
				return f.Name
			}
		}
	}
	return "password"
}
