package schemagen

import (
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"
	"model-graphql/internal/nodeid"
	"model-graphql/internal/observability"

	"github.com/graphql-go/graphql"
)

// typenameKey tags records returned through the Node interface with
// their model so ResolveType can dispatch on it.
const typenameKey = "__typename"

// ViewerID is the global id of the root viewer.
var ViewerID = nodeid.Encode(naming.ViewerType, "viewer")

func (b *build) nodeInterface() *graphql.Interface {
	return graphql.NewInterface(graphql.InterfaceConfig{
		Name: naming.NodeType,
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			rec := sourceRecord(p.Value)
			typeName, ok := rec[typenameKey].(string)
			if !ok || typeName == "" {
				return nil
			}
			bundle, ok := b.bundles[typeName]
			if !ok {
				return nil
			}
			return bundle.Object
		},
	})
}

// viewerFields are shared by the Viewer type and the query root.
func (b *build) viewerFields() graphql.Fields {
	fields := graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if source, ok := p.Source.(map[string]interface{}); ok {
					if id, ok := source["id"].(string); ok && id != "" {
						return id, nil
					}
				}
				return ViewerID, nil
			},
		},
	}
	for _, name := range b.order {
		bundle := b.bundles[name]
		var typ graphql.Output = graphql.NewList(graphql.NewNonNull(bundle.Object))
		if b.relay() {
			typ = bundle.Connection
		}
		fields[naming.CollectionField(name)] = &graphql.Field{
			Type:    graphql.NewNonNull(typ),
			Args:    bundle.FilterArgs,
			Resolve: b.collectionResolver(bundle),
		}
	}
	if user, ok := b.bundles[clientschema.UserModelName]; ok {
		fields["user"] = &graphql.Field{
			Type:    user.Object,
			Resolve: currentUserResolver,
		}
	}
	return fields
}

func (b *build) viewerType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:   naming.ViewerType,
		Fields: b.viewerFields(),
	})
}

func (b *build) queryType() (*graphql.Object, error) {
	fields := b.viewerFields()
	fields["viewer"] = &graphql.Field{
		Type: graphql.NewNonNull(b.viewer),
		Resolve: func(graphql.ResolveParams) (interface{}, error) {
			return map[string]interface{}{}, nil
		},
	}
	fields["node"] = &graphql.Field{
		Type: b.node,
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: b.nodeResolver,
	}
	for name := range fields {
		if err := b.names.RegisterRootField(name, naming.QueryType); err != nil {
			return nil, err
		}
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name:   naming.QueryType,
		Fields: fields,
	}), nil
}

func (b *build) collectionResolver(bundle *Bundle) graphql.FieldResolveFn {
	model := bundle.Entity.ModelName
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, be, user, err := requestScope(p)
		if err != nil {
			return nil, err
		}
		ctx, span := startResolverSpan(ctx, "graphql.collection", entityAttrs(model, p.Info.FieldName)...)
		recs, err := be.AllNodesByType(ctx, model, p.Args, bundle.Entity, user, operationFor(p))
		finishResolverSpan(span, err, "")
		if err != nil {
			return nil, err
		}
		observability.GraphQLMetricsFromContext(ctx).RecordResultsCount(ctx, int64(len(recs)), model)
		return b.shapeCollection(bundle, recs, p.Args)
	}
}

func (b *build) nodeResolver(p graphql.ResolveParams) (interface{}, error) {
	raw, _ := p.Args["id"].(string)
	model, id, err := nodeid.Decode(raw)
	if err != nil {
		return nil, newInvalidID(err)
	}
	bundle, ok := b.bundles[model]
	if !ok {
		return nil, nil
	}
	ctx, be, user, err := requestScope(p)
	if err != nil {
		return nil, err
	}
	ctx, span := startResolverSpan(ctx, "graphql.node", entityAttrs(model, p.Info.FieldName)...)
	rec, err := be.NodeByID(ctx, model, id, bundle.Entity, user, operationFor(p))
	finishResolverSpan(span, err, "")
	if err != nil || rec == nil {
		return nil, err
	}
	tagged := rec.Clone()
	tagged[typenameKey] = model
	return tagged, nil
}

func currentUserResolver(p graphql.ResolveParams) (interface{}, error) {
	_, _, user, err := requestScope(p)
	if err != nil || user == nil {
		return nil, err
	}
	return user, nil
}

// viewerFor is the viewer value embedded in payloads. An empty id means
// the root viewer.
func viewerFor(id string) map[string]interface{} {
	if id == "" {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"id": id}
}
