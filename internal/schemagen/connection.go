package schemagen

import (
	"model-graphql/internal/backend"
	"model-graphql/internal/cursor"
	"model-graphql/internal/naming"

	"github.com/graphql-go/graphql"
)

func pageInfoType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: naming.PageInfoType,
		Fields: graphql.Fields{
			"hasNextPage": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
			"hasPreviousPage": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
			},
			"startCursor": &graphql.Field{
				Type: graphql.String,
			},
			"endCursor": &graphql.Field{
				Type: graphql.String,
			},
		},
	})
}

func edgeType(model string, object *graphql.Object) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: naming.EdgeType(model),
		Fields: graphql.Fields{
			"cursor": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
			},
			"node": &graphql.Field{
				Type: graphql.NewNonNull(object),
			},
		},
	})
}

func connectionType(model string, edge, pageInfo *graphql.Object) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: naming.ConnectionType(model),
		Fields: graphql.Fields{
			"edges": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edge))),
			},
			"pageInfo": &graphql.Field{
				Type: graphql.NewNonNull(pageInfo),
			},
			"totalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
			},
		},
	})
}

// connectionArgs are the relay pagination arguments of one field.
type connectionArgs struct {
	first  *int
	last   *int
	after  *int
	before *int
}

func parseConnectionArgs(typeName string, args map[string]interface{}) (connectionArgs, error) {
	var out connectionArgs
	if v, ok := args["first"].(int); ok {
		if v < 0 {
			return out, newBadRequest("first must be non-negative")
		}
		out.first = &v
	}
	if v, ok := args["last"].(int); ok {
		if v < 0 {
			return out, newBadRequest("last must be non-negative")
		}
		out.last = &v
	}
	if raw, ok := args["after"].(string); ok && raw != "" {
		offset, err := cursor.DecodeOffset(typeName, raw)
		if err != nil {
			return out, newBadRequest("invalid after cursor: " + err.Error())
		}
		out.after = &offset
	}
	if raw, ok := args["before"].(string); ok && raw != "" {
		offset, err := cursor.DecodeOffset(typeName, raw)
		if err != nil {
			return out, newBadRequest("invalid before cursor: " + err.Error())
		}
		out.before = &offset
	}
	return out, nil
}

// paginate slices recs into a connection. Cursors are offsets into recs,
// so totalCount is always len(recs).
func paginate(typeName string, recs []backend.Record, args map[string]interface{}) (map[string]interface{}, error) {
	ca, err := parseConnectionArgs(typeName, args)
	if err != nil {
		return nil, err
	}

	total := len(recs)
	lower, upper := 0, total
	if ca.after != nil {
		lower = min(*ca.after+1, total)
	}
	if ca.before != nil {
		upper = max(min(*ca.before, total), lower)
	}
	start, end := lower, upper
	if ca.first != nil {
		end = min(end, start+*ca.first)
	}
	if ca.last != nil {
		start = max(start, end-*ca.last)
	}

	edges := make([]map[string]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		edges = append(edges, edgeFor(typeName, recs[i], i))
	}

	pageInfo := map[string]interface{}{
		"hasNextPage":     ca.first != nil && end < upper,
		"hasPreviousPage": ca.last != nil && start > lower,
		"startCursor":     nil,
		"endCursor":       nil,
	}
	if len(edges) > 0 {
		pageInfo["startCursor"] = edges[0]["cursor"]
		pageInfo["endCursor"] = edges[len(edges)-1]["cursor"]
	}

	return map[string]interface{}{
		"edges":      edges,
		"pageInfo":   pageInfo,
		"totalCount": total,
	}, nil
}

// sliceRecords applies skip and take. A missing take returns everything
// from skip onward.
func sliceRecords(recs []backend.Record, args map[string]interface{}) ([]backend.Record, error) {
	skip := 0
	if v, ok := args["skip"].(int); ok {
		if v < 0 {
			return nil, newBadRequest("skip must be non-negative")
		}
		skip = v
	}
	if skip >= len(recs) {
		return []backend.Record{}, nil
	}
	end := len(recs)
	if v, ok := args["take"].(int); ok {
		if v < 0 {
			return nil, newBadRequest("take must be non-negative")
		}
		end = min(end, skip+v)
	}
	return recs[skip:end], nil
}

func edgeFor(typeName string, rec backend.Record, offset int) map[string]interface{} {
	return map[string]interface{}{
		"cursor": cursor.EncodeOffset(typeName, offset),
		"node":   rec,
	}
}
