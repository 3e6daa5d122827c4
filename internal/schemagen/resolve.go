package schemagen

import (
	"context"

	"model-graphql/internal/backend"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// requestScope returns the request context, its bound backend and the
// current user.
func requestScope(p graphql.ResolveParams) (context.Context, backend.Backend, backend.Record, error) {
	ctx := p.Context
	if ctx == nil {
		ctx = context.Background()
	}
	be, err := backend.FromContext(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}
	user, err := be.CurrentUser(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}
	return ctx, be, user, nil
}

func operationFor(p graphql.ResolveParams) backend.Operation {
	op := backend.Operation{FieldName: p.Info.FieldName}
	if p.Info.ParentType != nil {
		op.ParentType = p.Info.ParentType.Name()
	}
	if def, ok := p.Info.Operation.(*ast.OperationDefinition); ok && def != nil {
		op.Type = def.Operation
	}
	return op
}
