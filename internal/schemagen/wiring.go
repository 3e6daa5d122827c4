package schemagen

import (
	"fmt"
	"log/slog"

	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/logging"
	"model-graphql/internal/naming"

	"github.com/graphql-go/graphql"
)

// wire is pass two. It returns a new plan for bundle in which every
// relation placeholder is bound to the related model's artifacts.
func (b *build) wire(bundle *Bundle) ([]fieldPlan, error) {
	out := make([]fieldPlan, len(bundle.fields))
	for i, plan := range bundle.fields {
		out[i] = plan
		if plan.kind == kindScalar {
			continue
		}
		target, ok := b.bundles[plan.target]
		if !ok {
			return nil, fmt.Errorf("%s.%s: unknown relation target %q", bundle.Entity.ModelName, plan.field.Name, plan.target)
		}
		switch plan.kind {
		case kindOneToMany:
			if b.relay() {
				out[i].typ = target.Connection
			} else {
				out[i].typ = graphql.NewList(graphql.NewNonNull(target.Object))
			}
			out[i].args = target.FilterArgs
			out[i].resolve = b.relationListResolver(bundle, plan.field, target)
		case kindOneToOne:
			out[i].typ = target.Object
			out[i].resolve = b.relationNodeResolver(bundle, plan.field, target)
		}
	}
	return out, nil
}

// applyNonNull is pass three. The identity field is always non-null since
// the Node interface requires it.
func applyNonNull(entity clientschema.Entity, plans []fieldPlan) ([]fieldPlan, error) {
	out := make([]fieldPlan, len(plans))
	for i, plan := range plans {
		if plan.unresolved() {
			return nil, fmt.Errorf("%s.%s: relation to %s has not been wired", entity.ModelName, plan.field.Name, plan.target)
		}
		out[i] = plan
		if !plan.field.IsRequired && !plan.field.IsIdentity() {
			continue
		}
		if _, wrapped := plan.typ.(*graphql.NonNull); !wrapped {
			out[i].typ = graphql.NewNonNull(plan.typ)
		}
	}
	return out, nil
}

func (b *build) relationListResolver(owner *Bundle, f clientschema.Field, target *Bundle) graphql.FieldResolveFn {
	ownerModel := owner.Entity.ModelName
	return func(p graphql.ResolveParams) (interface{}, error) {
		rec := sourceRecord(p.Source)
		if rec == nil {
			return nil, nil
		}
		ctx, be, user, err := requestScope(p)
		if err != nil {
			return nil, err
		}

		ctx, span := startResolverSpan(ctx, "graphql.relation.list", entityAttrs(ownerModel, f.Name)...)
		recs, err := be.NodesByRelation(ctx, ownerModel, rec.ID(), f.Name, p.Args, target.Entity, user, operationFor(p))
		finishResolverSpan(span, err, "")
		if err != nil {
			logging.FromContext(ctx).Error("failed to resolve relation",
				slog.String("entity", ownerModel),
				slog.String("field", f.Name),
				slog.String("related", target.Entity.ModelName),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		return b.shapeCollection(target, recs, p.Args)
	}
}

func (b *build) relationNodeResolver(owner *Bundle, f clientschema.Field, target *Bundle) graphql.FieldResolveFn {
	ownerModel := owner.Entity.ModelName
	return func(p graphql.ResolveParams) (interface{}, error) {
		fk := sourceRecord(p.Source)[naming.ForeignKey(f.Name)]
		if isBlank(fk) {
			return nil, nil
		}
		ctx, be, user, err := requestScope(p)
		if err != nil {
			return nil, err
		}

		ctx, span := startResolverSpan(ctx, "graphql.relation.node", entityAttrs(ownerModel, f.Name)...)
		rec, err := be.NodeByID(ctx, target.Entity.ModelName, fmt.Sprint(fk), target.Entity, user, operationFor(p))
		finishResolverSpan(span, err, "")
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		return rec, nil
	}
}

// shapeCollection filters, orders and pages recs for the output mode.
func (b *build) shapeCollection(bundle *Bundle, recs []backend.Record, args map[string]interface{}) (interface{}, error) {
	recs, err := filterRecords(bundle, recs, args["filter"])
	if err != nil {
		return nil, err
	}
	if err := sortRecords(bundle.Entity, recs, args["orderBy"]); err != nil {
		return nil, err
	}
	if b.relay() {
		return paginate(naming.ConnectionType(bundle.Entity.ModelName), recs, args)
	}
	return sliceRecords(recs, args)
}
