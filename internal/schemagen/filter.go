package schemagen

import (
	"fmt"
	"sort"
	"strings"

	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"
	"model-graphql/internal/nodeid"
	"model-graphql/internal/store"
)

// predicate is one decoded equality condition of a filter argument.
type predicate struct {
	key   string
	field clientschema.Field
	value any
}

// compileFilter decodes global ids in a filter argument. Null entries
// do not constrain the result.
func compileFilter(bundle *Bundle, raw interface{}) ([]predicate, error) {
	filter, ok := raw.(map[string]interface{})
	if !ok || len(filter) == 0 {
		return nil, nil
	}

	preds := make([]predicate, 0, len(filter))
	for key, value := range filter {
		if value == nil {
			continue
		}
		spec, known := bundle.filterSpecs[key]
		if !known {
			return nil, newBadRequest(fmt.Sprintf("unknown filter field %q", key))
		}
		switch {
		case spec.field.IsIdentity():
			id, err := nodeid.DecodeFor(bundle.Entity.ModelName, fmt.Sprint(value))
			if err != nil {
				return nil, newInvalidID(err)
			}
			preds = append(preds, predicate{key: key, field: spec.field, value: id})
		case spec.relation:
			id, err := nodeid.DecodeFor(spec.field.TypeIdentifier, fmt.Sprint(value))
			if err != nil {
				return nil, newInvalidID(err)
			}
			preds = append(preds, predicate{key: key, field: spec.field, value: id})
		default:
			preds = append(preds, predicate{key: key, field: spec.field, value: value})
		}
	}
	return preds, nil
}

func (p predicate) match(rec backend.Record) bool {
	switch {
	case p.field.IsIdentity():
		return rec.ID() == p.value
	case p.field.IsRelation():
		return store.ValuesEqual(rec[p.key], p.value)
	default:
		return store.ValuesEqual(valueOrDefault(rec, p.field), p.value)
	}
}

// filterRecords keeps the records matching every predicate, preserving order.
func filterRecords(bundle *Bundle, recs []backend.Record, raw interface{}) ([]backend.Record, error) {
	preds, err := compileFilter(bundle, raw)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return recs, nil
	}
	out := make([]backend.Record, 0, len(recs))
	for _, rec := range recs {
		matched := true
		for _, p := range preds {
			if !p.match(rec) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, rec)
		}
	}
	return out, nil
}

// sortRecords orders recs in place by an orderBy value such as title_ASC.
// Int and Float fields compare numerically, everything else compares as
// case-insensitive text. Missing values sort first.
func sortRecords(entity clientschema.Entity, recs []backend.Record, raw interface{}) error {
	orderBy, ok := raw.(string)
	if !ok || orderBy == "" {
		return nil
	}
	name, direction, ok := naming.ParseSortValue(orderBy)
	if !ok {
		return newBadRequest(fmt.Sprintf("invalid orderBy value %q", orderBy))
	}
	field, ok := entity.Field(name)
	if !ok || field.IsRelation() || field.IsSecret() {
		return newBadRequest(fmt.Sprintf("cannot order %s by %q", entity.ModelName, name))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		c := compareValues(field, sortValue(recs[i], field), sortValue(recs[j], field))
		if direction == naming.Descending {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func sortValue(rec backend.Record, f clientschema.Field) any {
	if f.IsIdentity() {
		return rec.ID()
	}
	return valueOrDefault(rec, f)
}

func compareValues(f clientschema.Field, a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if f.IsNumeric() {
		af, aok := numeric(a)
		bf, bok := numeric(b)
		if aok && bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if f.TypeIdentifier == clientschema.TypeBoolean {
		ab, aok := a.(bool)
		bb, bok := b.(bool)
		if aok && bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
}

func numeric(v any) (float64, bool) {
	if f, ok := store.ToFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		return store.ParseNumber(strings.TrimSpace(s))
	}
	return 0, false
}
