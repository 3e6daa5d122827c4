// Package naming derives the GraphQL names generated for each model.
// Every derivation lives here so that create, update and filter shapes
// agree on field names, in particular the foreign-key suffix.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sort directions used by SortValue.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// Mutation operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ForeignKey is the argument name a single-valued relation is exposed as.
func ForeignKey(fieldName string) string {
	return fieldName + "Id"
}

// ForeignKeyList is the owner-side id list for a multi-valued relation.
func ForeignKeyList(fieldName string) string {
	return fieldName + "Ids"
}

// CollectionField is the root field listing every record of model.
func CollectionField(model string) string {
	return "all" + model + "s"
}

func ConnectionType(model string) string { return model + "Connection" }
func EdgeType(model string) string       { return model + "Edge" }
func FilterType(model string) string     { return model + "Filter" }
func SortByType(model string) string     { return model + "SortBy" }

// EnumType names the enum generated for an Enum field. It doubles as the
// enum cache key.
func EnumType(model, field string) string {
	return model + "_" + field
}

// SortValue names one value of a model's sort enum.
func SortValue(field, direction string) string {
	return field + "_" + direction
}

// ParseSortValue splits an orderBy value into field and direction.
func ParseSortValue(value string) (field, direction string, ok bool) {
	i := strings.LastIndex(value, "_")
	if i <= 0 || i == len(value)-1 {
		return "", "", false
	}
	field, direction = value[:i], value[i+1:]
	if direction != Ascending && direction != Descending {
		return "", "", false
	}
	return field, direction, true
}

// MutationField names the root mutation for op on model, e.g. createPost.
func MutationField(op, model string) string {
	return op + model
}

// InputType names the relay input object for op on model, e.g. CreatePostInput.
func InputType(op, model string) string {
	return UpperFirst(op) + model + "Input"
}

// PayloadType names the relay payload for op on model, e.g. CreatePostPayload.
func PayloadType(op, model string) string {
	return UpperFirst(op) + model + "Payload"
}

// PayloadField names the field carrying the affected record in a payload.
func PayloadField(model string) string {
	return LowerFirst(model)
}

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LowerFirst lower-cases the first rune of s.
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
