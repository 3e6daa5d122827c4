// Package clientschema describes the entity models a GraphQL API is generated from.
// A Schema is an ordered batch of entities; each entity is an ordered list of
// field descriptors whose type identifier is either a scalar name or the name
// of another entity in the same batch.
package clientschema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"model-graphql/internal/naming"
)

// Scalar type identifiers. Any other identifier names an entity.
const (
	TypeString   = "String"
	TypeBoolean  = "Boolean"
	TypeInt      = "Int"
	TypeFloat    = "Float"
	TypeID       = "ID"
	TypePassword = "Password"
	TypeEnum     = "Enum"
)

// IDFieldName is the identity field every entity must declare.
const IDFieldName = "id"

// UserModelName enables the current-user field and the sign-in mutation.
const UserModelName = "User"

var graphQLName = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Field is a single field descriptor.
type Field struct {
	Name           string   `json:"fieldName" yaml:"fieldName"`
	TypeIdentifier string   `json:"typeIdentifier" yaml:"typeIdentifier"`
	IsRequired     bool     `json:"isRequired,omitempty" yaml:"isRequired,omitempty"`
	IsList         bool     `json:"isList,omitempty" yaml:"isList,omitempty"`
	EnumValues     []string `json:"enumValues,omitempty" yaml:"enumValues,omitempty"`
	DefaultValue   *string  `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	// InverseField names the single-valued field on the related model that a
	// list relation is resolved through.
	InverseField string `json:"inverseField,omitempty" yaml:"inverseField,omitempty"`
}

// Entity is one model of the batch.
type Entity struct {
	ModelName string  `json:"modelName" yaml:"modelName"`
	Fields    []Field `json:"fields" yaml:"fields"`
}

// Schema is the ordered batch of entities.
type Schema struct {
	Models []Entity `json:"models" yaml:"models"`
}

// IsScalarIdentifier reports whether typeIdentifier names a built-in scalar kind.
func IsScalarIdentifier(typeIdentifier string) bool {
	switch typeIdentifier {
	case TypeString, TypeBoolean, TypeInt, TypeFloat, TypeID, TypePassword, TypeEnum:
		return true
	default:
		return false
	}
}

// IsRelation reports whether the field refers to another entity.
func (f Field) IsRelation() bool {
	return !IsScalarIdentifier(f.TypeIdentifier)
}

// IsIdentity reports whether the field is the entity's identity field.
func (f Field) IsIdentity() bool {
	return f.Name == IDFieldName
}

// IsOneToOne reports whether the field is a single-valued relation.
func (f Field) IsOneToOne() bool {
	return f.IsRelation() && !f.IsList
}

// IsOneToMany reports whether the field is a list-valued relation.
func (f Field) IsOneToMany() bool {
	return f.IsRelation() && f.IsList
}

// IsSecret reports whether the field stores a hashed secret.
func (f Field) IsSecret() bool {
	return f.TypeIdentifier == TypePassword
}

// ForeignKeyName is the argument and record key holding a one-to-one relation's target id.
func (f Field) ForeignKeyName() string {
	return naming.ForeignKey(f.Name)
}

// ForeignKeyListName is the record key holding a one-to-many relation's target ids
// when the related entity has no inverse field.
func (f Field) ForeignKeyListName() string {
	return naming.ForeignKeyList(f.Name)
}

// IsNumeric reports whether values of the field compare numerically.
func (f Field) IsNumeric() bool {
	return f.TypeIdentifier == TypeInt || f.TypeIdentifier == TypeFloat
}

// ParsedDefault converts the declared default into the field's value type.
// ok is false when no default is declared.
func (f Field) ParsedDefault() (value any, ok bool, err error) {
	if f.DefaultValue == nil {
		return nil, false, nil
	}
	raw := *f.DefaultValue
	switch f.TypeIdentifier {
	case TypeInt:
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, false, fmt.Errorf("invalid Int default %q for %s", raw, f.Name)
		}
		return parsed, true, nil
	case TypeFloat:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid Float default %q for %s", raw, f.Name)
		}
		return parsed, true, nil
	case TypeBoolean:
		parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, false, fmt.Errorf("invalid Boolean default %q for %s", raw, f.Name)
		}
		return parsed, true, nil
	default:
		return raw, true, nil
	}
}

// Field returns the named field descriptor.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// BackReferences returns the single-valued relation fields on e that point at owner.
func (e Entity) BackReferences(owner string) []Field {
	var out []Field
	for _, f := range e.Fields {
		if f.IsOneToOne() && f.TypeIdentifier == owner {
			out = append(out, f)
		}
	}
	return out
}

// InverseOf returns the field on e that the owner's list relation is resolved
// through: the declared inverse field, or the only back-reference to owner.
// ok is false when there is none or the choice is ambiguous.
func (e Entity) InverseOf(owner string, relation Field) (Field, bool) {
	if relation.InverseField != "" {
		f, ok := e.Field(relation.InverseField)
		if !ok || !f.IsOneToOne() || f.TypeIdentifier != owner {
			return Field{}, false
		}
		return f, true
	}
	refs := e.BackReferences(owner)
	if len(refs) != 1 {
		return Field{}, false
	}
	return refs[0], true
}

// Entity returns the named model.
func (s Schema) Entity(name string) (Entity, bool) {
	for _, e := range s.Models {
		if e.ModelName == name {
			return e, true
		}
	}
	return Entity{}, false
}

// HasUser reports whether the batch declares a User model.
func (s Schema) HasUser() bool {
	_, ok := s.Entity(UserModelName)
	return ok
}

// Fingerprint hashes the canonical JSON form of the schema.
func (s Schema) Fingerprint() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
