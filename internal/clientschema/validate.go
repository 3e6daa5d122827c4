package clientschema

import (
	"fmt"
	"strings"

	"model-graphql/internal/naming"
)

// ValidationError locates a problem in a schema description.
type ValidationError struct {
	Model   string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return "invalid schema: " + strings.Join(msgs, "; ")
}

// Validate checks the invariants the type generator relies on.
func (s Schema) Validate() error {
	var errs ValidationErrors
	if len(s.Models) == 0 {
		return ValidationErrors{{Model: "schema", Message: "no models declared"}}
	}

	known := make(map[string]bool, len(s.Models))
	for _, e := range s.Models {
		if !graphQLName.MatchString(e.ModelName) {
			errs = append(errs, ValidationError{Model: e.ModelName, Message: "model name is not a valid GraphQL name"})
			continue
		}
		if known[e.ModelName] {
			errs = append(errs, ValidationError{Model: e.ModelName, Message: "duplicate model name"})
			continue
		}
		if IsScalarIdentifier(e.ModelName) {
			errs = append(errs, ValidationError{Model: e.ModelName, Message: "model name collides with a scalar type identifier"})
			continue
		}
		if naming.IsReservedTypeName(e.ModelName) {
			errs = append(errs, ValidationError{Model: e.ModelName, Message: "model name is reserved"})
			continue
		}
		known[e.ModelName] = true
	}

	for _, e := range s.Models {
		errs = append(errs, e.validate(known)...)
	}
	if len(errs) == 0 {
		for _, e := range s.Models {
			errs = append(errs, s.validateInverses(e)...)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (e Entity) validate(known map[string]bool) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(e.Fields))
	idCount := 0
	for _, f := range e.Fields {
		if !graphQLName.MatchString(f.Name) {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "field name is not a valid GraphQL name"})
			continue
		}
		if naming.IsReservedFieldName(f.Name) {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "field name is reserved"})
			continue
		}
		if seen[f.Name] {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "duplicate field name"})
			continue
		}
		seen[f.Name] = true

		if f.IsIdentity() {
			idCount++
			if f.IsList || f.IsRelation() {
				errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "identity field must be a scalar"})
			}
		}
		if f.TypeIdentifier == TypeEnum {
			if len(f.EnumValues) == 0 {
				errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "enum field declares no values"})
			}
			for _, v := range f.EnumValues {
				if !graphQLName.MatchString(v) {
					errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("enum value %q is not a valid GraphQL name", v)})
				}
			}
		}
		if f.IsRelation() && !known[f.TypeIdentifier] {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("unknown type identifier %q", f.TypeIdentifier)})
		}
		if _, _, err := f.ParsedDefault(); err != nil {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: err.Error()})
		} else if f.TypeIdentifier == TypeEnum && f.DefaultValue != nil && !containsString(f.EnumValues, *f.DefaultValue) {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("default %q is not one of the enum values", *f.DefaultValue)})
		}
	}
	for _, f := range e.Fields {
		if f.IsOneToOne() && seen[f.ForeignKeyName()] {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("foreign key argument %q collides with a declared field", f.ForeignKeyName())})
		}
	}
	if idCount != 1 {
		errs = append(errs, ValidationError{Model: e.ModelName, Message: fmt.Sprintf("expected exactly one %q field, found %d", IDFieldName, idCount)})
	}
	return errs
}

// validateInverses checks that every list relation resolves through exactly one
// field of the related model.
func (s Schema) validateInverses(e Entity) ValidationErrors {
	var errs ValidationErrors
	for _, f := range e.Fields {
		if f.InverseField != "" && !f.IsOneToMany() {
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: "inverseField is only allowed on list relations"})
			continue
		}
		if !f.IsOneToMany() {
			continue
		}
		related, _ := s.Entity(f.TypeIdentifier)
		if f.InverseField != "" {
			if _, ok := related.InverseOf(e.ModelName, f); !ok {
				errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("inverseField %q is not a single-valued %s field of %s", f.InverseField, e.ModelName, related.ModelName)})
			}
			continue
		}
		if refs := related.BackReferences(e.ModelName); len(refs) > 1 {
			names := make([]string, 0, len(refs))
			for _, r := range refs {
				names = append(names, r.Name)
			}
			errs = append(errs, ValidationError{Model: e.ModelName, Field: f.Name, Message: fmt.Sprintf("ambiguous inverse on %s (%s); set inverseField", related.ModelName, strings.Join(names, ", "))})
		}
	}
	return errs
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
