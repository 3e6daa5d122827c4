package naming

import "strings"

// graphqlReservedTypeWords contains GraphQL keywords and built-in types
// that should not be used as model names.
var graphqlReservedTypeWords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	"int":     true,
	"float":   true,
	"string":  true,
	"boolean": true,
	"id":      true,

	"true":  true,
	"false": true,
	"null":  true,
}

// Fixed type names emitted by the generator regardless of the models.
const (
	QueryType         = "Query"
	MutationType      = "Mutation"
	ViewerType        = "Viewer"
	NodeType          = "Node"
	PageInfoType      = "PageInfo"
	SigninInputType   = "SigninUserInput"
	SigninPayloadType = "SigninUserPayload"
	SigninResultType  = "SigninPayload"
	SigninField       = "signinUser"
)

var generatedTypeNames = map[string]bool{
	QueryType:         true,
	MutationType:      true,
	ViewerType:        true,
	NodeType:          true,
	PageInfoType:      true,
	SigninInputType:   true,
	SigninPayloadType: true,
	SigninResultType:  true,
}

// IsReservedTypeName reports whether name cannot be used as a model name.
func IsReservedTypeName(name string) bool {
	if strings.HasPrefix(name, "__") {
		return true
	}
	if generatedTypeNames[name] {
		return true
	}
	return graphqlReservedTypeWords[strings.ToLower(name)]
}

// IsReservedFieldName reports whether name cannot be used as a model field.
func IsReservedFieldName(name string) bool {
	return strings.HasPrefix(name, "__")
}
