package schemagen

import "fmt"

// Error codes reported in the GraphQL error extensions.
const (
	CodeInvalidID     = "INVALID_ID"
	CodeUnknownEmail  = "UNKNOWN_EMAIL"
	CodeWrongPassword = "WRONG_PASSWORD"
	CodeNotFound      = "NOT_FOUND"
	CodeBadRequest    = "BAD_REQUEST"
)

// resolverError is a field error carrying a machine-readable code.
type resolverError struct {
	message string
	code    string
}

func (e *resolverError) Error() string {
	return e.message
}

func (e *resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.code,
	}
}

// Code returns the error's extension code.
func (e *resolverError) Code() string {
	return e.code
}

func newResolverError(code, format string, args ...any) error {
	return &resolverError{message: fmt.Sprintf(format, args...), code: code}
}

func newBadRequest(message string) error {
	return &resolverError{message: message, code: CodeBadRequest}
}

func newInvalidID(err error) error {
	return &resolverError{message: err.Error(), code: CodeInvalidID}
}
