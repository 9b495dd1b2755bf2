package validate

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Schema error codes.
const (
	ErrCodeSchemaLoad    = "SCHEMA_LOAD"    // schema file could not be read
	ErrCodeSchemaCompile = "SCHEMA_COMPILE" // schema source is not valid CUE
	ErrCodeValuesEncode  = "VALUES_ENCODE"  // values could not be encoded into CUE
)

// SchemaError reports a schema that cannot be used to validate values.
type SchemaError struct {
	Code    string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// newSchemaError builds a SchemaError carrying the position of the first
// CUE error in err, if it has one.
func newSchemaError(code string, err error) *SchemaError {
	se := &SchemaError{Code: code, Message: err.Error(), Err: err}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return se
	}
	se.Message = errs[0].Error()
	if positions := errors.Positions(errs[0]); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
