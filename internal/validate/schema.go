package validate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// FormDefinition is the definition looked up in a schema file. Files that
// do not declare it are used as a whole.
const FormDefinition = "#Form"

// MessageRequired replaces the CUE errors a missing required field
// produces ("incomplete value", "field is required but not present").
const MessageRequired = "required"

// Schema validates form values against a compiled CUE schema.
//
// Thread-safety: safe for concurrent use. Evaluation is serialised because
// a cue.Context is not.
type Schema struct {
	mu     sync.Mutex
	cuectx *cue.Context
	value  cue.Value
	name   string
}

var _ engine.Validator = (*Schema)(nil)

// CompileSchema compiles CUE source. name is used in error positions.
func CompileSchema(name, src string) (*Schema, error) {
	cuectx := cuecontext.New()
	v := cuectx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, newSchemaError(ErrCodeSchemaCompile, err)
	}

	if def := v.LookupPath(cue.ParsePath(FormDefinition)); def.Exists() {
		if err := def.Err(); err != nil {
			return nil, newSchemaError(ErrCodeSchemaCompile, err)
		}
		v = def
	}

	return &Schema{cuectx: cuectx, value: v, name: name}, nil
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaError{
			Code:    ErrCodeSchemaLoad,
			Message: fmt.Sprintf("read schema: %v", err),
			Err:     err,
		}
	}
	return CompileSchema(path, string(data))
}

// Name returns the file name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Validate implements engine.Validator.
//
// Each invalid field appears once in the returned map, keyed by its dotted
// path; the first error reported for a path wins. A nil map means the
// values satisfy the schema, including that every required field is
// present and concrete.
func (s *Schema) Validate(ctx context.Context, values ir.IRObject) (ir.ErrorMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if values == nil {
		values = ir.IRObject{}
	}
	candidate := s.cuectx.Encode(ir.ToGo(values))
	if err := candidate.Err(); err != nil {
		return nil, newSchemaError(ErrCodeValuesEncode, err)
	}

	err := s.value.Unify(candidate).Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil, nil
	}
	return toErrorMap(err), nil
}

// toErrorMap flattens CUE errors into field path -> message.
func toErrorMap(err error) ir.ErrorMap {
	out := ir.ErrorMap{}
	for _, e := range errors.Errors(err) {
		path := fieldPath(e.Path())
		if _, seen := out[path]; seen {
			continue
		}
		out[path] = message(e)
	}
	return out
}

// fieldPath drops the leading definition selector from a CUE error path
// and turns the rest into a field path. Quoted labels ("v1.2") are
// unquoted first.
func fieldPath(selectors []string) string {
	for len(selectors) > 0 && strings.HasPrefix(selectors[0], "#") {
		selectors = selectors[1:]
	}
	keys := make([]string, len(selectors))
	for i, sel := range selectors {
		keys[i] = sel
		if strings.HasPrefix(sel, `"`) {
			if k, err := strconv.Unquote(sel); err == nil {
				keys[i] = k
			}
		}
	}
	return ir.KeyPath(keys...)
}

func message(e errors.Error) string {
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if strings.HasPrefix(msg, "incomplete value") || strings.Contains(msg, "field is required") {
		return MessageRequired
	}
	return msg
}
