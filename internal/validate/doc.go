// Package validate checks form values against a CUE schema.
//
// A schema is ordinary CUE source. If it declares a #Form definition, that
// definition is the schema; otherwise the whole file is. Candidate values
// are encoded into CUE, unified with the schema, and every resulting error
// is reported under the dotted field path it occurred at:
//
//	#Form: {
//		title:  string & !=""
//		body?:  string
//		status: *"draft" | "published"
//		...
//	}
//
// Schema implements engine.Validator, so it can gate auto-saves directly:
//
//	schema, err := validate.LoadSchema("article.cue")
//	e := engine.New(f, p, engine.WithValidator(schema))
//
// Invalid values are not errors. Validate returns an ir.ErrorMap for them
// and reserves the error result for schemas that cannot be evaluated.
package validate
