package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one schema violation.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects every violation found in one document.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Validate checks a YAML document against the configuration schema.
// It returns ValidationErrors on schema violations.
func Validate(data []byte, filename string) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return convertCUEError(err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return convertCUEError(err)
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return convertCUEError(err)
	}
	return nil
}

func convertCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ValidationErrors{{Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(errs))
	for _, e := range errs {
		ve := ValidationError{
			Path: strings.Join(e.Path(), "."),
		}
		format, args := e.Msg()
		ve.Message = fmt.Sprintf(format, args...)
		// Prefer the position in the document over the schema's.
		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() != "schema.cue" {
				ve.Pos = pos
				break
			}
		}
		out = append(out, ve)
	}
	return out
}
