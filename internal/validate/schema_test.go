package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/form"
	"github.com/roach88/vmform/internal/ir"
)

const articleSchema = `
#Form: {
	title:  string & !=""
	body?:  string
	status: *"draft" | "published"
	image?: {
		src: string
		alt?: string
	}
	...
}
`

func mustCompile(t *testing.T, src string) *Schema {
	t.Helper()
	s, err := CompileSchema("article.cue", src)
	require.NoError(t, err)
	return s
}

func TestSchema_ValidValues(t *testing.T) {
	s := mustCompile(t, articleSchema)

	errs, err := s.Validate(context.Background(), ir.IRObject{
		"title": ir.IRString("Hello"),
		"body":  ir.IRString("x"),
		"id":    ir.IRString("42"),
	})

	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, "article.cue", s.Name())
}

func TestSchema_MissingRequiredField(t *testing.T) {
	s := mustCompile(t, articleSchema)

	errs, err := s.Validate(context.Background(), ir.IRObject{"body": ir.IRString("x")})

	require.NoError(t, err)
	require.Contains(t, errs, "title")
	assert.Equal(t, MessageRequired, errs["title"])
}

func TestSchema_ConstraintViolation(t *testing.T) {
	s := mustCompile(t, articleSchema)

	errs, err := s.Validate(context.Background(), ir.IRObject{"title": ir.IRString("")})

	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, errs.Paths())
	assert.NotEqual(t, MessageRequired, errs["title"])
}

func TestSchema_NestedPath(t *testing.T) {
	s := mustCompile(t, articleSchema)

	errs, err := s.Validate(context.Background(), ir.IRObject{
		"title": ir.IRString("Hello"),
		"image": ir.IRObject{"alt": ir.IRString("cat")},
	})

	require.NoError(t, err)
	assert.Contains(t, errs, "image.src")
}

func TestSchema_TypeMismatch(t *testing.T) {
	s := mustCompile(t, `
		title: string
		count: int
	`)

	errs, err := s.Validate(context.Background(), ir.IRObject{
		"title": ir.IRString("Hello"),
		"count": ir.IRString("many"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, errs.Paths())
}

func TestSchema_WholeFileWithoutDefinition(t *testing.T) {
	s := mustCompile(t, `title: string`)

	errs, err := s.Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, errs, "title")

	errs, err = s.Validate(context.Background(), ir.IRObject{"title": ir.IRString("ok"), "extra": ir.IRInt(1)})
	require.NoError(t, err)
	assert.Nil(t, errs)
}

func TestSchema_CanceledContext(t *testing.T) {
	s := mustCompile(t, articleSchema)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Validate(ctx, ir.IRObject{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileSchema_InvalidSource(t *testing.T) {
	_, err := CompileSchema("broken.cue", `title: string &`)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCodeSchemaCompile, se.Code)
	assert.Contains(t, se.Error(), ErrCodeSchemaCompile)
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article.cue")
	require.NoError(t, os.WriteFile(path, []byte(articleSchema), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Name())

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.cue"))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCodeSchemaLoad, se.Code)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSchema_GatesEngineSaves(t *testing.T) {
	s := mustCompile(t, articleSchema)
	f := form.New(ir.IRObject{"title": ir.IRString("Hello")})

	calls := 0
	e := engine.New(f, engine.PersistenceFunc(func(_ context.Context, p engine.SaveParams) (ir.IRObject, error) {
		calls++
		return nil, nil
	}), engine.WithValidator(s), engine.WithIDGenerator(engine.NewSequenceGenerator("cycle")))
	t.Cleanup(e.Detach)

	res, err := e.Save(context.Background(), ir.IRObject{"title": ir.IRString("")})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeInvalid, res.Outcome)
	assert.Contains(t, e.LastValidationErrors(), "title")
	assert.Equal(t, 0, calls)

	res, err = e.Save(context.Background(), ir.IRObject{"status": ir.IRString("published")})
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeSaved, res.Outcome)
	assert.Nil(t, e.LastValidationErrors())
	assert.Equal(t, 1, calls)
}
