package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widget = "cube(`Widget`,{sql:`SELECT 1`,dimensions:{},measures:{count:{type:`count`}}})"

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "want *validate.Error, got %T: %v", err, err)
	return ve.Code
}

func TestModel_ValidCube(t *testing.T) {
	assert.NoError(t, Model("Widget", "js", widget))
}

func TestModel_ValidView(t *testing.T) {
	src := "view(`Sales`, {\n  cubes: [{ join_path: Orders, includes: `*` }]\n});\n"
	assert.NoError(t, Model("Sales", "js", src))
}

func TestModel_MissingMarker(t *testing.T) {
	err := Model("x", "js", "not a model")
	require.Error(t, err)
	assert.Equal(t, InvalidSyntax, codeOf(t, err))
	assert.Contains(t, err.Error(), "cube() or view()")
}

func TestModel_MissingStructure(t *testing.T) {
	err := Model("Widget", "js", "cube(`Widget`, { measures: {} })")
	require.Error(t, err)
	assert.Equal(t, InvalidSyntax, codeOf(t, err))
	assert.Contains(t, err.Error(), "cube needs sql")
}

func TestModel_ShallowCheckIgnoresSemantics(t *testing.T) {
	// Nonsense members still pass: only markers and syntax are checked.
	assert.NoError(t, Model("W", "js", "cube(`W`, { sql: 42, bogus: [1, 2, 3] })"))
}

func TestModel_JSSyntaxError(t *testing.T) {
	err := Model("Widget", "js", "cube(`Widget`, {\n  sql: `SELECT 1`,\n  measures: {\n")
	require.Error(t, err)
	assert.Equal(t, SyntaxError, codeOf(t, err))
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Widget.js", ve.File)
}

func TestModel_YAML(t *testing.T) {
	src := "cubes:\n  - name: orders\n    sql_table: orders\n"
	assert.NoError(t, Model("orders", "yml", src))

	err := Model("orders", "yaml", "cubes:\n  - name: orders\n   bad: indent\n")
	require.Error(t, err)
	assert.Equal(t, SyntaxError, codeOf(t, err))

	err = Model("orders", "yml", "cubes: []\n")
	require.Error(t, err)
	assert.Equal(t, InvalidSyntax, codeOf(t, err))

	err = Model("orders", "yml", "cube(`x`, {sql: ``})")
	require.Error(t, err)
	assert.Equal(t, InvalidSyntax, codeOf(t, err))
}

func TestModel_UnsupportedExtension(t *testing.T) {
	err := Model("x", "ts", widget)
	require.Error(t, err)
	assert.Equal(t, InvalidSyntax, codeOf(t, err))
}

func TestError_Format(t *testing.T) {
	e := &Error{Code: SyntaxError, File: "a.js", Line: 3, Column: 7, Message: "unexpected token"}
	assert.Equal(t, "SyntaxError: a.js:3:7: unexpected token", e.Error())
	e = &Error{Code: InvalidSyntax, Message: "nope"}
	assert.Equal(t, "InvalidSyntax: nope", e.Error())
}
