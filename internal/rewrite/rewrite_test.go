package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_BareIdentifierGetsLabel(t *testing.T) {
	out, err := Source("x := 1\nx\n")
	require.NoError(t, err)

	assert.Contains(t, out, `__output__.write("**x**", x)`)
}

func TestSource_BindsSinkAtTop(t *testing.T) {
	out, err := Source("x := 1\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, `__output__ := import("output")`, lines[0])
}

func TestSource_SingleElementArrayForwardsElement(t *testing.T) {
	out, err := Source("f := func() { return 1 }\n[f()]\n")
	require.NoError(t, err)

	assert.Contains(t, out, `__output__.write(f())`)
}

func TestSource_AssignedSingleElementArrayKeepsAssignment(t *testing.T) {
	out, err := Source("f := func() { return 1 }\nx := [f()]\n")
	require.NoError(t, err)

	assert.Contains(t, out, `x := __output__.write(f())`)
}

func TestSource_CallsAreLeftAlone(t *testing.T) {
	out, err := Source("f := func() { return 1 }\nf()\n")
	require.NoError(t, err)

	assert.NotContains(t, out, `write(f())`)
}

func TestSource_LeadingDocstringIsPreserved(t *testing.T) {
	out, err := Source("\"greets the user\"\n\"hello\"\n")
	require.NoError(t, err)

	// Only the first string is a docstring; later bare strings are output.
	assert.NotContains(t, out, `write("greets the user")`)
	assert.Contains(t, out, `__output__.write("hello")`)
}

func TestSource_BindingInsertedAfterImports(t *testing.T) {
	out, err := Source("os := import(\"os\")\nx := 1\nx\n")
	require.NoError(t, err)

	osImport := strings.Index(out, `import("os")`)
	binding := strings.Index(out, `__output__ := import("output")`)
	require.GreaterOrEqual(t, osImport, 0)
	require.GreaterOrEqual(t, binding, 0)
	assert.Less(t, osImport, binding, "leading imports stay above the binding")
}

func TestSource_BindingInsertedAfterDocstringAndImport(t *testing.T) {
	out, err := Source("\"doc\"\nos := import(\"os\")\nx := 1\nx\n")
	require.NoError(t, err)

	doc := strings.Index(out, `"doc"`)
	osImport := strings.Index(out, `import("os")`)
	binding := strings.Index(out, `__output__ := import("output")`)
	require.GreaterOrEqual(t, doc, 0)
	require.GreaterOrEqual(t, osImport, 0)
	require.GreaterOrEqual(t, binding, 0)
	assert.Less(t, doc, osImport)
	assert.Less(t, osImport, binding)
}

func TestSource_RecursesIntoFunctionBodies(t *testing.T) {
	out, err := Source("f := func() {\n\ty := 1\n\ty\n}\n")
	require.NoError(t, err)

	assert.Contains(t, out, `__output__.write("**y**", y)`)
	// The binding is only inserted at the top level, never inside bodies.
	assert.Equal(t, 1, strings.Count(out, `import("output")`))
}

func TestSource_DocstringInFunctionBodyIsPreserved(t *testing.T) {
	out, err := Source("f := func() {\n\t\"documents f\"\n\t\"hello\"\n}\n")
	require.NoError(t, err)

	// The leading-string exemption applies inside function bodies too;
	// only strings past the first are forwarded.
	assert.NotContains(t, out, `write("documents f")`)
	assert.Contains(t, out, `__output__.write("hello")`)
}

func TestSource_ArbitraryExpressionIsForwarded(t *testing.T) {
	out, err := Source("a := 1\nb := 2\na + b\n")
	require.NoError(t, err)

	// Tengo may parenthesize the expression when it serializes the tree;
	// only the wrapping matters here.
	assert.Contains(t, out, `__output__.write(`)
	assert.Contains(t, out, `a + b`)
}

func TestSource_MalformedScript(t *testing.T) {
	_, err := Source("x := (")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed script")
}
