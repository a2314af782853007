package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_VariableSubstitutionAndLoop(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	out, err := r.Render("greet", "{{.ServerName}}: {{range .Tools}}{{.}} {{end}}", Data{
		ServerName: "mcpforge",
		Tools:      []string{"echo", "sum"},
	})

	require.NoError(t, err)
	assert.Equal(t, "mcpforge: echo sum ", out)
}

func TestRenderer_Predicates(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	src := `{{if has_tool .Tools "echo"}}has-echo{{else}}no-echo{{end}} ` +
		`{{if has_marker .Markers "beta"}}beta{{end}} ` +
		`{{if has_builtin .Builtins "logging"}}logging{{end}}`

	out, err := r.Render("predicates", src, Data{
		Tools:    []string{"echo"},
		Markers:  []string{"beta"},
		Builtins: []string{"logging"},
	})

	require.NoError(t, err)
	assert.Equal(t, "has-echo beta logging", out)
}

func TestRenderer_CachesCompiledTemplateAcrossDifferentData(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	src := `{{if has_tool .Tools "x"}}yes{{else}}no{{end}}`

	out1, err := r.Render("cached", src, Data{Tools: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "yes", out1)

	out2, err := r.Render("cached", src, Data{Tools: []string{"y"}})
	require.NoError(t, err)
	assert.Equal(t, "no", out2)
}

func TestRenderer_ParseErrorSurfaces(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	_, err := r.Render("broken", "{{.Unclosed", Data{})
	assert.Error(t, err)
}

func TestRenderer_Forget(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	_, err := r.Render("k", "{{.ServerName}}", Data{ServerName: "a"})
	require.NoError(t, err)

	r.Forget("k")
	out, err := r.Render("k", "{{.ServerName}}", Data{ServerName: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", out)
}
