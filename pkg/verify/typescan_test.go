package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnverifiedTypesIn_CFamily_NewExpression(t *testing.T) {
	t.Parallel()

	code := `widget := new Widget(42)`
	refs := UnverifiedTypesIn(code, "main.go")
	assert.Contains(t, refs, TypeReference{TypeName: "Widget"})
}

func TestUnverifiedTypesIn_CFamily_Declaration(t *testing.T) {
	t.Parallel()

	code := `Widget w = makeWidget();`
	refs := UnverifiedTypesIn(code, "main.go")
	assert.Contains(t, refs, TypeReference{TypeName: "Widget"})
}

func TestUnverifiedTypesIn_CFamily_MemberAccess(t *testing.T) {
	t.Parallel()

	code := `result := Registry.Lookup(name)`
	refs := UnverifiedTypesIn(code, "main.go")
	assert.Contains(t, refs, TypeReference{TypeName: "Registry", MemberName: "Lookup"})
}

func TestUnverifiedTypesIn_ExcludesPrimitives(t *testing.T) {
	t.Parallel()

	code := `string s = "x"; int n = 0;`
	refs := UnverifiedTypesIn(code, "main.go")
	for _, r := range refs {
		assert.NotEqual(t, "string", r.TypeName)
		assert.NotEqual(t, "int", r.TypeName)
	}
}

func TestUnverifiedTypesIn_TSFamily_TypeAnnotation(t *testing.T) {
	t.Parallel()

	code := `function greet(user: UserProfile) {}`
	refs := UnverifiedTypesIn(code, "app.ts")
	assert.Contains(t, refs, TypeReference{TypeName: "UserProfile"})
}

func TestUnverifiedTypesIn_TSFamily_SelectedByExtension(t *testing.T) {
	t.Parallel()

	code := `const x: Widget = make();`
	tsRefs := UnverifiedTypesIn(code, "app.tsx")
	goRefs := UnverifiedTypesIn(code, "app.go")
	assert.Contains(t, tsRefs, TypeReference{TypeName: "Widget"})
	// The C-family bank has no type-annotation pattern, so it should not
	// find the same reference via that syntax.
	assert.NotContains(t, goRefs, TypeReference{TypeName: "Widget"})
}

func TestUnverifiedTypesIn_Deduplicates(t *testing.T) {
	t.Parallel()

	code := `a := Foo.Bar(); b := Foo.Bar(); c := Foo.Bar();`
	refs := UnverifiedTypesIn(code, "main.go")
	count := 0
	for _, r := range refs {
		if r.TypeName == "Foo" && r.MemberName == "Bar" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestUnverifiedTypesIn_NoMatches(t *testing.T) {
	t.Parallel()
	assert.Empty(t, UnverifiedTypesIn("x := 1 + 2", "main.go"))
}
