package world

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *PythonSource {
	t.Helper()
	s, err := ParsePython(context.Background(), []byte(src))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSyntaxErrors_ValidSource(t *testing.T) {
	s := parse(t, "def main():\n    print('hi')\n\nmain()\n")
	assert.False(t, s.HasSyntaxErrors())
	assert.Empty(t, s.SyntaxErrors())
}

func TestSyntaxErrors_UnbalancedParen(t *testing.T) {
	s := parse(t, "x = 1\nprint('hello'\ny = 2\n")
	require.True(t, s.HasSyntaxErrors())

	issues := s.SyntaxErrors()
	require.NotEmpty(t, issues)
	assert.LessOrEqual(t, issues[0].Line, 3)
	assert.Contains(t, issues[0].String(), "line ")
	assert.Contains(t, issues[0].String(), "column ")
}

func TestSyntaxErrors_BadIndentBlock(t *testing.T) {
	s := parse(t, "def f(:\n    return 1\n")
	assert.True(t, s.HasSyntaxErrors())
	assert.NotEmpty(t, s.SyntaxErrors())
}

func TestCallSites_TargetsAndLiterals(t *testing.T) {
	src := `name = input()
age = int(input("Age: "))
input()
greeting = input(f"Hi {name}")
self_val = sys.stdin.input()
`
	s := parse(t, src)
	sites := s.CallSites("input")
	require.Len(t, sites, 5)

	assert.Equal(t, 1, sites[0].Line)
	assert.Equal(t, "name", sites[0].Target)
	assert.False(t, sites[0].HasArgs)
	assert.Equal(t, 1, sites[0].ArgsLine)
	assert.Equal(t, "()", src[sites[0].ArgsStart:sites[0].ArgsEnd])

	assert.Equal(t, "age", sites[1].Target)
	assert.True(t, sites[1].HasLiteral)
	assert.Equal(t, "Age: ", sites[1].Literal)

	assert.Equal(t, "", sites[2].Target)
	assert.False(t, sites[2].HasArgs)

	assert.True(t, sites[3].HasArgs)
	assert.False(t, sites[3].HasLiteral, "f-strings are not literals")
	assert.Equal(t, `f"Hi {name}"`, sites[3].ArgText)

	assert.Equal(t, "self_val", sites[4].Target)
}

func TestCallSites_IgnoresOtherNames(t *testing.T) {
	s := parse(t, "raw_input()\nprint(input)\nget_input()\n")
	assert.Empty(t, s.CallSites("input"))
}

func TestCallSites_AttributeTarget(t *testing.T) {
	s := parse(t, "class A:\n    def ask(self):\n        self.user_name = input()\n")
	sites := s.CallSites("input")
	require.Len(t, sites, 1)
	assert.Equal(t, "user_name", sites[0].Target)
	assert.Equal(t, 3, sites[0].Line)
}

func TestCallSites_ConcatenatedLiteral(t *testing.T) {
	s := parse(t, "x = input('Enter ' 'name: ')\n")
	sites := s.CallSites("input")
	require.Len(t, sites, 1)
	assert.True(t, sites[0].HasLiteral)
	assert.Equal(t, "Enter name: ", sites[0].Literal)
}

func TestFunctions(t *testing.T) {
	src := `import tkinter as tk

def create_app(test_mode=False):
    root = tk.Tk()
    def inner(a):
        pass
    return root

@decorator
def build(*args, test_mode: bool = True, **kw):
    pass

class App:
    def run(self, x: int):
        pass
`
	s := parse(t, src)
	got := s.Functions()
	want := []FunctionDef{
		{Name: "create_app", Params: []string{"test_mode"}, Line: 3, TopLevel: true},
		{Name: "inner", Params: []string{"a"}, Line: 5, TopLevel: false},
		{Name: "build", Params: []string{"args", "test_mode", "kw"}, Line: 10, TopLevel: true},
		{Name: "run", Params: []string{"self", "x"}, Line: 14, TopLevel: false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Functions() mismatch (-want +got):\n%s", diff)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"abc"`, "abc", true},
		{`'abc'`, "abc", true},
		{`"""doc"""`, "doc", true},
		{`r"\d+"`, `\d+`, true},
		{`f"{x}"`, "", false},
		{`rf"{x}"`, "", false},
		{`""`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := unquote(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
