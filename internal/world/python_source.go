// Package world gives spectral a read-only view of Python programs: syntax
// validity, call sites and top-level definitions, all taken from a single
// tree-sitter parse.
package world

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"spectral/internal/logging"
)

// PythonSource is an immutable parsed Python module. Close releases the tree.
type PythonSource struct {
	content []byte
	tree    *sitter.Tree
}

// SyntaxIssue locates one parse error. Line is 1-based, Column 0-based.
type SyntaxIssue struct {
	Line    int
	Column  int
	Message string
}

func (i SyntaxIssue) String() string {
	return fmt.Sprintf("line %d, column %d: %s", i.Line, i.Column, i.Message)
}

// CallSite is one call expression whose callee name matched.
type CallSite struct {
	// Line and Column locate the start of the callee (1-based line, 0-based byte column).
	Line   int
	Column int

	// ArgsLine, ArgsStart and ArgsEnd locate the parenthesised argument
	// list; ArgsEnd is exclusive and only meaningful when the list closes on
	// ArgsLine.
	ArgsLine  int
	ArgsStart int
	ArgsEnd   int

	// HasArgs is set when at least one argument is passed.
	HasArgs bool

	// HasLiteral is set when the first argument is a plain string literal;
	// Literal then holds its unquoted text. f-strings are not literals.
	HasLiteral bool
	Literal    string

	// ArgText is the raw source of the first argument.
	ArgText string

	// Target is the assignment target receiving the call's value, if any.
	Target string
}

// FunctionDef describes a function definition.
type FunctionDef struct {
	Name     string
	Params   []string
	Line     int
	TopLevel bool
}

// ParsePython parses content with the tree-sitter Python grammar. A tree is
// returned even when the source has syntax errors.
func ParsePython(ctx context.Context, content []byte) (*PythonSource, error) {
	start := time.Now()
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		logging.Get(logging.CategoryWorld).Error("python parse failed: %v", err)
		return nil, fmt.Errorf("parse python: %w", err)
	}
	logging.WorldDebug("parsed %d bytes of python in %v", len(content), time.Since(start))
	return &PythonSource{content: content, tree: tree}, nil
}

// Close releases the underlying tree.
func (s *PythonSource) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

func (s *PythonSource) text(n *sitter.Node) string {
	return n.Content(s.content)
}

// =============================================================================
// SYNTAX
// =============================================================================

// HasSyntaxErrors reports whether the parse produced any error or missing node.
func (s *PythonSource) HasSyntaxErrors() bool {
	return s.tree.RootNode().HasError()
}

// SyntaxErrors lists parse errors in source order.
func (s *PythonSource) SyntaxErrors() []SyntaxIssue {
	root := s.tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var issues []SyntaxIssue
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			pt := n.StartPoint()
			issues = append(issues, SyntaxIssue{
				Line:    int(pt.Row) + 1,
				Column:  int(pt.Column),
				Message: fmt.Sprintf("missing %q", n.Type()),
			})
			return
		case n.Type() == "ERROR":
			pt := n.StartPoint()
			issues = append(issues, SyntaxIssue{
				Line:    int(pt.Row) + 1,
				Column:  int(pt.Column),
				Message: "invalid syntax near " + snippet(s.text(n)),
			})
			return
		case !n.HasError():
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)

	if len(issues) == 0 {
		issues = append(issues, SyntaxIssue{Line: 1, Column: 0, Message: "invalid syntax"})
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Column < issues[j].Column
	})
	return issues
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}

// =============================================================================
// CALL SITES
// =============================================================================

// CallSites returns every call to name, either bare (name(...)) or as an
// attribute (x.name(...)), in source order.
func (s *PythonSource) CallSites(name string) []CallSite {
	var sites []CallSite
	var visit func(n *sitter.Node, target string)
	visit = func(n *sitter.Node, target string) {
		switch n.Type() {
		case "assignment", "augmented_assignment":
			if left := n.ChildByFieldName("left"); left != nil {
				t := assignmentTarget(s, left)
				visit(left, "")
				if right := n.ChildByFieldName("right"); right != nil {
					visit(right, t)
				}
				return
			}
		case "expression_statement", "block", "module":
			target = ""
		case "call":
			if site, ok := s.callSite(n, name, target); ok {
				sites = append(sites, site)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i), target)
		}
	}
	visit(s.tree.RootNode(), "")

	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Line != sites[j].Line {
			return sites[i].Line < sites[j].Line
		}
		return sites[i].Column < sites[j].Column
	})
	return sites
}

func (s *PythonSource) callSite(n *sitter.Node, name, target string) (CallSite, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil || calleeName(s, fn) != name {
		return CallSite{}, false
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return CallSite{}, false
	}

	start := fn.StartPoint()
	argStart := args.StartPoint()
	argEnd := args.EndPoint()
	site := CallSite{
		Line:      int(start.Row) + 1,
		Column:    int(start.Column),
		ArgsLine:  int(argStart.Row) + 1,
		ArgsStart: int(argStart.Column),
		ArgsEnd:   -1,
		Target:    target,
	}
	if argEnd.Row == argStart.Row {
		site.ArgsEnd = int(argEnd.Column)
	}

	var first *sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		first = c
		break
	}
	if first == nil {
		return site, true
	}
	site.HasArgs = true
	site.ArgText = s.text(first)
	if lit, ok := stringLiteral(s, first); ok {
		site.HasLiteral = true
		site.Literal = lit
	}
	return site, true
}

func calleeName(s *PythonSource, fn *sitter.Node) string {
	switch fn.Type() {
	case "identifier":
		return s.text(fn)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return s.text(attr)
		}
	}
	return ""
}

func assignmentTarget(s *PythonSource, left *sitter.Node) string {
	switch left.Type() {
	case "identifier":
		return s.text(left)
	case "attribute":
		if attr := left.ChildByFieldName("attribute"); attr != nil {
			return s.text(attr)
		}
	case "subscript":
		if v := left.ChildByFieldName("value"); v != nil {
			return assignmentTarget(s, v)
		}
	}
	return ""
}

// stringLiteral unquotes a plain or implicitly concatenated string literal.
func stringLiteral(s *PythonSource, n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "string":
		return unquote(s.text(n))
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			part, ok := stringLiteral(s, n.NamedChild(i))
			if !ok {
				return "", false
			}
			b.WriteString(part)
		}
		return b.String(), true
	}
	return "", false
}

func unquote(raw string) (string, bool) {
	i := 0
	for i < len(raw) && strings.ContainsRune("rRbBuUfF", rune(raw[i])) {
		if raw[i] == 'f' || raw[i] == 'F' {
			return "", false
		}
		i++
	}
	body := raw[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

// =============================================================================
// DEFINITIONS
// =============================================================================

// Functions lists function definitions in source order. Decorated
// definitions are included; methods and nested functions have TopLevel unset.
func (s *PythonSource) Functions() []FunctionDef {
	var defs []FunctionDef
	var visit func(n *sitter.Node, topLevel bool)
	visit = func(n *sitter.Node, topLevel bool) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				defs = append(defs, s.functionDef(child, topLevel))
				if body := child.ChildByFieldName("body"); body != nil {
					visit(body, false)
				}
			case "decorated_definition":
				visit(child, topLevel)
			case "class_definition":
				if body := child.ChildByFieldName("body"); body != nil {
					visit(body, false)
				}
			case "if_statement", "try_statement", "with_statement", "block",
				"else_clause", "elif_clause", "except_clause", "finally_clause":
				// Conditional definitions at module level still count as top level.
				visit(child, topLevel)
			}
		}
	}
	visit(s.tree.RootNode(), true)
	return defs
}

func (s *PythonSource) functionDef(n *sitter.Node, topLevel bool) FunctionDef {
	def := FunctionDef{Line: int(n.StartPoint().Row) + 1, TopLevel: topLevel}
	if name := n.ChildByFieldName("name"); name != nil {
		def.Name = s.text(name)
	}
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return def
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if p := parameterName(s, params.NamedChild(i)); p != "" {
			def.Params = append(def.Params, p)
		}
	}
	return def
}

func parameterName(s *PythonSource, p *sitter.Node) string {
	switch p.Type() {
	case "identifier":
		return s.text(p)
	case "default_parameter", "typed_default_parameter":
		if name := p.ChildByFieldName("name"); name != nil {
			return s.text(name)
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c.Type() == "identifier" {
				return s.text(c)
			}
		}
	}
	return ""
}
