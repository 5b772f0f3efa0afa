// Package validate performs the shallow pre-deploy checks on model source:
// a marker check that the text declares a cube or view, a structural check,
// and a syntax parse. It does not evaluate or type-check anything.
package validate

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"gopkg.in/yaml.v3"
)

// Code classifies a validation failure.
type Code string

const (
	// InvalidSyntax means a required marker is missing.
	InvalidSyntax Code = "InvalidSyntax"
	// SyntaxError means the text does not parse.
	SyntaxError Code = "SyntaxError"
)

// Error describes why a model was rejected. Line and Column are 1-based and
// zero when the failure has no position.
type Error struct {
	Code    Code
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d:%d: %s", e.Code, e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type rules struct {
	// one of these must appear
	markers []string
	label   string
	// per marker, one of these must appear as well
	structure map[string][]string
	parse     func(file string, src []byte) error
}

var jsRules = rules{
	markers: []string{"cube(", "view("},
	label:   "cube() or view()",
	structure: map[string][]string{
		"cube(": {"sql"},
		"view(": {"cubes", "includes"},
	},
	parse: parseJS,
}

var yamlRules = rules{
	markers: []string{"cubes:", "views:"},
	label:   "cubes: or views:",
	structure: map[string][]string{
		"cubes:": {"name:"},
		"views:": {"name:"},
	},
	parse: parseYAML,
}

func rulesFor(ext string) (rules, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "js":
		return jsRules, true
	case "yml", "yaml":
		return yamlRules, true
	default:
		return rules{}, false
	}
}

// Model validates text as the body of "<name>.<ext>".
func Model(name, ext, text string) error {
	file := name + "." + strings.TrimPrefix(ext, ".")
	r, ok := rulesFor(ext)
	if !ok {
		return &Error{Code: InvalidSyntax, File: file, Message: fmt.Sprintf("unsupported model extension %q", ext)}
	}

	var present []string
	for _, m := range r.markers {
		if strings.Contains(text, m) {
			present = append(present, m)
		}
	}
	if len(present) == 0 {
		return &Error{
			Code:    InvalidSyntax,
			File:    file,
			Message: "model must contain a " + r.label + " definition",
		}
	}
	// Any one satisfied marker is enough; a file may mix cubes and views.
	var missing []string
	satisfied := false
	for _, m := range present {
		need := r.structure[m]
		if containsAny(text, need) {
			satisfied = true
			break
		}
		missing = append(missing, fmt.Sprintf("%s needs %s", strings.TrimRight(m, "(:"), strings.Join(need, " or ")))
	}
	if !satisfied {
		return &Error{Code: InvalidSyntax, File: file, Message: "model is missing required structure: " + strings.Join(missing, "; ")}
	}

	return r.parse(file, []byte(text))
}

func parseJS(file string, src []byte) error {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return &Error{Code: SyntaxError, File: file, Message: fmt.Sprintf("parse failed: %v", err)}
	}
	root := tree.RootNode()
	if root == nil {
		return &Error{Code: SyntaxError, File: file, Message: "parser returned no tree"}
	}
	if !root.HasError() {
		return nil
	}
	if n := firstError(root); n != nil {
		p := n.StartPoint()
		msg := "unexpected token"
		if n.IsMissing() {
			msg = fmt.Sprintf("missing %q", n.Type())
		}
		return &Error{Code: SyntaxError, File: file, Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg}
	}
	return &Error{Code: SyntaxError, File: file, Message: "source contains syntax errors"}
}

// firstError does a depth-first search for the first ERROR or MISSING node.
func firstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func parseYAML(file string, src []byte) error {
	var v any
	if err := yaml.Unmarshal(src, &v); err != nil {
		e := &Error{Code: SyntaxError, File: file, Message: err.Error()}
		var line int
		if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
			e.Line = line
			e.Column = 1
		}
		return e
	}
	if _, ok := v.(map[string]any); !ok {
		return &Error{Code: SyntaxError, File: file, Message: "top level must be a mapping"}
	}
	return nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
