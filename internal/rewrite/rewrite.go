// Package rewrite transforms Tengo source before execution. Source is the
// auto-output pass that forwards bare expression results to the output
// sink; Instrument inserts the cooperative interruption checkpoints the
// supervisor polls between statements. Both are pure text-to-text
// transforms with no side effects.
package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/token"

	"github.com/nfrund/rerun/internal/output"
)

// SinkIdent is the identifier the rewriter binds the output module to.
const SinkIdent = "__output__"

// CheckpointIdent is the identifier instrumented checkpoint calls use.
// The runner binds it to a Go function before each pass.
const CheckpointIdent = "__checkpoint__"

// Source rewrites bare expression statements into explicit output calls
// and binds the output module near the top of the script, so a script can
// produce output without ever naming the sink.
func Source(src string) (string, error) {
	file, err := parseSource(src)
	if err != nil {
		return "", fmt.Errorf("malformed script: %w", err)
	}

	rewriteBody(file.Stmts)
	file.Stmts = insertSinkImport(file.Stmts)
	return render(file.Stmts), nil
}

func parseSource(src string) (*parser.File, error) {
	fileSet := parser.NewFileSet()
	srcFile := fileSet.AddFile("(script)", -1, len(src))
	p := parser.NewParser(srcFile, []byte(src), nil)
	return p.ParseFile()
}

// render serializes the transformed tree back to source text, one
// top-level statement per line.
func render(stmts []parser.Stmt) string {
	var b strings.Builder
	for _, stmt := range stmts {
		b.WriteString(stmt.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// rewriteBody rewrites one statement list in place. The leading statement
// is exempt from string wrapping at every depth: a sole leading string is
// the docstring of its enclosing body, top level and function bodies alike.
func rewriteBody(stmts []parser.Stmt) {
	for i, stmt := range stmts {
		switch node := stmt.(type) {
		case *parser.ExprStmt:
			if call := outputCallForExpr(node.Expr, i == 0); call != nil {
				node.Expr = call
			}
		case *parser.AssignStmt:
			rewriteAssign(node)
		}
	}
}

func rewriteAssign(node *parser.AssignStmt) {
	if len(node.RHS) != 1 {
		return
	}

	switch rhs := node.RHS[0].(type) {
	case *parser.FuncLit:
		// Recurse so bare expressions inside function bodies are
		// forwarded too.
		rewriteBody(rhs.Body.Stmts)
	case *parser.ArrayLit:
		// x := [f()] assigns the written value of f(): the one-element
		// escape hatch, in assignment position. write returns its last
		// argument, so the assignment keeps its value.
		if len(rhs.Elements) == 1 {
			node.RHS[0] = outputCall(rhs.Elements[0])
		}
	}
}

// outputCallForExpr decides whether a bare expression statement should be
// forwarded to the sink and builds the replacement call if so. A nil
// return leaves the statement untouched.
func outputCallForExpr(expr parser.Expr, leading bool) parser.Expr {
	switch node := expr.(type) {
	case *parser.CallExpr:
		// Calls already ran for their effect; never wrap them.
		return nil

	case *parser.FuncLit:
		rewriteBody(node.Body.Stmts)
		return nil

	case *parser.StringLit:
		if leading {
			// A sole leading string acts as its body's docstring.
			return nil
		}
		return outputCall(node)

	case *parser.ArrayLit:
		// One-element array: forward the element, not the array. This is
		// how an expression is explicitly forced to the sink.
		if len(node.Elements) == 1 {
			return outputCall(node.Elements[0])
		}
		return outputCall(node)

	case *parser.Ident:
		// Annotate bare identifiers with their source name so the
		// rendered value says where it came from.
		return outputCall(stringLit("**"+node.Name+"**"), node)

	default:
		return outputCall(expr)
	}
}

func outputCall(args ...parser.Expr) *parser.CallExpr {
	return &parser.CallExpr{
		Func: &parser.SelectorExpr{
			Expr: &parser.Ident{Name: SinkIdent},
			Sel:  &parser.StringLit{Value: "write", Literal: "write"},
		},
		Args: args,
	}
}

func stringLit(value string) *parser.StringLit {
	return &parser.StringLit{Value: value, Literal: strconv.Quote(value)}
}

// insertSinkImport places the output module binding near the top of the
// script: after a leading import binding, or after a leading docstring
// followed by an import binding, so those keep their position; otherwise
// at the very top.
func insertSinkImport(stmts []parser.Stmt) []parser.Stmt {
	binding := &parser.AssignStmt{
		LHS:   []parser.Expr{&parser.Ident{Name: SinkIdent}},
		RHS:   []parser.Expr{&parser.ImportExpr{ModuleName: output.ModuleName, Token: token.Import}},
		Token: token.Define,
	}

	at := 0
	switch {
	case len(stmts) > 0 && isImportBinding(stmts[0]):
		at = 1
	case len(stmts) > 1 && isDocstring(stmts[0]) && isImportBinding(stmts[1]):
		at = 2
	}

	out := make([]parser.Stmt, 0, len(stmts)+1)
	out = append(out, stmts[:at]...)
	out = append(out, binding)
	out = append(out, stmts[at:]...)
	return out
}

// isImportBinding matches the x := import("y") shape.
func isImportBinding(stmt parser.Stmt) bool {
	assign, ok := stmt.(*parser.AssignStmt)
	if !ok || len(assign.RHS) != 1 {
		return false
	}
	_, ok = assign.RHS[0].(*parser.ImportExpr)
	return ok
}

func isDocstring(stmt parser.Stmt) bool {
	expr, ok := stmt.(*parser.ExprStmt)
	if !ok {
		return false
	}
	_, ok = expr.Expr.(*parser.StringLit)
	return ok
}
