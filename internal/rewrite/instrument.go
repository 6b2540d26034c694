package rewrite

import (
	"fmt"

	"github.com/d5/tengo/v2/parser"
)

// Instrument inserts a checkpoint call after every statement, recursing
// into loop, conditional, and function literal bodies, so a running script
// polls for control requests at statement granularity. An empty loop body
// still receives a checkpoint: a bare busy loop must stay interruptible.
func Instrument(src string) (string, error) {
	file, err := parseSource(src)
	if err != nil {
		return "", fmt.Errorf("malformed script: %w", err)
	}

	file.Stmts = instrumentBody(file.Stmts)
	return render(file.Stmts), nil
}

func instrumentBody(stmts []parser.Stmt) []parser.Stmt {
	out := make([]parser.Stmt, 0, len(stmts)*2+1)
	for _, stmt := range stmts {
		instrumentStmt(stmt)
		out = append(out, stmt, checkpointCall())
	}
	if len(out) == 0 {
		out = append(out, checkpointCall())
	}
	return out
}

func instrumentStmt(stmt parser.Stmt) {
	switch node := stmt.(type) {
	case *parser.ForStmt:
		node.Body.Stmts = instrumentBody(node.Body.Stmts)
	case *parser.ForInStmt:
		node.Body.Stmts = instrumentBody(node.Body.Stmts)
	case *parser.IfStmt:
		node.Body.Stmts = instrumentBody(node.Body.Stmts)
		if node.Else != nil {
			instrumentStmt(node.Else)
		}
	case *parser.BlockStmt:
		node.Stmts = instrumentBody(node.Stmts)
	case *parser.ExprStmt:
		if fn, ok := node.Expr.(*parser.FuncLit); ok {
			fn.Body.Stmts = instrumentBody(fn.Body.Stmts)
		}
	case *parser.AssignStmt:
		for _, rhs := range node.RHS {
			if fn, ok := rhs.(*parser.FuncLit); ok {
				fn.Body.Stmts = instrumentBody(fn.Body.Stmts)
			}
		}
	}
}

func checkpointCall() parser.Stmt {
	return &parser.ExprStmt{Expr: &parser.CallExpr{
		Func: &parser.Ident{Name: CheckpointIdent},
	}}
}
