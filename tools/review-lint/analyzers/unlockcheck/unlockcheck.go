// Package unlockcheck detects discarded unlock functions returned by Lock.
package unlockcheck

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports Lock calls whose returned unlock function is dropped.
var Analyzer = &analysis.Analyzer{
	Name:     "unlockcheck",
	Doc:      "detects Lock calls returning (func(), error) whose unlock function is discarded",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.AssignStmt)(nil),
		(*ast.ExprStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		switch stmt := n.(type) {
		case *ast.ExprStmt:
			if call, ok := stmt.X.(*ast.CallExpr); ok && isLockCall(pass, call) {
				pass.Reportf(call.Pos(), "result of Lock discarded - the branch is never unlocked")
			}
		case *ast.AssignStmt:
			if len(stmt.Rhs) != 1 || len(stmt.Lhs) != 2 {
				return
			}
			call, ok := stmt.Rhs[0].(*ast.CallExpr)
			if !ok || !isLockCall(pass, call) {
				return
			}
			if ident, ok := stmt.Lhs[0].(*ast.Ident); ok && ident.Name == "_" {
				pass.Reportf(call.Pos(), "unlock function from Lock assigned to _ - the branch is never unlocked")
			}
		}
	})

	return nil, nil
}

// isLockCall reports whether call is a method named Lock returning (func(), error).
func isLockCall(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Lock" {
		return false
	}

	sig, ok := pass.TypesInfo.TypeOf(call.Fun).(*types.Signature)
	if !ok || sig.Results().Len() != 2 {
		return false
	}

	unlock, ok := sig.Results().At(0).Type().Underlying().(*types.Signature)
	if !ok || unlock.Params().Len() != 0 || unlock.Results().Len() != 0 {
		return false
	}
	return types.Identical(sig.Results().At(1).Type(), types.Universe.Lookup("error").Type())
}
