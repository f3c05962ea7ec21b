// Package errwrap detects errors formatted into fmt.Errorf without %w.
package errwrap

import (
	"go/ast"
	"go/constant"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer reports fmt.Errorf calls that format an error operand with %v or %s.
var Analyzer = &analysis.Analyzer{
	Name:     "errwrap",
	Doc:      "detects fmt.Errorf calls that format an error with %v or %s instead of %w",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var errorType = types.Universe.Lookup("error").Type().Underlying().(*types.Interface)

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		call := n.(*ast.CallExpr)

		fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || fn.FullName() != "fmt.Errorf" || len(call.Args) == 0 {
			return
		}

		tv, ok := pass.TypesInfo.Types[call.Args[0]]
		if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
			return
		}

		verbs, ok := parseVerbs(constant.StringVal(tv.Value))
		if !ok {
			return
		}

		operands := call.Args[1:]
		for i, verb := range verbs {
			if i >= len(operands) {
				return
			}
			if verb != 'v' && verb != 's' {
				continue
			}
			t := pass.TypesInfo.TypeOf(operands[i])
			if t != nil && types.Implements(t, errorType) {
				pass.Reportf(operands[i].Pos(),
					"error formatted with %%%c - use %%w so callers can errors.Is/As it", verb)
			}
		}
	})

	return nil, nil
}

// parseVerbs returns the verbs of format in operand order. It gives up on
// explicit argument indexes and star widths.
func parseVerbs(format string) ([]byte, bool) {
	var verbs []byte
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		for i < len(format) && strings.IndexByte("+-# 0123456789.", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			break
		}
		switch c := format[i]; c {
		case '%':
		case '[', '*':
			return nil, false
		default:
			verbs = append(verbs, c)
		}
	}
	return verbs, true
}
