package util

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The logger colorizes every argument into a string before formatting, so
// numeric and boolean verbs render as fmt errors ("%!d(string=8)"). Callers
// must pre-format with fmt.Sprintf and interpolate with %s (or %v).
var numericVerbRegexp = regexp.MustCompile(`%[-+ #0]*[0-9.*]*[dtfbeExXoqcU]`)

func TestLogFormatVerbsAreStringSafe(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", "..", ".."))
	require.NoError(t, err)

	var offenders []string
	walkErr := filepath.Walk(filepath.Join(root, "src"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}

		fset := token.NewFileSet()
		file, parseErr := parser.ParseFile(fset, path, nil, 0)
		if parseErr != nil {
			return parseErr
		}

		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			selector, ok := call.Fun.(*ast.SelectorExpr)
			if !ok || selector.Sel.Name != "Log" {
				return true
			}
			if pkg, ok := selector.X.(*ast.Ident); !ok || pkg.Name != "tl" {
				return true
			}
			// tl.Log(level, colorizer, format, args...)
			if len(call.Args) < 3 {
				return true
			}
			literal, ok := call.Args[2].(*ast.BasicLit)
			if !ok || literal.Kind != token.STRING {
				return true
			}
			format, unquoteErr := strconv.Unquote(literal.Value)
			if unquoteErr != nil {
				return true
			}
			if numericVerbRegexp.MatchString(format) {
				offenders = append(offenders, fset.Position(literal.Pos()).String()+": "+format)
			}
			return true
		})
		return nil
	})
	require.NoError(t, walkErr)
	require.Empty(t, offenders, "pre-format non-string log arguments with fmt.Sprintf")
}
