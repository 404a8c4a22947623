package mutation

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/dreezy-6/adaad6/pkg/kernel"
)

const mutationKindDropPass = "drop_pass"

// allowedImports is the closed set of import roots a mutated source file
// may reference. A mutation that needs anything else fails the allowlist
// gate rather than ever reaching the sandbox.
var allowedImports = map[string]bool{
	"math":       true,
	"json":       true,
	"re":         true,
	"statistics": true,
	"decimal":    true,
	"fractions":  true,
	"typing":     true,
	"itertools":  true,
	"functools":  true,
	"operator":   true,
}

// dropPass parses src, strips every top-level ast.EmptyStmt (Go's analogue
// of a bare `pass`) from each function's immediate statement list, and
// renders the result. Nested blocks are left untouched — only statements
// directly in a function body's top-level list are eligible, matching the
// reference mutator's Module-body-only scope. kind is nil when nothing
// changed.
func dropPass(src string) (mutatedSrc string, kind *string, err error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "mutation_src.go", src, parser.ParseComments)
	if err != nil {
		return "", nil, kernel.NewValidationError("mutation: parse source: %v", err)
	}

	changed := false
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		kept := make([]ast.Stmt, 0, len(fn.Body.List))
		for _, stmt := range fn.Body.List {
			if _, isEmpty := stmt.(*ast.EmptyStmt); isEmpty {
				changed = true
				continue
			}
			kept = append(kept, stmt)
		}
		fn.Body.List = kept
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return "", nil, kernel.NewValidationError("mutation: render mutated source: %v", err)
	}
	mutatedSrc = buf.String()

	if !changed {
		return mutatedSrc, nil, nil
	}
	k := mutationKindDropPass
	return mutatedSrc, &k, nil
}

// roundTripParse re-parses src, the safety check that a rendered mutation
// is itself syntactically valid before it is allowed anywhere near a
// sandbox.
func roundTripParse(src string) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "mutation_roundtrip.go", src, parser.ParseComments); err != nil {
		return kernel.NewValidationError("mutation: round-trip parse: %v", err)
	}
	return nil
}

// extractImports returns the root package name of every import in src
// ("encoding/json" -> "encoding", "math" -> "math"), deduplicated.
func extractImports(src string) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "mutation_imports.go", src, parser.ImportsOnly)
	if err != nil {
		return nil, kernel.NewValidationError("mutation: parse imports: %v", err)
	}
	seen := make(map[string]bool)
	var roots []string
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		root := path
		if idx := strings.Index(path, "/"); idx >= 0 {
			root = path[:idx]
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots, nil
}

// allImportsAllowed reports whether every entry in imports is in the
// allowlist.
func allImportsAllowed(imports []string) bool {
	for _, imp := range imports {
		if !allowedImports[imp] {
			return false
		}
	}
	return true
}
