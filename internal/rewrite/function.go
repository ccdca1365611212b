package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/Tommy-ASD/tracegen/internal/report"
	"github.com/Tommy-ASD/tracegen/internal/trcodes"
)

// Function is one marker-annotated function taken through the pipeline.
// It exists only for the duration of a single file rewrite.
type Function struct {
	// Name qualifies the function in generated context literals.
	// Methods render as "Type.Name".
	Name string

	Decl   *ast.FuncDecl
	Marker *ast.Comment

	// resultCount is the flattened number of results declared by the
	// signature, named groups counted per name.
	resultCount int
}

// acquire scans the file for declarations carrying the marker directive.
// Problems are reported and the offending declaration is dropped; the
// remaining functions proceed through the pipeline.
func (e *Engine) acquire(fset *token.FileSet, file *ast.File) []*Function {
	r := e.rep.Phase(report.PhaseAcquire)
	pector := inspector.New([]*ast.File{file})

	nodeFilter := []ast.Node{
		(*ast.FuncDecl)(nil),
		(*ast.GenDecl)(nil),
	}

	var out []*Function
	pector.Preorder(nodeFilter, func(node ast.Node) {
		switch n := node.(type) {
		case *ast.GenDecl:
			markers := e.markerComments(n.Doc)
			if len(markers) == 0 {
				return
			}
			r.Report(
				trcodes.MalformedInput(),
				fmt.Sprintf("marker //%s is only applicable to functions, got a %s declaration", e.cfg.Marker, declKind(n)),
				fset.Position(markers[0].Pos()),
			)

		case *ast.FuncDecl:
			fn := e.acquireFunc(fset, n, r)
			if fn != nil {
				out = append(out, fn)
			}
		}
	})

	return out
}

func (e *Engine) acquireFunc(fset *token.FileSet, decl *ast.FuncDecl, r *report.PhaseReporter) *Function {
	markers := e.markerComments(decl.Doc)
	switch len(markers) {
	case 0:
		return nil
	case 1:
	default:
		r.Report(
			trcodes.DuplicateMarker(),
			fmt.Sprintf("marker //%s appears %d times on %s", e.cfg.Marker, len(markers), decl.Name.Name),
			fset.Position(markers[1].Pos()),
		)
		return nil
	}

	if decl.Body == nil {
		r.Report(
			trcodes.MalformedInput(),
			fmt.Sprintf("function %s has no body to rewrite", decl.Name.Name),
			fset.Position(markers[0].Pos()),
		)
		return nil
	}

	count, ok := fallibleResultShape(decl.Type)
	if !ok {
		r.Report(
			trcodes.NotFallibleFunction(),
			fmt.Sprintf("function %s must have error as its last result", decl.Name.Name),
			fset.Position(markers[0].Pos()),
		)
		return nil
	}

	return &Function{
		Name:        contextName(decl),
		Decl:        decl,
		Marker:      markers[0],
		resultCount: count,
	}
}

// markerComments returns every comment in the group spelling the marker
// directive. More than one is a usage error caught by the caller.
func (e *Engine) markerComments(doc *ast.CommentGroup) []*ast.Comment {
	if doc == nil {
		return nil
	}

	want := "//" + e.cfg.Marker
	var out []*ast.Comment
	for _, c := range doc.List {
		if strings.TrimRight(c.Text, " \t") == want {
			out = append(out, c)
		}
	}

	return out
}

// fallibleResultShape reports whether the signature's last result is the
// error type, and returns the flattened result count. The check is purely
// syntactic: the last result type must spell "error".
func fallibleResultShape(typ *ast.FuncType) (count int, ok bool) {
	if typ.Results == nil || len(typ.Results.List) == 0 {
		return 0, false
	}

	for _, field := range typ.Results.List {
		if len(field.Names) == 0 {
			count++
		} else {
			count += len(field.Names)
		}
	}

	last := typ.Results.List[len(typ.Results.List)-1]
	id, ok := last.Type.(*ast.Ident)
	if !ok || id.Name != "error" {
		return count, false
	}

	return count, true
}

// contextName is the function name baked into generated context literals.
func contextName(decl *ast.FuncDecl) string {
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		return decl.Name.Name
	}

	if base := recvBaseName(decl.Recv.List[0].Type); base != "" {
		return base + "." + decl.Name.Name
	}

	return decl.Name.Name
}

func recvBaseName(expr ast.Expr) string {
	switch v := expr.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.StarExpr:
		return recvBaseName(v.X)
	case *ast.IndexExpr:
		return recvBaseName(v.X)
	case *ast.IndexListExpr:
		return recvBaseName(v.X)
	default:
		return ""
	}
}

func declKind(decl *ast.GenDecl) string {
	switch decl.Tok {
	case token.TYPE:
		return "type"
	case token.VAR:
		return "var"
	case token.CONST:
		return "const"
	case token.IMPORT:
		return "import"
	default:
		return "non-function"
	}
}
