package rewrite

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/Tommy-ASD/tracegen/internal/gencfg"
	"github.com/Tommy-ASD/tracegen/internal/report"
	"github.com/Tommy-ASD/tracegen/internal/trcodes"
)

// Engine drives the whole pipeline over single files. It holds no state
// across files: every RewriteFile call parses, identifies, rewrites and
// emits independently.
type Engine struct {
	cfg   gencfg.Config
	rep   *report.Reporter
	wraps *knownWrapChecker
}

// New is the [Engine] constructor.
func New(cfg gencfg.Config, rep *report.Reporter) *Engine {
	return &Engine{
		cfg:   cfg,
		rep:   rep,
		wraps: newKnownWrapChecker(cfg),
	}
}

// Result of rewriting one file.
type Result struct {
	Filename string

	// Output is the emitted source. When nothing matched it is the
	// input, byte for byte.
	Output []byte

	// Functions is the number of marked functions taken through the
	// pipeline, Sites the number of rewritten sites across them.
	Functions int
	Sites     int

	Changed bool
}

// RewriteFile runs the pipeline over one source file.
func (e *Engine) RewriteFile(filename string, src []byte) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	res := &Result{Filename: filename, Output: src}

	fns := e.acquire(fset, file)
	if len(fns) == 0 {
		return res, nil
	}
	res.Functions = len(fns)

	declRepl := make(map[ast.Decl]ast.Decl)
	dropComments := make(map[*ast.Comment]bool)
	for _, fn := range fns {
		sites := e.identify(fset, fn)
		if len(sites) == 0 {
			continue
		}

		repl := e.rewriteSites(fset, fn, sites)
		decl, ok := e.reassemble(fset, fn, repl)
		if !ok {
			continue
		}

		declRepl[fn.Decl] = decl
		dropComments[fn.Marker] = true
		res.Sites += len(sites)
	}

	if len(declRepl) == 0 {
		return res, nil
	}

	out := cloneFileForEmit(file, declRepl, dropComments)
	e.addContextImport(fset, out)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, out); err != nil {
		return nil, fmt.Errorf("print rewritten %s: %w", filename, err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format rewritten %s: %w", filename, err)
	}

	res.Output = formatted
	res.Changed = true

	return res, nil
}

// SiteInfo is the listing-mode view of one matched site.
type SiteInfo struct {
	Function string
	Kind     string
	Line     int
}

// ListSites identifies sites without rewriting anything.
func (e *Engine) ListSites(filename string, src []byte) ([]SiteInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	var out []SiteInfo
	for _, fn := range e.acquire(fset, file) {
		for _, site := range e.identify(fset, fn) {
			out = append(out, SiteInfo{
				Function: fn.Name,
				Kind:     site.Kind.String(),
				Line:     site.Pos.Line,
			})
		}
	}

	return out, nil
}

// reassemble splices replacements into a new function declaration with
// the original signature, visibility and doc minus the marker. A site
// whose statement was not consumed means identification and rewriting
// disagree about the tree: an internal invariant violation.
func (e *Engine) reassemble(fset *token.FileSet, fn *Function, repl map[ast.Stmt][]ast.Stmt) (*ast.FuncDecl, bool) {
	used := make(map[ast.Stmt]bool, len(repl))
	body, _ := substBlock(fn.Decl.Body, repl, used)

	if len(used) != len(repl) {
		e.rep.Phase(report.PhaseReassemble).Report(
			trcodes.ReassemblyFailure(),
			fmt.Sprintf("%d of %d sites could not be substituted in %s", len(repl)-len(used), len(repl), fn.Name),
			fset.Position(fn.Decl.Pos()),
		)
		return nil, false
	}

	decl := *fn.Decl
	decl.Body = body
	decl.Doc = stripDocMarker(fn.Decl.Doc, fn.Marker)

	return &decl, true
}

func substBlock(b *ast.BlockStmt, repl map[ast.Stmt][]ast.Stmt, used map[ast.Stmt]bool) (*ast.BlockStmt, bool) {
	list, changed := substStmts(b.List, repl, used)
	if !changed {
		return b, false
	}

	// The closing brace loses its position: spliced statements carry none,
	// and the printer would otherwise pad the gap up to the brace's
	// original line with a blank.
	return &ast.BlockStmt{Lbrace: b.Lbrace, List: list, Rbrace: token.NoPos}, true
}

func substStmts(list []ast.Stmt, repl map[ast.Stmt][]ast.Stmt, used map[ast.Stmt]bool) ([]ast.Stmt, bool) {
	out := make([]ast.Stmt, 0, len(list))
	changed := false

	for _, s := range list {
		if rep, ok := repl[s]; ok {
			out = append(out, rep...)
			used[s] = true
			changed = true
			continue
		}

		ns, ch := substStmt(s, repl, used)
		out = append(out, ns)
		changed = changed || ch
	}

	if !changed {
		return list, false
	}

	return out, true
}

// substStmt rebuilds block-bearing statements copy-on-write. Statements
// without nested statement lists pass through shared.
func substStmt(s ast.Stmt, repl map[ast.Stmt][]ast.Stmt, used map[ast.Stmt]bool) (ast.Stmt, bool) {
	switch v := s.(type) {
	case *ast.BlockStmt:
		return substBlock(v, repl, used)

	case *ast.IfStmt:
		body, bodyChanged := substBlock(v.Body, repl, used)
		var (
			els        ast.Stmt
			elsChanged bool
		)
		if v.Else != nil {
			els, elsChanged = substStmt(v.Else, repl, used)
		}
		if !bodyChanged && !elsChanged {
			return v, false
		}
		n := *v
		n.Body = body
		n.Else = els
		return &n, true

	case *ast.ForStmt:
		body, changed := substBlock(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = body
		return &n, true

	case *ast.RangeStmt:
		body, changed := substBlock(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = body
		return &n, true

	case *ast.SwitchStmt:
		body, changed := substBlock(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = body
		return &n, true

	case *ast.TypeSwitchStmt:
		body, changed := substBlock(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = body
		return &n, true

	case *ast.SelectStmt:
		body, changed := substBlock(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = body
		return &n, true

	case *ast.CaseClause:
		list, changed := substStmts(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = list
		return &n, true

	case *ast.CommClause:
		list, changed := substStmts(v.Body, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Body = list
		return &n, true

	case *ast.LabeledStmt:
		child, changed := substStmt(v.Stmt, repl, used)
		if !changed {
			return v, false
		}
		n := *v
		n.Stmt = child
		return &n, true

	default:
		return s, false
	}
}

func stripDocMarker(doc *ast.CommentGroup, marker *ast.Comment) *ast.CommentGroup {
	if doc == nil {
		return nil
	}

	list := make([]*ast.Comment, 0, len(doc.List))
	for _, c := range doc.List {
		if c == marker {
			continue
		}
		list = append(list, c)
	}
	if len(list) == 0 {
		return nil
	}

	return &ast.CommentGroup{List: list}
}

// cloneFileForEmit builds the output file: replaced declarations spliced
// in, marker comments dropped, import declarations cloned so that import
// insertion never touches the input tree.
func cloneFileForEmit(file *ast.File, declRepl map[ast.Decl]ast.Decl, drop map[*ast.Comment]bool) *ast.File {
	out := *file

	out.Decls = make([]ast.Decl, len(file.Decls))
	for i, d := range file.Decls {
		if nd, ok := declRepl[d]; ok {
			out.Decls[i] = nd
			continue
		}
		if gd, ok := d.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			ngd := *gd
			ngd.Specs = make([]ast.Spec, len(gd.Specs))
			copy(ngd.Specs, gd.Specs)
			out.Decls[i] = &ngd
			continue
		}
		out.Decls[i] = d
	}

	out.Imports = make([]*ast.ImportSpec, len(file.Imports))
	copy(out.Imports, file.Imports)

	out.Comments = make([]*ast.CommentGroup, 0, len(file.Comments))
	for _, group := range file.Comments {
		filtered := group
		for _, c := range group.List {
			if drop[c] {
				filtered = nil
				break
			}
		}
		if filtered == nil {
			list := make([]*ast.Comment, 0, len(group.List))
			for _, c := range group.List {
				if !drop[c] {
					list = append(list, c)
				}
			}
			if len(list) == 0 {
				continue
			}
			filtered = &ast.CommentGroup{List: list}
		}
		out.Comments = append(out.Comments, filtered)
	}

	return &out
}

func (e *Engine) addContextImport(fset *token.FileSet, file *ast.File) {
	alias := e.cfg.ImportAlias
	if alias == "" {
		astutil.AddImport(fset, file, e.cfg.Wrap.Package)
		return
	}

	astutil.AddNamedImport(fset, file, alias, e.cfg.Wrap.Package)
}
