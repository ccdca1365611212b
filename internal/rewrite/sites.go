package rewrite

import (
	"fmt"
	"go/ast"
	"go/token"
	"path/filepath"

	"github.com/Tommy-ASD/tracegen/internal/report"
	"github.com/Tommy-ASD/tracegen/internal/trcodes"
)

// SiteKind describes varieties of matched call-then-propagate shapes.
type SiteKind int

const (
	siteInvalid SiteKind = iota

	// SiteGuardedReturn is "if e != nil { ... return ..., e }": the
	// return's last result is the guarded error identifier, unmodified.
	SiteGuardedReturn

	// SiteDirectCall is "return f(...)": a single call expression
	// provides the enclosing function's entire result list.
	SiteDirectCall

	// SiteIndexAssign is "v := xs[i]" inside a marked function with a
	// sole error result, rewritten into a bounds-guarded access.
	// Matched only with safe-index enabled.
	SiteIndexAssign
)

func (k SiteKind) String() string {
	switch k {
	case SiteGuardedReturn:
		return "guarded-return"
	case SiteDirectCall:
		return "direct-call"
	case SiteIndexAssign:
		return "index-assign"
	default:
		return fmt.Sprintf("invalid(%d)", k)
	}
}

// Site is one matched location within a function body. It is created
// during identification, consumed during rewriting and never persisted.
type Site struct {
	Kind SiteKind

	// Stmt is the original statement the replacement substitutes.
	Stmt ast.Stmt

	// Err is the propagated error identifier for guarded returns.
	Err *ast.Ident

	// Call is the tail call for direct-call sites.
	Call *ast.CallExpr

	// Index is the matched index expression for index-assign sites.
	Index *ast.IndexExpr

	// Pos is baked into the generated context literals.
	Pos token.Position
}

// identify walks the function body and collects sites in textual order,
// outer to inner. The walk is statement-shaped and read-only: expressions
// are never descended into, so closures and deferred calls are naturally
// left untouched.
func (e *Engine) identify(fset *token.FileSet, fn *Function) []Site {
	w := &walker{
		engine: e,
		fset:   fset,
		fn:     fn,
		rep:    e.rep.Phase(report.PhaseIdentify),
	}
	w.stmts(fn.Decl.Body.List)

	return w.sites
}

type walker struct {
	engine *Engine
	fset   *token.FileSet
	fn     *Function
	rep    *report.PhaseReporter

	sites []Site

	// guards holds the error identifiers of enclosing "e != nil"
	// conditions, innermost last. A guard dies once its identifier is
	// written to again: the condition only vouched for the old value.
	guards []guard
}

type guard struct {
	name string
	live bool
}

func (w *walker) stmts(list []ast.Stmt) {
	for _, s := range list {
		w.stmt(s)
	}
}

func (w *walker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		w.onReturn(s)

	case *ast.AssignStmt:
		w.dropGuards(s)
		w.onAssign(s)

	case *ast.IncDecStmt, *ast.DeclStmt:
		w.dropGuards(s)

	case *ast.IfStmt:
		w.onIf(s)

	case *ast.BlockStmt:
		w.stmts(s.List)

	case *ast.ForStmt:
		w.dropGuards(s.Init)
		w.dropGuards(s.Post)
		w.stmts(s.Body.List)

	case *ast.RangeStmt:
		w.dropGuardExpr(s.Key)
		w.dropGuardExpr(s.Value)
		w.stmts(s.Body.List)

	case *ast.SwitchStmt:
		w.dropGuards(s.Init)
		w.caseBodies(s.Body)

	case *ast.TypeSwitchStmt:
		w.dropGuards(s.Init)
		w.dropGuards(s.Assign)
		w.caseBodies(s.Body)

	case *ast.SelectStmt:
		for _, c := range s.Body.List {
			if comm, ok := c.(*ast.CommClause); ok {
				w.dropGuards(comm.Comm)
				w.stmts(comm.Body)
			}
		}

	case *ast.LabeledStmt:
		// Only block-bearing statements are followed under a label:
		// a labeled site statement could not be spliced 1:n.
		switch s.Stmt.(type) {
		case *ast.BlockStmt, *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt,
			*ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			w.stmt(s.Stmt)
		}
	}
}

func (w *walker) caseBodies(body *ast.BlockStmt) {
	for _, c := range body.List {
		if clause, ok := c.(*ast.CaseClause); ok {
			w.stmts(clause.Body)
		}
	}
}

func (w *walker) onIf(s *ast.IfStmt) {
	w.dropGuards(s.Init)

	if name, ok := nilGuardIdent(s.Cond); ok {
		w.guards = append(w.guards, guard{name: name, live: true})
		w.stmts(s.Body.List)
		w.guards = w.guards[:len(w.guards)-1]
	} else {
		w.stmts(s.Body.List)
	}

	// The guard does not hold on the else path.
	switch els := s.Else.(type) {
	case *ast.BlockStmt:
		w.stmts(els.List)
	case *ast.IfStmt:
		w.onIf(els)
	}
}

func (w *walker) onReturn(ret *ast.ReturnStmt) {
	if len(ret.Results) == 0 {
		return
	}
	last := ret.Results[len(ret.Results)-1]

	// Guarded propagation: the last result is a guarded error identifier.
	if id, ok := last.(*ast.Ident); ok {
		if w.guarded(id.Name) {
			w.add(Site{
				Kind: SiteGuardedReturn,
				Stmt: ret,
				Err:  id,
				Pos:  w.pos(ret),
			})
		}
		return
	}

	call, ok := last.(*ast.CallExpr)
	if !ok {
		return
	}

	// Never wrap a wrap, never wrap a fresh constructor.
	if w.engine.wraps.isErrorWrap(call) || w.engine.wraps.isErrorConstructor(call) {
		return
	}

	// Direct call propagation: a lone call fills the whole result list.
	if len(ret.Results) == 1 {
		w.add(Site{
			Kind: SiteDirectCall,
			Stmt: ret,
			Call: call,
			Pos:  w.pos(ret),
		})
		return
	}

	// "return x, f()" would run the wrap on the success path too.
	w.rep.Report(
		trcodes.UnsupportedPattern(),
		"tail call mixed with other results is left untouched",
		w.pos(ret),
	)
}

// onAssign matches the safe-index supplement: a single plain index
// expression assigned to a single target. Restricted to functions with a
// sole error result so the guard can return without inventing zero values.
func (w *walker) onAssign(as *ast.AssignStmt) {
	if !w.engine.cfg.SafeIndex || w.fn.resultCount != 1 {
		return
	}
	if len(as.Lhs) != 1 || len(as.Rhs) != 1 {
		return
	}
	if as.Tok != token.DEFINE && as.Tok != token.ASSIGN {
		return
	}

	idx, ok := as.Rhs[0].(*ast.IndexExpr)
	if !ok {
		return
	}
	if !simpleOperand(idx.X) || !simpleOperand(idx.Index) {
		return
	}

	w.add(Site{
		Kind:  SiteIndexAssign,
		Stmt:  as,
		Index: idx,
		Pos:   w.pos(as),
	})
}

func (w *walker) guarded(name string) bool {
	for _, g := range w.guards {
		if g.name == name && g.live {
			return true
		}
	}
	return false
}

// dropGuards retires every guard whose identifier the statement writes to,
// including redeclarations that shadow it. A return after such a write
// propagates a value the guard condition never saw, so it is left alone.
func (w *walker) dropGuards(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		for _, lhs := range s.Lhs {
			w.dropGuardExpr(lhs)
		}

	case *ast.IncDecStmt:
		w.dropGuardExpr(s.X)

	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok {
			return
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, n := range vs.Names {
				w.dropGuard(n.Name)
			}
		}
	}
}

func (w *walker) dropGuardExpr(expr ast.Expr) {
	if id, ok := expr.(*ast.Ident); ok {
		w.dropGuard(id.Name)
	}
}

func (w *walker) dropGuard(name string) {
	for i := range w.guards {
		if w.guards[i].name == name {
			w.guards[i].live = false
		}
	}
}

func (w *walker) add(s Site) {
	w.sites = append(w.sites, s)
}

func (w *walker) pos(n ast.Node) token.Position {
	pos := w.fset.Position(n.Pos())
	pos.Filename = filepath.Base(pos.Filename)
	return pos
}

// nilGuardIdent matches the "e != nil" condition shape, either operand
// order. Compound conditions are conservatively not guards.
func nilGuardIdent(cond ast.Expr) (string, bool) {
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok || bin.Op != token.NEQ {
		return "", false
	}

	if id, ok := guardOperands(bin.X, bin.Y); ok {
		return id, true
	}
	if id, ok := guardOperands(bin.Y, bin.X); ok {
		return id, true
	}

	return "", false
}

func guardOperands(x, y ast.Expr) (string, bool) {
	id, ok := x.(*ast.Ident)
	if !ok || id.Name == "nil" {
		return "", false
	}

	n, ok := y.(*ast.Ident)
	if !ok || n.Name != "nil" {
		return "", false
	}

	return id.Name, true
}

// simpleOperand accepts identifiers and basic literals: operands the
// generated guard may re-evaluate without repeating side effects.
func simpleOperand(expr ast.Expr) bool {
	switch v := expr.(type) {
	case *ast.Ident:
		return v.Name != "nil"
	case *ast.BasicLit:
		return v.Kind == token.INT
	default:
		return false
	}
}
