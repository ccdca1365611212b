package rewrite

import (
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"strconv"
	"strings"
	"unicode/utf8"
)

// rewriteSites builds a replacement statement list for every site. The
// returned map keys the original statements; originals are shared into
// replacements where they survive unchanged, never mutated.
func (e *Engine) rewriteSites(fset *token.FileSet, fn *Function, sites []Site) map[ast.Stmt][]ast.Stmt {
	names := newNamer(fn.Decl)
	repl := make(map[ast.Stmt][]ast.Stmt, len(sites))

	for _, site := range sites {
		switch site.Kind {
		case SiteGuardedReturn:
			repl[site.Stmt] = []ast.Stmt{e.rewriteGuardedReturn(fn, site)}
		case SiteDirectCall:
			repl[site.Stmt] = e.rewriteDirectCall(fn, site, names)
		case SiteIndexAssign:
			repl[site.Stmt] = e.rewriteIndexAssign(fset, fn, site)
		}
	}

	return repl
}

// rewriteGuardedReturn turns "return ..., e" into "return ..., Wrap(e, ...)".
// All results but the last are shared with the original.
func (e *Engine) rewriteGuardedReturn(fn *Function, site Site) ast.Stmt {
	ret := site.Stmt.(*ast.ReturnStmt)

	results := make([]ast.Expr, len(ret.Results))
	copy(results, ret.Results)
	results[len(results)-1] = e.wrapCall(ast.NewIdent(site.Err.Name), fn, site.Pos)

	return &ast.ReturnStmt{Results: results}
}

// rewriteDirectCall turns "return f(...)" into a capture-guard-return
// sequence. The call expression itself is shared, so argument evaluation
// is untouched.
func (e *Engine) rewriteDirectCall(fn *Function, site Site, names *namer) []ast.Stmt {
	errName := names.errName(fn.Decl.Name.Name)
	valNames := make([]string, fn.resultCount-1)
	for i := range valNames {
		valNames[i] = names.valName(i)
	}

	lhs := make([]ast.Expr, 0, fn.resultCount)
	for _, name := range valNames {
		lhs = append(lhs, ast.NewIdent(name))
	}
	lhs = append(lhs, ast.NewIdent(errName))

	failResults := make([]ast.Expr, 0, fn.resultCount)
	passResults := make([]ast.Expr, 0, fn.resultCount)
	for _, name := range valNames {
		failResults = append(failResults, ast.NewIdent(name))
		passResults = append(passResults, ast.NewIdent(name))
	}
	failResults = append(failResults, e.wrapCall(ast.NewIdent(errName), fn, site.Pos))
	passResults = append(passResults, ast.NewIdent(errName))

	return []ast.Stmt{
		&ast.AssignStmt{
			Lhs: lhs,
			Tok: token.DEFINE,
			Rhs: []ast.Expr{site.Call},
		},
		&ast.IfStmt{
			Cond: &ast.BinaryExpr{
				X:  ast.NewIdent(errName),
				Op: token.NEQ,
				Y:  ast.NewIdent("nil"),
			},
			Body: &ast.BlockStmt{List: []ast.Stmt{
				&ast.ReturnStmt{Results: failResults},
			}},
		},
		&ast.ReturnStmt{Results: passResults},
	}
}

// rewriteIndexAssign guards "v := xs[i]" with a bounds check returning a
// constructed contextual error. The original assignment is kept as-is
// after the guard.
func (e *Engine) rewriteIndexAssign(fset *token.FileSet, fn *Function, site Site) []ast.Stmt {
	idx := site.Index

	check := &ast.BinaryExpr{
		X:  cloneOperand(idx.Index),
		Op: token.GEQ,
		Y: &ast.CallExpr{
			Fun:  ast.NewIdent("len"),
			Args: []ast.Expr{cloneOperand(idx.X)},
		},
	}

	var cond ast.Expr = check
	if _, isLit := idx.Index.(*ast.BasicLit); !isLit {
		cond = &ast.BinaryExpr{
			X: &ast.BinaryExpr{
				X:  cloneOperand(idx.Index),
				Op: token.LSS,
				Y:  &ast.BasicLit{Kind: token.INT, Value: "0"},
			},
			Op: token.LOR,
			Y:  check,
		}
	}

	msg := "index out of range: " + exprText(fset, idx)
	guard := &ast.IfStmt{
		Cond: cond,
		Body: &ast.BlockStmt{List: []ast.Stmt{
			&ast.ReturnStmt{Results: []ast.Expr{e.newCall(msg, fn, site.Pos)}},
		}},
	}

	return []ast.Stmt{guard, site.Stmt}
}

// wrapCall builds "ctx.Wrap(err, "fn", "file.go", line)" with the context
// metadata captured at rewrite time as literals.
func (e *Engine) wrapCall(err ast.Expr, fn *Function, pos token.Position) *ast.CallExpr {
	args := append([]ast.Expr{err}, e.contextArgs(fn, pos)...)
	return e.contextCall(e.cfg.Wrap.Name, args)
}

// newCall builds "ctx.New("msg", "fn", "file.go", line)".
func (e *Engine) newCall(msg string, fn *Function, pos token.Position) *ast.CallExpr {
	args := append([]ast.Expr{strLit(msg)}, e.contextArgs(fn, pos)...)
	return e.contextCall(e.cfg.New.Name, args)
}

func (e *Engine) contextCall(name string, args []ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(e.cfg.ContextPackageName()),
			Sel: ast.NewIdent(name),
		},
		Args: args,
	}
}

func (e *Engine) contextArgs(fn *Function, pos token.Position) []ast.Expr {
	return []ast.Expr{
		strLit(fn.Name),
		strLit(pos.Filename),
		intLit(pos.Line),
	}
}

func strLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func intLit(n int) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(n)}
}

func cloneOperand(expr ast.Expr) ast.Expr {
	switch v := expr.(type) {
	case *ast.Ident:
		return ast.NewIdent(v.Name)
	case *ast.BasicLit:
		return &ast.BasicLit{Kind: v.Kind, Value: v.Value}
	default:
		// simpleOperand admits nothing else.
		return expr
	}
}

func exprText(fset *token.FileSet, expr ast.Expr) string {
	var b strings.Builder
	_ = printer.Fprint(&b, fset, expr)
	return b.String()
}

// namer invents identifiers that do not collide with anything already
// spelled inside the function.
type namer struct {
	used map[string]bool
}

func newNamer(decl *ast.FuncDecl) *namer {
	used := make(map[string]bool)
	ast.Inspect(decl, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			used[id.Name] = true
		}
		return true
	})

	return &namer{used: used}
}

// errName prefers "err", then errFuncName, errFuncName2, ...
func (n *namer) errName(funcName string) string {
	if !n.used["err"] {
		n.used["err"] = true
		return "err"
	}

	return n.pick("err" + toCamel(funcName))
}

func (n *namer) valName(i int) string {
	return n.pick(fmt.Sprintf("v%d", i))
}

func (n *namer) pick(base string) string {
	if !n.used[base] {
		n.used[base] = true
		return base
	}

	for i := 2; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
}

func toCamel(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}
