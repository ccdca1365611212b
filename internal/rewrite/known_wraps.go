package rewrite

import (
	"go/ast"
	"strings"

	"github.com/Tommy-ASD/tracegen/internal/gencfg"
)

type packagedFunc struct {
	pkgName string
	name    string
}

// knownWrapChecker recognizes calls that already annotate an error, so the
// matcher never wraps a wrap. The check is syntactic: the callee is matched
// by package qualifier and name, without resolving imports.
type knownWrapChecker struct {
	wraps map[packagedFunc]bool
	ctors map[packagedFunc]bool
}

func newKnownWrapChecker(cfg gencfg.Config) *knownWrapChecker {
	wraps := map[packagedFunc]bool{
		// fmt.Errorf counts only with a %w verb, checked separately.

		// Were widely used before. I am sure they still are, at least in older codebases.
		{pkgName: "errors", name: "Wrap"}:         true,
		{pkgName: "errors", name: "Wrapf"}:        true,
		{pkgName: "errors", name: "WithMessage"}:  true,
		{pkgName: "errors", name: "WithMessagef"}: true,

		{pkgName: "xerrors", name: "Errorf"}: true,
	}
	wraps[packagedFunc{
		pkgName: aliasOrBase(cfg.ImportAlias, cfg.Wrap.Package),
		name:    cfg.Wrap.Name,
	}] = true

	ctors := map[packagedFunc]bool{
		{pkgName: "errors", name: "New"}:  true,
		{pkgName: "errors", name: "Join"}: true,
	}
	ctors[packagedFunc{
		pkgName: aliasOrBase(cfg.ImportAlias, cfg.New.Package),
		name:    cfg.New.Name,
	}] = true

	return &knownWrapChecker{wraps: wraps, ctors: ctors}
}

func aliasOrBase(alias, pkgPath string) string {
	if alias != "" {
		return alias
	}
	if i := strings.LastIndex(pkgPath, "/"); i >= 0 {
		return pkgPath[i+1:]
	}
	return pkgPath
}

// isErrorWrap checks if the given call expression annotates an error value.
func (c *knownWrapChecker) isErrorWrap(call *ast.CallExpr) bool {
	pf, ok := calleeName(call)
	if !ok {
		return false
	}

	if pf.pkgName == "fmt" && pf.name == "Errorf" {
		return errorfWrapsArg(call)
	}

	return c.wraps[pf]
}

// isErrorConstructor checks if the given call builds a fresh error value.
// Constructor calls in tail position are not propagation of a callee
// failure, so they are never instrumented.
func (c *knownWrapChecker) isErrorConstructor(call *ast.CallExpr) bool {
	pf, ok := calleeName(call)
	if !ok {
		return false
	}

	if pf.pkgName == "fmt" && pf.name == "Errorf" {
		return !errorfWrapsArg(call)
	}

	return c.ctors[pf]
}

func calleeName(call *ast.CallExpr) (packagedFunc, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		// Only package-qualified callees can be matched without type
		// information.
		return packagedFunc{}, false
	}

	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return packagedFunc{}, false
	}

	return packagedFunc{pkgName: id.Name, name: sel.Sel.Name}, true
}

// errorfWrapsArg checks the fmt.Errorf dual role: with a %w verb in the
// format literal it wraps, otherwise it constructs.
func errorfWrapsArg(call *ast.CallExpr) bool {
	if len(call.Args) == 0 {
		return false
	}

	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok {
		return false
	}

	return strings.Contains(lit.Value, "%w")
}
