package rewrite

import (
	"bytes"
	"embed"
	"go/format"
	"strings"
	"testing"

	"github.com/Tommy-ASD/tracegen/internal/gencfg"
	"github.com/Tommy-ASD/tracegen/internal/report"
	"github.com/Tommy-ASD/tracegen/internal/trcodes"
)

//go:embed testdata
var caseFiles embed.FS

func TestRewriteCases(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		safeIndex bool
	}{
		{
			name: "guarded propagation, manual wrap untouched",
			file: "case_guarded.go",
		},
		{
			name: "direct call propagation",
			file: "case_direct.go",
		},
		{
			name: "guarded propagation in loop, closure untouched",
			file: "case_nested.go",
		},
		{
			name: "method with multiple results",
			file: "case_method_multi.go",
		},
		{
			name:      "safe index guard",
			file:      "case_safe_index.go",
			safeIndex: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := caseFiles.ReadFile("testdata/cases/" + tt.file)
			if err != nil {
				t.Fatalf("read case file %s: %s", tt.file, err)
			}
			golden, err := caseFiles.ReadFile("testdata/golden/" + tt.file + ".golden")
			if err != nil {
				t.Fatalf("read golden file for %s: %s", tt.file, err)
			}

			cfg := gencfg.Default()
			cfg.SafeIndex = tt.safeIndex

			var rep report.Reporter
			res, err := New(cfg, &rep).RewriteFile(tt.file, src)
			if err != nil {
				t.Fatalf("rewrite %s: %s", tt.file, err)
			}

			if !res.Changed {
				t.Fatal("expected the file to be rewritten")
			}
			if rep.HasErrors() {
				var b strings.Builder
				rep.Summary(&b)
				t.Fatalf("unexpected diagnostics:\n%s", b.String())
			}

			want := normalize(t, golden)
			got := normalize(t, res.Output)
			if got != want {
				t.Fatalf("output mismatch for %s\n--- want ---\n%s\n--- got ---\n%s", tt.file, want, got)
			}
		})
	}
}

func TestIdentityWithoutSites(t *testing.T) {
	src, err := caseFiles.ReadFile("testdata/cases/case_identity.go")
	if err != nil {
		t.Fatalf("read case file: %s", err)
	}

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("case_identity.go", src)
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("a site-free function must pass through unchanged")
	}
	if res.Functions != 1 {
		t.Fatalf("expected 1 marked function, got %d", res.Functions)
	}
	if res.Sites != 0 {
		t.Fatalf("expected 0 sites, got %d", res.Sites)
	}
	if !bytes.Equal(res.Output, src) {
		t.Fatal("output must be byte-identical to the input")
	}
}

func TestDeterminism(t *testing.T) {
	src, err := caseFiles.ReadFile("testdata/cases/case_guarded.go")
	if err != nil {
		t.Fatalf("read case file: %s", err)
	}

	var first []byte
	for i := 0; i < 3; i++ {
		var rep report.Reporter
		res, err := New(gencfg.Default(), &rep).RewriteFile("case_guarded.go", src)
		if err != nil {
			t.Fatalf("rewrite attempt %d: %s", i, err)
		}
		if first == nil {
			first = res.Output
			continue
		}
		if !bytes.Equal(first, res.Output) {
			t.Fatalf("attempt %d produced different output", i)
		}
	}
}

func TestAlreadyWrappedNotRematched(t *testing.T) {
	const src = `package cases

import "github.com/Tommy-ASD/traceback"

func g() error { return nil }

//traceback:trace
func f() error {
	err := g()
	if err != nil {
		return traceback.Wrap(err, "f", "wrapped.go", 10)
	}
	return nil
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("wrapped.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("an already wrapped return must not be wrapped again")
	}
	if res.Sites != 0 {
		t.Fatalf("expected 0 sites, got %d", res.Sites)
	}
}

func TestReassignedGuardPassesThrough(t *testing.T) {
	const src = `package cases

func g() error { return nil }

//traceback:trace
func f() error {
	err := g()
	if err != nil {
		err = nil
		return err
	}
	return nil
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("reassigned.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("a guard reassigned before the return must pass through")
	}
	if res.Sites != 0 {
		t.Fatalf("expected 0 sites, got %d", res.Sites)
	}
}

func TestEmitNoBlankBeforeClosingBrace(t *testing.T) {
	files := []struct {
		name      string
		safeIndex bool
	}{
		{name: "case_guarded.go"},
		{name: "case_direct.go"},
		{name: "case_nested.go"},
		{name: "case_method_multi.go"},
		{name: "case_safe_index.go", safeIndex: true},
	}

	for _, f := range files {
		src, err := caseFiles.ReadFile("testdata/cases/" + f.name)
		if err != nil {
			t.Fatalf("read case file %s: %s", f.name, err)
		}

		cfg := gencfg.Default()
		cfg.SafeIndex = f.safeIndex

		var rep report.Reporter
		res, err := New(cfg, &rep).RewriteFile(f.name, src)
		if err != nil {
			t.Fatalf("rewrite %s: %s", f.name, err)
		}

		lines := strings.Split(string(res.Output), "\n")
		for i := 0; i+1 < len(lines); i++ {
			if strings.TrimSpace(lines[i]) != "" {
				continue
			}
			if strings.HasPrefix(strings.TrimLeft(lines[i+1], "\t "), "}") {
				t.Errorf("%s: blank line before closing brace at output line %d", f.name, i+2)
			}
		}
	}
}

func TestMarkerOnTypeDecl(t *testing.T) {
	const src = `package cases

//traceback:trace
type broken struct {
	name string
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("broken.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("no code must be emitted for a misplaced marker")
	}
	requireDiagnostic(t, &rep, trcodes.TRB000MalformedInput, 3)
}

func TestDuplicateMarker(t *testing.T) {
	const src = `package cases

//traceback:trace
//traceback:trace
func f() error {
	return nil
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("dup.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("a doubly marked function must be skipped")
	}
	requireDiagnostic(t, &rep, trcodes.TRB020DuplicateMarker, 4)
}

func TestMarkerOnNonFallibleFunction(t *testing.T) {
	const src = `package cases

//traceback:trace
func count() int {
	return 42
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("count.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("a function without an error result must be skipped")
	}
	requireDiagnostic(t, &rep, trcodes.TRB010NotFallibleFunction, 3)
}

func TestMixedTailCallNotice(t *testing.T) {
	const src = `package cases

func h() error { return nil }

//traceback:trace
func f() (int, error) {
	return 1, h()
}
`

	var rep report.Reporter
	res, err := New(gencfg.Default(), &rep).RewriteFile("mixed.go", []byte(src))
	if err != nil {
		t.Fatalf("rewrite: %s", err)
	}

	if res.Changed {
		t.Fatal("a tail call mixed with other results must pass through")
	}
	requireDiagnostic(t, &rep, trcodes.TRB030UnsupportedPattern, 7)
	if rep.HasErrors() {
		t.Fatal("the pass-through notice must not count as an error")
	}
}

func requireDiagnostic(t *testing.T, rep *report.Reporter, code trcodes.Code, line int) {
	t.Helper()

	for _, d := range rep.Diagnostics() {
		if d.Code == code && d.Pos.Line == line {
			return
		}
	}

	var b strings.Builder
	rep.Summary(&b)
	t.Fatalf("diagnostic %s at line %d was not reported, got:\n%s", code, line, b.String())
}

// normalize formats the source and strips blank lines and indentation:
// synthesized nodes carry no positions and may print with different
// vertical spacing than a hand-written golden file.
func normalize(t *testing.T, src []byte) string {
	t.Helper()

	formatted, err := format.Source(src)
	if err != nil {
		t.Fatalf("format source: %s\n%s", err, src)
	}

	var lines []string
	for _, line := range strings.Split(string(formatted), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
