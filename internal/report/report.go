package report

import (
	"fmt"
	"go/token"
	"io"
	"sync"

	"github.com/Tommy-ASD/tracegen/internal/trcodes"
)

// Reporter collects diagnostics discovered during a rewriting run.
type Reporter struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Diagnostic represents a single diagnostic entry.
type Diagnostic struct {
	Phase   Phase
	Code    trcodes.Code
	Pos     token.Position
	Message string
}

// Phase marks the pipeline stage where a diagnostic was generated.
type Phase int

const (
	phaseInvalid Phase = iota
	PhaseAcquire       // parsing and marker collection
	PhaseIdentify      // site identification over the body
	PhaseRewrite       // replacement sub-tree construction
	PhaseReassemble    // substitution and emission
)

func (p Phase) String() string {
	switch p {
	case PhaseAcquire:
		return "acquire"
	case PhaseIdentify:
		return "identify"
	case PhaseRewrite:
		return "rewrite"
	case PhaseReassemble:
		return "reassemble"
	default:
		return fmt.Sprintf("unknown-phase(%d)", p)
	}
}

// PhaseReporter binds a Reporter to a fixed phase.
// It is used across a pipeline stage to record diagnostics
// without specifying the phase repeatedly.
type PhaseReporter struct {
	parent *Reporter
	phase  Phase
}

// Phase returns a pointer to a phase-bound reporter that automatically
// sets the given phase for all diagnostics produced through it.
func (r *Reporter) Phase(p Phase) *PhaseReporter {
	return &PhaseReporter{parent: r, phase: p}
}

// Report adds a new record to the reporter.
func (r *Reporter) Report(d Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

// Report records a new diagnostic under the bound phase.
func (rp *PhaseReporter) Report(code trcodes.Code, message string, pos token.Position) {
	rp.parent.Report(Diagnostic{
		Phase:   rp.phase,
		Code:    code,
		Message: message,
		Pos:     pos,
	})
}

// Diagnostics returns a snapshot of all collected records.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// HasErrors reports whether any non-informational diagnostic was collected.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if !d.Code.Informational() {
			return true
		}
	}
	return false
}

// Summary writes all collected diagnostics in a compact, human-readable form.
func (r *Reporter) Summary(w io.Writer) {
	for _, d := range r.Diagnostics() {
		fmt.Fprintf(w, "[%s] %s: %s (%s:%d)\n",
			d.Phase,
			d.Code,
			d.Message,
			d.Pos.Filename,
			d.Pos.Line)
	}
}
