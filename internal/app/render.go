package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/pacforge/internal/orchestrator"
	"github.com/specialistvlad/pacforge/internal/planner"
)

// WritePlan prints the resolved packages and the batch sequence.
func WritePlan(w io.Writer, p *Pipeline) {
	fmt.Fprintln(w, ":: Packages")
	for _, n := range p.Graph.Nodes() {
		status := "install"
		if n.Satisfied {
			status = "installed"
		}
		fmt.Fprintf(w, "   %-40s %-10s %s\n", n.String(), status, n.Reason())
	}

	if p.Plan.Empty() {
		fmt.Fprintln(w, ":: Nothing to do")
		return
	}
	fmt.Fprintln(w, ":: Batches")
	for _, b := range p.Plan.Batches {
		line := "   " + b.String()
		if b.Kind == planner.SourceBatch && len(b.Nodes) > 1 {
			line += " (" + strings.Join(b.Names(), " ") + ")"
		}
		if len(b.DependsOn) > 0 {
			line += fmt.Sprintf(" after %v", b.DependsOn)
		}
		fmt.Fprintln(w, line)
	}
	if len(p.Plan.BuildOnly) > 0 {
		fmt.Fprintf(w, ":: Build-only: %s\n", strings.Join(p.Plan.BuildOnly, " "))
	}
}

// WriteResult prints a run summary.
func WriteResult(w io.Writer, r *orchestrator.Result) {
	if r == nil {
		return
	}
	for _, label := range r.Succeeded {
		fmt.Fprintf(w, "   installed  %s\n", label)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "   failed     %s: %s (%v)\n", f.Label, f.Kind, f.Err)
	}
	for _, label := range r.Pruned {
		fmt.Fprintf(w, "   skipped    %s\n", label)
	}
	for _, label := range r.NotRun {
		fmt.Fprintf(w, "   not run    %s\n", label)
	}
	if r.CleanupErr != nil {
		fmt.Fprintf(w, "   cleanup    %v\n", r.CleanupErr)
	}
}
