// Package console renders analysis summaries, artifact previews and run
// history for the terminal.
package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/shell/pipeline"
)

// PreviewLimit is how many characters of an artifact a preview shows.
const PreviewLimit = 500

// =============================================================================
// Styles
// =============================================================================

var (
	accent  = lipgloss.Color("#8BC34A")
	danger  = lipgloss.Color("#e53935")
	caution = lipgloss.Color("#FFC107")
	muted   = lipgloss.Color("#7a8599")
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	section lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(accent),
		label:   r.NewStyle().Width(18).Foreground(muted),
		value:   r.NewStyle(),
		ok:      r.NewStyle().Foreground(accent),
		fail:    r.NewStyle().Foreground(danger),
		warn:    r.NewStyle().Foreground(caution),
		dim:     r.NewStyle().Foreground(muted),
		section: r.NewStyle().Bold(true).MarginTop(1),
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes human-readable output.
type Printer struct {
	w        io.Writer
	styles   styles
	markdown *glamour.TermRenderer
}

// New creates a Printer. When color is false all output is plain text.
func New(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	style := glamour.WithAutoStyle()
	if !color {
		r.SetColorProfile(termenv.Ascii)
		style = glamour.WithStylePath("notty")
	}

	md, _ := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))

	return &Printer{w: w, styles: newStyles(r), markdown: md}
}

// Truncate shortens content to limit characters, appending "..." when cut.
func Truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

// Banner prints the tool heading.
func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.w, p.styles.title.Render("deploysmith "+version))
}

// Profile prints the analysis summary of a repository.
func (p *Printer) Profile(source string, profile *domain.RepositoryProfile) {
	fmt.Fprintln(p.w, p.styles.section.Render("Analysis of "+source))
	p.field("Languages", orNone(profile.Languages))
	p.field("Package managers", orNone(profile.PackageManagerFiles()))
	p.field("Entry points", orNone(profile.EntryPoints))
	p.field("Web application", fmt.Sprintf("%t", profile.IsWebApp))
	p.field("Default port", fmt.Sprintf("%d", profile.DefaultPort))
	p.field("App name", domain.AppName(profile))

	if profile.Compose != nil && len(profile.Compose.Services) > 0 {
		names := make([]string, 0, len(profile.Compose.Services))
		for _, svc := range profile.Compose.Services {
			names = append(names, svc.Name)
		}
		p.field("Compose services", strings.Join(names, ", "))
	}

	markers := make([]string, 0, len(profile.Structure))
	for name, present := range profile.Structure {
		if present {
			markers = append(markers, name)
		}
	}
	sort.Strings(markers)
	p.field("Files", orNone(markers))

	for _, w := range profile.Warnings {
		fmt.Fprintln(p.w, p.styles.warn.Render(fmt.Sprintf("  warning: %s: %s", w.Source, w.Message)))
	}
}

// Preview prints the first PreviewLimit characters of an artifact.
func (p *Printer) Preview(name string, kind domain.ArtifactKind, content string) {
	fmt.Fprintln(p.w, p.styles.section.Render("Preview of "+name))

	body := Truncate(content, PreviewLimit)
	if p.markdown != nil {
		lang := "yaml"
		if kind == domain.ArtifactContainerFile {
			lang = "dockerfile"
		}
		rendered, err := p.markdown.Render("```" + lang + "\n" + body + "\n```\n")
		if err == nil {
			fmt.Fprint(p.w, rendered)
			return
		}
	}
	fmt.Fprintln(p.w, body)
}

// Result prints the outcome of a generation run.
func (p *Printer) Result(result *pipeline.Result) {
	for _, a := range result.Artifacts {
		if a.Failed() {
			fmt.Fprintln(p.w, p.styles.fail.Render(fmt.Sprintf("✗ %s: %v", a.Kind, a.Err)))
			continue
		}
		for _, f := range a.Files {
			fmt.Fprintln(p.w, p.styles.ok.Render(fmt.Sprintf("✓ %s saved to %s", f.Name, f.Path)))
			p.findings(f.Findings)
		}
		switch {
		case a.Drift == nil:
		case a.Drift.Identical():
			fmt.Fprintln(p.w, p.styles.dim.Render("  identical to existing Dockerfile"))
		default:
			fmt.Fprintln(p.w, p.styles.dim.Render(fmt.Sprintf("  drift against existing Dockerfile: +%d -%d =%d",
				a.Drift.Added, a.Drift.Removed, a.Drift.Unchanged)))
		}
		if a.Build != nil {
			fmt.Fprintln(p.w, p.styles.dim.Render(fmt.Sprintf("  verified build %s in %s", a.Build.Tag, a.Build.Duration.Round(time.Millisecond))))
		}
	}

	if result.Run != nil {
		fmt.Fprintln(p.w, p.styles.section.Render(fmt.Sprintf("Run %s %s", result.Run.ID, p.status(result.Run.Status, 0))))
	}
}

// Runs prints a run history table.
func (p *Printer) Runs(runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.w, p.styles.dim.Render("no runs recorded"))
		return
	}
	for _, r := range runs {
		fmt.Fprintf(p.w, "%-16s  %s  %s  %s\n",
			r.ID, p.status(r.Status, 9), r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Source)
	}
}

// RunDetail prints one run and its artifacts.
func (p *Printer) RunDetail(run *domain.Run, artifacts []domain.ArtifactRecord) {
	fmt.Fprintln(p.w, p.styles.title.Render("Run "+run.ID))
	p.field("Source", run.Source)
	if run.Branch != "" {
		p.field("Branch", run.Branch)
	}
	p.field("Status", p.status(run.Status, 0))
	p.field("Created", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if run.Error != "" {
		p.field("Error", run.Error)
	}

	for _, a := range artifacts {
		switch {
		case a.Error != "":
			fmt.Fprintln(p.w, p.styles.fail.Render(fmt.Sprintf("✗ %s (%s): %s", a.Name, a.Kind, a.Error)))
		case a.Path != "":
			fmt.Fprintln(p.w, p.styles.ok.Render(fmt.Sprintf("✓ %s (%s) %s", a.Name, a.Kind, a.Path)))
		default:
			fmt.Fprintln(p.w, p.styles.ok.Render(fmt.Sprintf("✓ %s (%s)", a.Name, a.Kind)))
		}
		p.findings(a.Findings)
	}
}

// Check prints one doctor check line.
func (p *Printer) Check(name string, err error) {
	if err != nil {
		fmt.Fprintln(p.w, p.styles.fail.Render(fmt.Sprintf("✗ %s: %v", name, err)))
		return
	}
	fmt.Fprintln(p.w, p.styles.ok.Render("✓ "+name))
}

// =============================================================================
// Helpers
// =============================================================================

func (p *Printer) field(label, value string) {
	fmt.Fprintln(p.w, "  "+p.styles.label.Render(label+":")+p.styles.value.Render(value))
}

func (p *Printer) findings(findings []domain.Finding) {
	for _, f := range findings {
		style := p.styles.dim
		switch f.Severity {
		case domain.SeverityError:
			style = p.styles.fail
		case domain.SeverityWarning:
			style = p.styles.warn
		}
		fmt.Fprintln(p.w, style.Render(fmt.Sprintf("    %s [%s] %s", f.Severity, f.Rule, f.Message)))
	}
}

// status colours a run status, padded to width before styling.
func (p *Printer) status(s domain.RunStatus, width int) string {
	text := fmt.Sprintf("%-*s", width, s)
	switch s {
	case domain.RunSucceeded:
		return p.styles.ok.Render(text)
	case domain.RunFailed:
		return p.styles.fail.Render(text)
	case domain.RunPartial:
		return p.styles.warn.Render(text)
	}
	return text
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
