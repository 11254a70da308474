package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
	}
}

// RenderOptions tunes table output.
type RenderOptions struct {
	Color bool
	// MaxFiles limits the file table; zero shows every row.
	MaxFiles int
}

// Render writes m to w in the requested format.
func Render(w io.Writer, m PresentationModel, format Format, opts RenderOptions) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to marshal report to YAML: %w", err)
		}
		return enc.Close()
	case FormatTable:
		_, err := io.WriteString(w, renderTables(m, opts))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

type palette struct {
	added, removed, emphasis *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		added:    color.New(color.FgGreen),
		removed:  color.New(color.FgRed),
		emphasis: color.New(color.FgYellow, color.Bold),
	}
	for _, c := range []*color.Color{p.added, p.removed, p.emphasis} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) plus(n int) string {
	return p.added.Sprint("+" + humanize.Comma(int64(n)))
}

func (p palette) minus(n int) string {
	return p.removed.Sprint("-" + humanize.Comma(int64(n)))
}

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	return tw
}

func renderTables(m PresentationModel, opts RenderOptions) string {
	p := newPalette(opts.Color)
	var parts []string

	parts = append(parts, p.emphasis.Sprint(m.Status))

	commits := newTable(m.Title)
	commits.AppendHeader(table.Row{"Message", "Added", "Removed", "Files"})
	for _, c := range m.Commits {
		commits.AppendRow(table.Row{firstLine(c.Message), p.plus(c.Added), p.minus(c.Removed), c.FilesTouched})
	}
	parts = append(parts, commits.Render())

	authors := newTable("Contributor Insights")
	authors.AppendHeader(table.Row{"Author", "Added", "Removed"})
	for _, a := range m.Authors {
		authors.AppendRow(table.Row{a.AuthorName, p.plus(a.Added), p.minus(a.Removed)})
	}
	parts = append(parts, authors.Render())

	files := newTable("Files")
	files.AppendHeader(table.Row{"File", "Added", "Removed", "Language"})
	rows := m.Files
	if opts.MaxFiles > 0 && len(rows) > opts.MaxFiles {
		rows = rows[:opts.MaxFiles]
	}
	for _, r := range rows {
		name := r.FileName
		if r.HighImpact {
			name = p.emphasis.Sprint("! " + name)
		}
		files.AppendRow(table.Row{name, p.plus(r.Added), p.minus(r.Removed), r.Language})
	}
	files.AppendFooter(table.Row{
		fmt.Sprintf("Total: %d files", len(m.Files)),
		p.plus(m.TotalAdded),
		p.minus(m.TotalRemoved),
		fmt.Sprintf("median %.1f / p90 %.1f", m.Distribution.MedianChurn, m.Distribution.P90Churn),
	})
	parts = append(parts, files.Render())

	if len(m.Languages) > 0 {
		langs := newTable("Languages")
		langs.AppendHeader(table.Row{"Language", "Files", "Added", "Removed"})
		for _, l := range m.Languages {
			langs.AppendRow(table.Row{l.Language, l.Files, p.plus(l.Added), p.minus(l.Removed)})
		}
		parts = append(parts, langs.Render())
	}

	return strings.Join(parts, "\n\n") + "\n"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
