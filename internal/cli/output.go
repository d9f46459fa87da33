package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/spirvc/internal/config"
)

var (
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printError writes err with a styled prefix. Multi-line engine
// diagnostics are indented under it.
func printError(w io.Writer, err error) {
	lines := strings.Split(strings.TrimRight(err.Error(), "\n"), "\n")
	_, _ = fmt.Fprintf(w, "%s %s\n", errorStyle.Render("error:"), lines[0])
	for _, l := range lines[1:] {
		_, _ = fmt.Fprintf(w, "  %s\n", dimStyle.Render(l))
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render writes v in the configured structured format, or calls text for
// the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// extOf returns the last extension of path.
func extOf(path string) string {
	return filepath.Ext(path)
}

// languageExts are dropped before ".spv" is appended to an output name.
var languageExts = map[string]bool{".wgsl": true, ".glsl": true, ".hlsl": true}

// outputPath derives the SPIR-V file name for input: "blit.frag" becomes
// "blit.frag.spv" and "tri.vert.wgsl" becomes "tri.vert.spv". A non-empty
// dir replaces the input's directory.
func outputPath(input, dir string) string {
	base := input
	if ext := extOf(base); languageExts[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}
	out := base + ".spv"
	if dir != "" {
		out = filepath.Join(dir, filepath.Base(out))
	}
	return out
}
