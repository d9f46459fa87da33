package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gogpu/spirvc/internal/spvinfo"
)

type inspected struct {
	File   string          `json:"file" yaml:"file"`
	Size   int             `json:"size" yaml:"size"`
	Module *spvinfo.Module `json:"module" yaml:"module"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var disasm bool

	cmd := &cobra.Command{
		Use:   "inspect <file.spv>...",
		Short: "Show the header, capabilities and entry points of SPIR-V binaries",
		Long: `Inspect SPIR-V binaries: version, generator, capabilities, memory
model and entry points with their execution modes. --disasm prints a full
instruction listing instead.`,
		Example: `  spirvc inspect build/blit.frag.spv
  spirvc inspect -f json build/*.spv
  spirvc inspect --disasm tri.vert.spv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			out := cmd.OutOrStdout()

			if disasm {
				for _, path := range args {
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					if len(args) > 1 {
						_, _ = fmt.Fprintf(out, "; %s\n", path)
					}
					if err := spvinfo.Disassemble(out, data); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
				}
				return nil
			}

			results := make([]inspected, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				m, err := spvinfo.Parse(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results = append(results, inspected{File: path, Size: len(data), Module: m})
			}

			return render(out, a.cfg.Output, results, func(w io.Writer) error {
				for i, r := range results {
					if i > 0 {
						_, _ = fmt.Fprintln(w)
					}
					inspectTable(w, r)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&disasm, "disasm", false, "Print a disassembly listing")

	return cmd
}

func inspectTable(w io.Writer, r inspected) {
	m := r.Module

	t := newTable(w)
	t.SetTitle(r.File)
	t.AppendRows([]table.Row{
		{"Size", fmt.Sprintf("%d bytes", r.Size)},
		{"Version", m.Version.String()},
		{"Generator", fmt.Sprintf("%s (0x%08X)", m.GeneratorName, m.Generator)},
		{"Bound", m.Bound},
		{"Capabilities", strings.Join(m.Capabilities, ", ")},
		{"Memory model", strings.TrimSpace(m.Addressing + " " + m.Memory)},
		{"Functions", m.Functions},
		{"Instructions", m.Instructions},
	})
	if len(m.Extensions) > 0 {
		t.AppendRow(table.Row{"Extensions", strings.Join(m.Extensions, ", ")})
	}
	if len(m.ExtInstImports) > 0 {
		t.AppendRow(table.Row{"Imports", strings.Join(m.ExtInstImports, ", ")})
	}
	t.Render()

	if len(m.EntryPoints) == 0 {
		return
	}
	ep := newTable(w)
	ep.AppendHeader(table.Row{"Entry point", "Model", "Modes", "Interface"})
	for _, e := range m.EntryPoints {
		modes := strings.Join(e.Modes, ", ")
		if e.LocalSize != [3]uint32{} {
			modes = fmt.Sprintf("%s (%d, %d, %d)", modes, e.LocalSize[0], e.LocalSize[1], e.LocalSize[2])
		}
		ep.AppendRow(table.Row{e.Name, e.Model, modes, len(e.Interface)})
	}
	ep.Render()
}
