package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/spirvc"
)

// stdoutName selects standard output for -o.
const stdoutName = "-"

var errTerminalOutput = errors.New("refusing to write SPIR-V to a terminal; redirect stdout or use -o <file>")

type compileOptions struct {
	out    string
	outDir string
	stage  string
	jobs   int
}

// target is one input and where its binary goes.
type target struct {
	Input  string       `json:"input" yaml:"input"`
	Stage  spirvc.Stage `json:"-" yaml:"-"`
	Output string       `json:"output" yaml:"output"`
}

// outcome is the report row for one target.
type outcome struct {
	target `yaml:",inline"`
	StageName string `json:"stage" yaml:"stage"`
	Bytes     int    `json:"bytes" yaml:"bytes"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	err       error
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <input>...",
		Short: "Compile shader sources to SPIR-V",
		Long: `Compile one or more shader sources to SPIR-V.

The stage comes from --stage or from the file name (.vert, .geom, .frag,
.comp and friends, optionally followed by .glsl or .wgsl). Each binary is
written next to its input as <name>.spv unless -o or --out-dir says
otherwise.`,
		Example: `  spirvc compile shaders/blit.frag
  spirvc compile -o tri.spv tri.vert.wgsl
  spirvc compile --out-dir build/shaders shaders/*.comp
  spirvc compile -o - --stage frag blit.glsl > blit.spv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file, - for stdout (single input only)")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "Output directory")
	cmd.Flags().StringVarP(&opts.stage, "stage", "S", "", "Shader stage for every input (vert|geom|frag|comp)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Inputs read and written in parallel")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *compileOptions, args []string) error {
	a := appFrom(cmd)
	stdout := cmd.OutOrStdout()

	if opts.out != "" && len(args) > 1 {
		return errors.New("-o takes a single input; use --out-dir for several")
	}
	if opts.out != "" && opts.outDir != "" {
		return errors.New("-o and --out-dir are mutually exclusive")
	}
	if opts.out == stdoutName && isTerminal(stdout) {
		return errTerminalOutput
	}

	targets, err := planTargets(args, opts)
	if err != nil {
		return err
	}

	c, err := newCompiler(a, args, nil)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	results := compileAll(cmd.Context(), c, targets, opts.jobs, stdout)

	// The binary owns stdout.
	report := stdout
	if opts.out == stdoutName {
		report = cmd.ErrOrStderr()
	}
	if err := render(report, a.cfg.Output, results, func(w io.Writer) error {
		return compileTable(w, results)
	}); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			a.log.Debug("compile failed", zap.String("input", r.Input), zap.Error(r.err))
			printError(cmd.ErrOrStderr(), r.err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d shaders failed to compile", failed, len(results))
	}
	return nil
}

// planTargets fixes the stage and output of every input before anything
// is compiled.
func planTargets(args []string, opts *compileOptions) ([]target, error) {
	var forced *spirvc.Stage
	if opts.stage != "" {
		s, err := spirvc.ParseStage(opts.stage)
		if err != nil {
			return nil, err
		}
		forced = &s
	}

	targets := make([]target, 0, len(args))
	seen := make(map[string]string, len(args))
	for _, in := range args {
		t := target{Input: in}
		if forced != nil {
			t.Stage = *forced
		} else {
			s, err := spirvc.StageFromPath(in)
			if err != nil {
				return nil, fmt.Errorf("%w (use --stage)", err)
			}
			t.Stage = s
		}

		switch {
		case opts.out != "":
			t.Output = opts.out
		default:
			t.Output = outputPath(in, opts.outDir)
		}
		if prev, ok := seen[t.Output]; ok {
			return nil, fmt.Errorf("inputs %s and %s both write %s", prev, in, t.Output)
		}
		seen[t.Output] = in
		targets = append(targets, t)
	}
	return targets, nil
}

// compileAll compiles every target. Compilation itself is serialized by
// the context; reading sources and writing binaries overlap. Failures are
// collected per target rather than stopping the batch.
func compileAll(ctx context.Context, c *spirvc.Compiler, targets []target, jobs int, stdout io.Writer) []outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs < 1 {
		jobs = 1
	}

	results := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, t := range targets {
		g.Go(func() error {
			r := outcome{target: t, StageName: t.Stage.String()}
			if err := gctx.Err(); err != nil {
				r.err = err
			} else {
				r.Bytes, r.err = compileOne(c, t, stdout)
			}
			if r.err != nil {
				r.Error = r.err.Error()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func compileOne(c *spirvc.Compiler, t target, stdout io.Writer) (int, error) {
	res, err := c.CompileFromLocation(t.Input, t.Stage)
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Release() }()

	code, err := res.Bytes()
	if err != nil {
		return 0, err
	}

	if t.Output == stdoutName {
		if _, err := stdout.Write(code); err != nil {
			return 0, fmt.Errorf("write stdout: %w", err)
		}
		return len(code), nil
	}
	if dir := filepath.Dir(t.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	if err := os.WriteFile(t.Output, code, 0o644); err != nil {
		return 0, err
	}
	return len(code), nil
}

func compileTable(w io.Writer, results []outcome) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"Input", "Stage", "Output", "Bytes", "Result"})
	ok := 0
	for _, r := range results {
		status := okStyle.Render("ok")
		if r.err != nil {
			status = errorStyle.Render("failed")
		} else {
			ok++
		}
		t.AppendRow(table.Row{r.Input, r.StageName, r.Output, r.Bytes, status})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d", ok, len(results))})
	t.Render()
	return nil
}
