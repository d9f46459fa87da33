// Package cli provides the command-line interface for spirvc.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gogpu/spirvc"
	"github.com/gogpu/spirvc/engine"
	"github.com/gogpu/spirvc/engine/shaderc"
	"github.com/gogpu/spirvc/engine/wgsl"
	"github.com/gogpu/spirvc/include"
	"github.com/gogpu/spirvc/internal/config"
)

// Version is set at build time.
var Version = "0.1.0-dev"

// appKey stores the loaded app state in the command context.
type appKey struct{}

type app struct {
	cfg *config.Loaded
	log *zap.Logger
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "spirvc",
		Short: "spirvc - shader to SPIR-V compiler",
		Long: `spirvc compiles GLSL (through libshaderc) and WGSL (through naga)
shader sources into SPIR-V binaries. #include directives resolve relative
to the file that contains them.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			log := newLogger(cfg.Verbose, cmd.ErrOrStderr())
			spirvc.SetLogger(log)
			if cfg.File != "" {
				log.Debug("using config file", zap.String("file", cfg.File))
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey{}, &app{cfg: cfg, log: log}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
				_ = a.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./spirvc.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose logging")
	pf.String("engine", config.DefaultEngine, "Compiler engine (auto|shaderc|naga)")
	pf.String("library", "", "Path to libshaderc_shared")
	pf.Bool("debug", true, "Emit debug information")
	pf.StringP("optimization", "O", config.DefaultOptimization, "Optimization level (none|size|performance)")
	pf.String("env", config.DefaultTargetEnv, "Target environment (vulkan|opengl)")
	pf.String("target", config.DefaultTargetVersion, "Target environment version (1.0-1.3, or 4.5 for opengl)")
	pf.StringSliceP("include-dir", "I", nil, "Search directory for #include <...>")
	pf.Int("max-include-depth", 0, "Maximum #include nesting (0 for the engine limit)")
	pf.StringP("format", "f", config.DefaultOutput, "Report format (text|json|yaml)")

	_ = rootCmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.EngineAuto, config.EngineShaderc, config.EngineNaga}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputText, config.OutputJSON, config.OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewCompileCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return err
	}
	return nil
}

// appFrom returns the state set up by the root command, or defaults when
// a command runs on its own.
func appFrom(cmd *cobra.Command) *app {
	if ctx := cmd.Context(); ctx != nil {
		if a, ok := ctx.Value(appKey{}).(*app); ok {
			return a
		}
	}
	return &app{cfg: &config.Loaded{Config: config.Default()}, log: zap.NewNop()}
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// selectEngine resolves the configured engine. "auto" picks naga when
// every input is WGSL and shaderc otherwise; with no inputs it prefers
// shaderc when the library loads.
func selectEngine(cfg *config.Config, inputs []string) (engine.Engine, error) {
	native := &shaderc.Engine{Library: cfg.ShadercLibrary}

	name := cfg.Engine
	if name == config.EngineAuto {
		name = config.EngineNaga
		if len(inputs) == 0 {
			if native.Available() == nil {
				name = config.EngineShaderc
			}
		}
		for _, in := range inputs {
			if !isWGSL(in) {
				name = config.EngineShaderc
				break
			}
		}
	}

	switch name {
	case config.EngineNaga:
		return wgsl.New(), nil
	case config.EngineShaderc:
		if err := native.Available(); err != nil {
			return nil, fmt.Errorf("%w (WGSL sources can use --engine naga)", err)
		}
		return native, nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

func isWGSL(path string) bool {
	return strings.EqualFold(extOf(path), ".wgsl")
}

// newCompiler builds a compiler for inputs. A non-nil wrap replaces the
// default include resolver with one wrapping it.
func newCompiler(a *app, inputs []string, wrap func(include.Resolver) include.Resolver) (*spirvc.Compiler, error) {
	e, err := selectEngine(a.cfg.Config, inputs)
	if err != nil {
		return nil, err
	}
	cc, err := a.cfg.CompilerConfig()
	if err != nil {
		return nil, err
	}
	if wrap != nil {
		cc.Resolver = wrap(cc.FileResolver())
	}
	return spirvc.New(e, cc)
}
