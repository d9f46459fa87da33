package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gogpu/spirvc/engine/shaderc"
	"github.com/gogpu/spirvc/engine/wgsl"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the spirvc version and which compiler engines can be used.`,
		Run: func(cmd *cobra.Command, _ []string) {
			a := appFrom(cmd)
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintf(out, "spirvc v%s (%s/%s, %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
			_, _ = fmt.Fprintf(out, "  %-10s %s\n", wgsl.New().Name(), okStyle.Render("available"))

			native := &shaderc.Engine{Library: a.cfg.ShadercLibrary}
			if err := native.Available(); err != nil {
				_, _ = fmt.Fprintf(out, "  %-10s %s\n", native.Name(), dimStyle.Render("unavailable: "+err.Error()))
				return
			}
			_, _ = fmt.Fprintf(out, "  %-10s %s\n", native.Name(), okStyle.Render("available"))
		},
	}
}
